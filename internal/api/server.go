// SPDX-License-Identifier: MIT

// Package api assembles the HTTP surface of `pupcam serve`.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/health"
	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/monitor"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/relay"
)

const maxBodyBytes = 1 << 10

// StreamStatus is the part of the monitor the API needs.
type StreamStatus interface {
	Status() monitor.Snapshot
	SetEnabled(enabled bool)
}

// Deps are the components served by the router. Nil members are not mounted.
type Deps struct {
	Relay       *relay.Relay
	Stream      StreamStatus
	Health      *health.Manager
	ServiceName string
}

// NewRouter builds the chi router with the middleware stack applied in
// order: recover, request ID, metrics, tracing, access log.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(Metrics)
	if d.ServiceName != "" {
		r.Use(Tracing(d.ServiceName))
	}
	r.Use(xglog.Middleware())

	if d.Health != nil {
		r.Get("/healthz", d.Health.ServeHealth)
		r.Get("/readyz", d.Health.ServeReady)
	}
	r.Handle("/metrics", promhttp.Handler())

	if d.Stream != nil {
		h := &liveHandler{stream: d.Stream}
		r.Get("/api/live", h.get)
		r.Post("/api/live", h.set)
	}

	if d.Relay != nil {
		d.Relay.Mount(r)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{
			Error:     "not found",
			RequestID: xglog.RequestIDFromContext(req.Context()),
		})
	})
	return r
}

type liveHandler struct {
	stream StreamStatus
}

func (h *liveHandler) get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stream.Status())
}

// setLiveRequest toggles stream monitoring.
type setLiveRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *liveHandler) set(w http.ResponseWriter, r *http.Request) {
	var req setLiveRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(&req)
	if err == nil && req.Enabled == nil {
		err = errors.New(`missing field "enabled"`)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     "invalid request body: " + err.Error(),
			RequestID: xglog.RequestIDFromContext(r.Context()),
		})
		return
	}

	h.stream.SetEnabled(*req.Enabled)

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldEvent, "monitor.toggled").
		Bool("enabled", *req.Enabled).
		Msg("stream monitoring toggled")

	writeJSON(w, http.StatusOK, h.stream.Status())
}
