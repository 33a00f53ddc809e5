// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
)

// ParseString reads a string from the environment or returns defaultValue.
// Empty variables count as unset. Secrets are never logged.
func ParseString(key, defaultValue string) string {
	logger := xglog.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Str("default", masked(key, defaultValue)).Msg("using default value")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Str("value", masked(key, v)).
		Str(xglog.FieldSource, "environment").
		Msg("using environment variable")
	return v
}

// ParseInt reads an integer from the environment. Invalid values fall back
// to defaultValue with a warning.
func ParseInt(key string, defaultValue int) int {
	return parseWith(key, defaultValue, strconv.Atoi, "integer")
}

// ParseDuration reads a Go duration ("5s") from the environment.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseWith(key, defaultValue, time.ParseDuration, "duration")
}

// ParseFloat reads a float64 from the environment.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseWith(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	}, "float")
}

// ParseBool reads a boolean from the environment. It accepts "true", "false",
// "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseWith(key, defaultValue, parseBoolWord, "boolean")
}

func parseBoolWord(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

func parseWith[T any](key string, defaultValue T, parse func(string) (T, error), kind string) T {
	logger := xglog.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logDefault(logger, key, ok).Interface("default", defaultValue).Msg("using default value")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msgf("invalid %s in environment variable, using default", kind)
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str(xglog.FieldSource, "environment").
		Msg("using environment variable")
	return parsed
}

func logDefault(logger zerolog.Logger, key string, present bool) *zerolog.Event {
	ev := logger.Debug().Str("key", key).Str(xglog.FieldSource, "default")
	if present {
		ev = ev.Bool("empty", true)
	}
	return ev
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password") || strings.Contains(k, "secret")
}

func masked(key, value string) string {
	if value != "" && sensitive(key) {
		return "***"
	}
	return value
}
