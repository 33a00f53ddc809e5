// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/httpx"
)

// newHealthcheckCmd probes a running server, for container HEALTHCHECKs.
func newHealthcheckCmd() *cobra.Command {
	var (
		mode    string
		baseURL string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Exit non-zero unless a running server reports ready (or live)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/readyz"
			switch mode {
			case "ready":
			case "live":
				path = "/healthz"
			default:
				return fmt.Errorf("unknown mode %q (want ready or live)", mode)
			}

			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, baseURL+path, nil)
			if err != nil {
				return err
			}
			resp, err := httpx.NewClient(timeout).Do(req)
			if err != nil {
				return fmt.Errorf("healthcheck failed (network): %w", err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "healthcheck successful (%s)\n", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "ready", "ready or live")
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:3000", "server base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "check timeout")
	return cmd
}
