package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/airqo-platform/gateway/internal/config"
	"github.com/airqo-platform/gateway/internal/health"
)

// errNotReady makes the command exit non-zero for scripts
var errNotReady = errors.New("upstream is not ready")

// NewProbeCmd creates the probe command
func NewProbeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check once whether the upstream API is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runProbe(cmd.Context(), cmd.OutOrStdout(), cfg, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the probe result as JSON")

	return cmd
}

func runProbe(ctx context.Context, out io.Writer, cfg *config.Config, asJSON bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	prober := health.NewProber(cfg.Upstream.BaseURL, cfg.Upstream.HealthPath, cfg.Upstream.HealthInterval, nil, zerolog.Nop())
	status := prober.Probe(ctx)

	if asJSON {
		if err := writeJSON(out, status); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Upstream: %s\n", cfg.Upstream.BaseURL)
		if status.StatusCode != 0 {
			fmt.Fprintf(out, "Status:   %d\n", status.StatusCode)
		}
		fmt.Fprintf(out, "Latency:  %dms\n", status.LatencyMS)
		if status.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", status.Error)
		}
	}

	if !status.Ready {
		return errNotReady
	}
	if !asJSON {
		fmt.Fprintln(out, "✓ Upstream is ready")
	}
	return nil
}
