package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/airqo-platform/gateway/internal/authmode"
	"github.com/airqo-platform/gateway/internal/config"
)

// NewRoutesCmd creates the routes command
func NewRoutesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the effective route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			table, err := loadTable(cfg)
			if err != nil {
				return err
			}
			return runRoutes(cmd.OutOrStdout(), cfg, table, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the table as JSON")

	return cmd
}

type routesView struct {
	Source    string         `json:"source"`
	Reserved  string         `json:"reserved"`
	External  string         `json:"external"`
	Table     authmode.Table `json:"table"`
	Unmatched authmode.Mode  `json:"unmatched"`
}

func runRoutes(out io.Writer, cfg *config.Config, table authmode.Table, asJSON bool) error {
	view := routesView{
		Source:    "built-in",
		Reserved:  cfg.Routing.ReservedSegment,
		External:  cfg.Routing.ExternalSegment,
		Table:     table,
		Unmatched: authmode.ModeNone,
	}
	if cfg.Routing.TableFile != "" {
		view.Source = cfg.Routing.TableFile
	}

	if asJSON {
		return writeJSON(out, view)
	}

	fmt.Fprintf(out, "Route table (%s):\n\n", view.Source)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEGMENT\tMODE")
	fmt.Fprintln(w, "───────\t────")
	for _, seg := range table.Identity {
		fmt.Fprintf(w, "%s\t%s\n", seg, authmode.ModeJWT)
	}
	for _, seg := range table.Telemetry {
		fmt.Fprintf(w, "%s\t%s\n", seg, authmode.ModeToken)
	}
	fmt.Fprintf(w, "%s\t%s\n", view.Reserved, "rejected (404)")
	fmt.Fprintf(w, "%s/*\t%s\n", view.External, authmode.ModeToken)
	fmt.Fprintf(w, "*\t%s\n", view.Unmatched)
	return w.Flush()
}
