package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/airqo-platform/gateway/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the gatewayctl command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gatewayctl",
		Short: "gatewayctl - Inspect the platform API gateway",
		Long: `gatewayctl inspects the platform API gateway using the same configuration
as the server (.env, .env.local and environment variables).

Use it to see which credential a path would be forwarded with, to print the
effective route table, or to check whether the upstream API is reachable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gatewayctl version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewClassifyCmd())
	rootCmd.AddCommand(commands.NewRoutesCmd())
	rootCmd.AddCommand(commands.NewProbeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
