// Package cli implements the remixbridge command.
package cli

import (
	"github.com/spf13/cobra"
)

var backendFlag string

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "remixbridge",
		Short:   "Local bridge between the Remix IDE and the Tenderly verification service",
		Long:    `Remixbridge runs a local daemon that connects a browser-hosted Remix IDE to Tenderly contract verification, project management and contract import.`,
		Version: version,
	}

	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "verification API base URL (default from config)")

	// Default behavior (no subcommand) is to serve
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServe(version)
	}

	rootCmd.AddCommand(createServeCmd(version))
	rootCmd.AddCommand(createLoginCmd())
	rootCmd.AddCommand(createLogoutCmd())
	rootCmd.AddCommand(createStatusCmd())

	return rootCmd.Execute()
}
