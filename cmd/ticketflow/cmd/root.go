package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ticketflow",
	Short: "Support-ticket resolution workflow engine",
	Long: `ticketflow runs support tickets through a staged resolution workflow:
guardrail screening, intake triage, optional refinement, planning, then a
dispatch loop over retrieval, execution and validation, ending in a report.

Every stage output is persisted under the session directory for audit.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("ticketflow {{.Version}}\n")
}
