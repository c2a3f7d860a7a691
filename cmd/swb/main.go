package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swb",
		Short: "Switchboard, a multi-call AI phone assistant",
		Long:  "Switchboard coordinates simultaneous AI-backed phone conversations for one operator.",
	}

	cmd.PersistentFlags().String("config", "config.yaml", "path to config file")
	cmd.PersistentFlags().String("console", "http://localhost:8090", "console API base URL")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDialCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newAnswerCmd())
	cmd.AddCommand(newCallbacksCmd())
	cmd.AddCommand(newContactsCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newSetupCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "swb %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
