// Package main provides the entry point for the apertium-stats service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/apertium/apertium-stats-service/cmd/apertium-stats/commands"
	"github.com/apertium/apertium-stats-service/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "apertium-stats",
		Short: "Statistics service for Apertium linguistic packages",
		Long: `apertium-stats computes and caches statistics over versioned
Apertium packages (dictionaries, transfer rules, lexicons).

Commands:
  serve     Start the HTTP service
  entries   List cached statistics for a package`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewEntriesCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "apertium-stats %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
