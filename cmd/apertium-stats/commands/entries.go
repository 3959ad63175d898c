package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/apertium/apertium-stats-service/internal/config"
	"github.com/apertium/apertium-stats-service/internal/entrystore"
)

// NewEntriesCommand creates the entries command for inspecting the cache
// from the shell.
func NewEntriesCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "entries <package>",
		Short: "List cached statistics for a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntries(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")

	return cmd
}

func runEntries(cmd *cobra.Command, configPath, name string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	store, err := entrystore.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open entry store: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.FindAllForName(cmd.Context(), name)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no cached entries for %s\n", name)

		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"CREATED", "REVISION", "FILE KIND", "STAT", "VALUE", "PATH"})

	for _, e := range entries {
		tw.AppendRow(table.Row{
			humanize.Time(e.Created),
			e.Revision,
			e.FileKind,
			e.StatKind,
			e.Value,
			e.Path,
		})
	}

	tw.Render()

	return nil
}
