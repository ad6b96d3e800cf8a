package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veritas-legal/clausecore/internal/app"
)

// newSourcesCmd creates the sources command.
func newSourcesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sources [name]",
		Short: "List available sources, or the documents within one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, Version, GitCommit, BuiltAt)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()

			if len(args) == 0 {
				names, err := a.ChunkStore.ListSources(ctx)
				if err != nil {
					return fmt.Errorf("listing sources: %w", err)
				}
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(map[string][]string{"sources": names})
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}

			docs, err := a.ChunkStore.ListDocuments(ctx, args[0])
			if err != nil {
				return fmt.Errorf("listing documents: %w", err)
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{"source": args[0], "documents": docs})
			}
			for _, d := range docs {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}
