package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veritas-legal/clausecore/internal/app"
	"github.com/veritas-legal/clausecore/internal/model"
)

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	var sources []string
	var mode string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask a question against one or more sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(sources) == 0 {
				return fmt.Errorf("--source is required, at least once")
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, Version, GitCommit, BuiltAt)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer a.Close()

			searchMode := model.SearchModeHybrid
			if mode != "" {
				searchMode = model.SearchMode(strings.ToLower(mode))
			}

			result, err := a.Orchestrator.Run(ctx, args[0], sources, searchMode)
			if err != nil {
				return fmt.Errorf("query failed: %w", err)
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Answer)
			if len(result.Citations) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "\nCitations:")
				for _, c := range result.Citations {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s, %s (p.%d-%d)\n", c.Document, c.Section, c.PageStart, c.PageEnd)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&sources, "source", nil, "source to search (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode: hybrid, vector, or lexical")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the full result as JSON")

	return cmd
}
