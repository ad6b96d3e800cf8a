// Package cmd provides the CLI commands for clausecore.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version, GitCommit and BuiltAt are injected at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuiltAt   = ""
)

// NewRootCmd creates the root command for the clausecore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "clausecore",
		Short:   "Query a licensing document corpus with grounded, citation-backed answers",
		Version: Version,
		Long: `clausecore answers natural-language questions against a fixed
licensing document corpus. It retrieves candidate passages with hybrid
dense/lexical search, reranks them, and refuses to answer when the
evidence doesn't clear a deterministic confidence threshold.`,
	}

	cmd.SetVersionTemplate("clausecore version {{.Version}}\n")

	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newSourcesCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
