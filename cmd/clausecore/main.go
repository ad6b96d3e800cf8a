// Package main provides the entry point for the clausecore CLI.
package main

import (
	"os"

	"github.com/veritas-legal/clausecore/cmd/clausecore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
