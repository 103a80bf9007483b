// Package main is the entry point for the opsdesk CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/opsdesk/opsdesk/internal/cli"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var _ = []string{commit, date}

func main() {
	// A local .env can hold OPSDESK_* overrides; absence is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	// Default entrypoint: launch the TUI when invoked with no args.
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"tui"}
		os.Args = append(os.Args[:1], args...)
	}

	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
