// Package main is the entry point for the codaio-exporter CLI.
//
// It delegates all functionality to the internal/cli package, which defines
// the cobra commands.
package main

import (
	"github.com/smessmer/codaio-exporter/internal/cli"
)

// version, commit, and date are set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
