// Command authmetrics extracts authentication and session amortization
// metrics from lattice-based IoT protocol simulation logs.
//
// Usage:
//
//	authmetrics analyze [--profile <variant>] [--db <path>] <log>...
//	authmetrics replay --db <path> [--run <id>]
//	authmetrics runs --db <path>
//	authmetrics compare --db <path>
//	authmetrics test <scenarios-dir>
//	authmetrics dialects list|show|validate
//	authmetrics profiles [variant]
package main

import (
	"fmt"
	"os"

	"github.com/roach88/authmetrics/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
