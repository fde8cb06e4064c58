// Package main is the entry point for the userdesk server.
//
// main stays minimal: it builds the cobra command tree and exits non-zero
// if the command fails. Configuration, wiring and serving live in
// internal/config and internal/server.
package main

import (
	"fmt"
	"os"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
