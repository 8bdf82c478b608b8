// Command shiori serves nearest-neighbour retrieval over a persisted embedding collection.
package main

import (
	"fmt"
	"os"

	"github.com/hyperjump/shiori/cmd/shiori/commands"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
