package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dbsctl",
	Short: "Deniable Block Store CLI - init, create, unlock, and access two-file encrypted volumes",
	Long: `dbsctl operates a Deniable Block Store volume: a pair of files
(an addressing blob and a data file) that can hold any number of
independently-unlockable sessions, each keyed by its own password and
with no marker distinguishing an unlocked session's data from random
padding.

This tool supports:
- Volume initialization (init)
- Session creation under a new password (create)
- Reading and writing session data (read, write)
- Reporting logical session size (info)`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Note: commands are registered in their respective files:
	// - init.go: initCmd
	// - create.go: createCmd
	// - read.go: readCmd
	// - write.go: writeCmd
	// - info.go: infoCmd
}
