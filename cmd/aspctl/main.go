package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aspctl",
	Short: "Agraphon Session Protocol CLI - identities, announcements, and message board traffic",
	Long: `aspctl drives the Agraphon Session Protocol from the command line:
generating long-term identities, exchanging the announcements that
bootstrap a session, and sending/receiving messages over an
address-by-seeker message board.

Every peer's session state (ratchet chains, seeker chains, pending
announcements) lives in a single encrypted state file, sealed under a
password with the same AEAD the session protocol itself uses.

This tool supports:
- Identity generation (keygen)
- Outgoing/incoming announcement exchange (announce, recv)
- Message send/receive (send, read)
- Session status reporting (status)`,
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
	// - keygen.go: keygenCmd
	// - announce.go: announceCmd
	// - recv.go: recvCmd
	// - send.go: sendCmd
	// - read.go: readCmd
	// - status.go: statusCmd
}
