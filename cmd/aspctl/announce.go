package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	announcePeerFile string
	announceOut      string
)

var announceCmd = &cobra.Command{
	Use:   "announce",
	Short: "Establish an outgoing session and produce an announcement",
	Long: `Announce establishes this identity's half of a session with the
peer identified by --peer (their public identity file) and writes the
resulting announcement bytes to --out. Send that file to the peer out
of band; they complete the session by running recv against it.`,
	Example: `  aspctl announce --identity alice.identity --state alice.state --peer bob.pub --out ann-to-bob.bin`,
	RunE:    runAnnounce,
}

func init() {
	rootCmd.AddCommand(announceCmd)
	addIdentityFlags(announceCmd)
	addStateFlags(announceCmd)
	announceCmd.Flags().StringVar(&announcePeerFile, "peer", "", "Peer's public identity file (required)")
	announceCmd.Flags().StringVar(&announceOut, "out", "", "Output announcement file (required)")
}

func runAnnounce(cmd *cobra.Command, args []string) error {
	if announcePeerFile == "" || announceOut == "" {
		return fmt.Errorf("--peer and --out are required")
	}

	selfPub, selfSec, err := loadIdentity(identityFilePath)
	if err != nil {
		return err
	}
	if selfSec == nil {
		return fmt.Errorf("identity file %s has no secret keys", identityFilePath)
	}
	peerPub, _, err := loadIdentity(announcePeerFile)
	if err != nil {
		return err
	}

	pw, err := resolvePassword()
	if err != nil {
		return err
	}

	mgr, err := loadState(stateFilePath, pw)
	if err != nil {
		return err
	}

	announcement, err := mgr.EstablishOutgoingSession(peerPub, selfPub, *selfSec, nil)
	if err != nil {
		return fmt.Errorf("failed to establish outgoing session: %w", err)
	}

	if err := saveState(stateFilePath, pw, mgr); err != nil {
		return err
	}
	if err := os.WriteFile(announceOut, announcement, 0644); err != nil {
		return fmt.Errorf("failed to write announcement: %w", err)
	}

	fmt.Printf("Announcement written to %s (peer %s).\n", announceOut, peerPub.UserID())
	return nil
}
