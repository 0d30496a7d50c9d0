package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var recvIn string

var recvCmd = &cobra.Command{
	Use:   "recv",
	Short: "Feed an incoming announcement",
	Long: `Recv consumes an announcement produced by a peer's announce
command, verifies and decrypts it, and records it. The session only
becomes active once we have also announced back to that peer with
our own announce call; run status to check.`,
	Example: `  aspctl recv --identity bob.identity --state bob.state --in ann-to-bob.bin`,
	RunE:    runRecv,
}

func init() {
	rootCmd.AddCommand(recvCmd)
	addIdentityFlags(recvCmd)
	addStateFlags(recvCmd)
	recvCmd.Flags().StringVar(&recvIn, "in", "", "Input announcement file (required)")
}

func runRecv(cmd *cobra.Command, args []string) error {
	if recvIn == "" {
		return fmt.Errorf("--in is required")
	}

	selfPub, selfSec, err := loadIdentity(identityFilePath)
	if err != nil {
		return err
	}
	if selfSec == nil {
		return fmt.Errorf("identity file %s has no secret keys", identityFilePath)
	}

	announcement, err := os.ReadFile(recvIn)
	if err != nil {
		return fmt.Errorf("failed to read announcement file: %w", err)
	}

	pw, err := resolvePassword()
	if err != nil {
		return err
	}

	mgr, err := loadState(stateFilePath, pw)
	if err != nil {
		return err
	}

	result, err := mgr.FeedIncomingAnnouncement(announcement, selfPub, *selfSec)
	if err != nil {
		return fmt.Errorf("failed to feed announcement: %w", err)
	}

	if err := saveState(stateFilePath, pw, mgr); err != nil {
		return err
	}

	fmt.Printf("Announcement recorded from peer %s.\n", result.AnnouncerPublicKeys.UserID())
	fmt.Printf("Session status: %s\n", mgr.PeerSessionStatus(result.AnnouncerPublicKeys.UserID()))
	return nil
}
