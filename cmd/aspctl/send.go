package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agraphon-io/vault/asp"
)

var (
	sendPeerID string
	sendMsg    string
	sendOut    string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Encrypt a message for an active peer session",
	Long: `Send encrypts --message for the peer with the given hex user ID
and writes the board post to --out. The peer's ratchet chain only
advances in their state file once they successfully run read against
this file, so it is safe to retry delivery of the same file.`,
	Example: `  aspctl send --identity alice.identity --state alice.state --peer-id <hex> --message "hi" --out post.bin`,
	RunE:    runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	addIdentityFlags(sendCmd)
	addStateFlags(sendCmd)
	sendCmd.Flags().StringVar(&sendPeerID, "peer-id", "", "Peer's hex user ID (required)")
	sendCmd.Flags().StringVar(&sendMsg, "message", "", "Message to send")
	sendCmd.Flags().StringVar(&sendOut, "out", "", "Output board post file (required)")
}

func runSend(cmd *cobra.Command, args []string) error {
	if sendPeerID == "" || sendOut == "" {
		return fmt.Errorf("--peer-id and --out are required")
	}

	peerID, err := parseUserID(sendPeerID)
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

	wire, err := mgr.SendMessage(peerID, []byte(sendMsg))
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	if err := saveState(stateFilePath, pw, mgr); err != nil {
		return err
	}
	if err := os.WriteFile(sendOut, wire, 0644); err != nil {
		return fmt.Errorf("failed to write board post: %w", err)
	}

	fmt.Printf("Message posted to %s (%d bytes).\n", sendOut, len(wire))
	return nil
}

func parseUserID(s string) (asp.UserID, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return asp.UserID{}, fmt.Errorf("invalid hex user ID: %w", err)
	}
	if len(raw) != 32 {
		return asp.UserID{}, fmt.Errorf("user ID must be 32 bytes, got %d", len(raw))
	}
	var id asp.UserID
	copy(id[:], raw)
	return id, nil
}
