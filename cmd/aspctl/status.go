package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusPeerID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report session status for one peer, or list all known peers",
	Example: `  aspctl status --identity alice.identity --state alice.state --peer-id <hex>
  aspctl status --identity alice.identity --state alice.state`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	addIdentityFlags(statusCmd)
	addStateFlags(statusCmd)
	statusCmd.Flags().StringVar(&statusPeerID, "peer-id", "", "Peer's hex user ID (omit to list all known peers)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	pw, err := resolvePassword()
	if err != nil {
		return err
	}

	mgr, err := loadState(stateFilePath, pw)
	if err != nil {
		return err
	}

	if statusPeerID != "" {
		peerID, err := parseUserID(statusPeerID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", peerID, mgr.PeerSessionStatus(peerID))
		return nil
	}

	peers := mgr.PeerList()
	if len(peers) == 0 {
		fmt.Println("No known peers.")
		return nil
	}
	for _, peerID := range peers {
		fmt.Printf("%s: %s\n", peerID, mgr.PeerSessionStatus(peerID))
	}
	return nil
}
