package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var readIn string

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Decrypt a board post from any active peer",
	Long: `Read tries the board post at --in against every seeker our active
sessions currently expect a message under, decrypting and printing
the payload from whichever peer it matches. This mirrors how a real
message board is read: posts are addressed by seeker, not by sender,
so the reader does not know who posted until decryption succeeds.`,
	Example: `  aspctl read --identity bob.identity --state bob.state --in post.bin`,
	RunE:    runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	addIdentityFlags(readCmd)
	addStateFlags(readCmd)
	readCmd.Flags().StringVar(&readIn, "in", "", "Input board post file (required)")
}

func runRead(cmd *cobra.Command, args []string) error {
	if readIn == "" {
		return fmt.Errorf("--in is required")
	}

	_, selfSec, err := loadIdentity(identityFilePath)
	if err != nil {
		return err
	}
	if selfSec == nil {
		return fmt.Errorf("identity file %s has no secret keys", identityFilePath)
	}

	wire, err := os.ReadFile(readIn)
	if err != nil {
		return fmt.Errorf("failed to read board post file: %w", err)
	}

	pw, err := resolvePassword()
	if err != nil {
		return err
	}

	mgr, err := loadState(stateFilePath, pw)
	if err != nil {
		return err
	}

	var delivered bool
	for _, seeker := range mgr.GetMessageBoardReadKeys() {
		result, err := mgr.FeedIncomingMessageBoardRead(seeker, wire, *selfSec)
		if err != nil {
			continue
		}
		if err := saveState(stateFilePath, pw, mgr); err != nil {
			return err
		}
		fmt.Printf("Message from %s:\n%s\n", result.PeerID, result.Payload)
		delivered = true
		break
	}
	if !delivered {
		return fmt.Errorf("board post did not match any active session")
	}
	return nil
}
