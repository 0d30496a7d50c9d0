package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keygenOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new long-term identity",
	Long: `Keygen samples a fresh Ed25519 signing keypair and a ML-KEM-768
keypair and writes both to --out as a single identity file. Share the
file's public half (or the identity file itself, stripped of its
secret fields) with peers so they can address announcements to you.`,
	Example: `  aspctl keygen --out alice.identity`,
	RunE:    runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenOut, "out", "", "Output identity file path (required)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	if keygenOut == "" {
		return fmt.Errorf("--out is required")
	}

	pub, sec, err := generateIdentity()
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}
	if err := saveIdentity(keygenOut, pub, &sec); err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}

	fmt.Printf("Identity generated:\n  User ID: %s\n  File: %s\n", pub.UserID(), keygenOut)
	return nil
}
