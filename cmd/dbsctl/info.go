package main

import (
	"fmt"

	"github.com/agraphon-io/vault/crypto"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Report a session's logical data size",
	Example: `  dbsctl info --addr-file vol.addr --data-file vol.data`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	addVolumeFlags(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	fs, err := openVolume()
	if err != nil {
		return err
	}
	defer fs.Close()

	pw, err := resolvePassword()
	if err != nil {
		return err
	}
	defer crypto.Zero(pw)

	mgr := newManager(fs)
	if err := mgr.UnlockSession(pw); err != nil {
		return fmt.Errorf("failed to unlock session: %w", err)
	}
	size, err := mgr.DataSize()
	if err != nil {
		mgr.Lock()
		return fmt.Errorf("failed to read data size: %w", err)
	}
	if err := mgr.Lock(); err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}

	fmt.Printf("Session data size: %d bytes\n", size)
	return nil
}
