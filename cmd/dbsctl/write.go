package main

import (
	"fmt"
	"io"
	"os"

	"github.com/agraphon-io/vault/crypto"
	"github.com/spf13/cobra"
)

var (
	writeOffset uint64
	writeInput  string
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write bytes into an unlocked session",
	Long: `Write unlocks the session under the given password, writes the
given bytes (from --input, or stdin if omitted) at offset, flushes,
and locks the session again.`,
	Example: `  echo -n "hello" | dbsctl write --addr-file vol.addr --data-file vol.data --offset 0`,
	RunE:    runWrite,
}

func init() {
	rootCmd.AddCommand(writeCmd)
	addVolumeFlags(writeCmd)
	writeCmd.Flags().Uint64Var(&writeOffset, "offset", 0, "Byte offset to write at")
	writeCmd.Flags().StringVar(&writeInput, "input", "", "Input file (default: stdin)")
}

func runWrite(cmd *cobra.Command, args []string) error {
	fs, err := openVolume()
	if err != nil {
		return err
	}
	defer fs.Close()

	var data []byte
	if writeInput != "" {
		data, err = os.ReadFile(writeInput)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	pw, err := resolvePassword()
	if err != nil {
		return err
	}
	defer crypto.Zero(pw)

	mgr := newManager(fs)
	if err := mgr.UnlockSession(pw); err != nil {
		return fmt.Errorf("failed to unlock session: %w", err)
	}

	if err := mgr.WriteData(writeOffset, data); err != nil {
		mgr.Lock()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := mgr.FlushData(); err != nil {
		mgr.Lock()
		return fmt.Errorf("failed to flush data: %w", err)
	}
	if err := mgr.Lock(); err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}

	fmt.Printf("Wrote %d bytes at offset %d.\n", len(data), writeOffset)
	return nil
}
