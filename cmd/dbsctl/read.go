package main

import (
	"fmt"
	"os"

	"github.com/agraphon-io/vault/crypto"
	"github.com/spf13/cobra"
)

var (
	readOffset uint64
	readLength int
	readOutput string
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read bytes from an unlocked session",
	Long: `Read unlocks the session under the given password, reads length
bytes at offset, locks the session again, and writes the bytes to
stdout (or --output).

Wrong-password unlock attempts take the same time as correct ones:
every candidate addressing slot is decrypted regardless of whether an
earlier one already matched.`,
	Example: `  dbsctl read --addr-file vol.addr --data-file vol.data --offset 0 --length 1024`,
	RunE:    runRead,
}

func init() {
	rootCmd.AddCommand(readCmd)
	addVolumeFlags(readCmd)
	readCmd.Flags().Uint64Var(&readOffset, "offset", 0, "Byte offset to read from")
	readCmd.Flags().IntVar(&readLength, "length", 0, "Number of bytes to read")
	readCmd.Flags().StringVar(&readOutput, "output", "", "Output file (default: stdout)")
}

func runRead(cmd *cobra.Command, args []string) error {
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

	data, err := mgr.ReadData(readOffset, readLength)
	if err != nil {
		mgr.Lock()
		return fmt.Errorf("failed to read data: %w", err)
	}

	if err := mgr.Lock(); err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}

	if readOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(readOutput, data, 0600)
}
