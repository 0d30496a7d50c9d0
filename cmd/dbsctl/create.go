package main

import (
	"fmt"

	"github.com/agraphon-io/vault/crypto"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new session under a password",
	Long: `Create derives session keys from the given password, lays down
Pareto-distributed random padding ahead of a fresh root block, and
writes the encrypted root location to all addressing slots that
password's key schedule selects.

A volume can hold many independently-created sessions, each under its
own password; there is nothing in either file distinguishing a
session's slots or data from random bytes.`,
	Example: `  dbsctl create --addr-file vol.addr --data-file vol.data`,
	RunE:    runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
	addVolumeFlags(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	fs, err := openVolume()
	if err != nil {
		return err
	}
	defer fs.Close()

	mgr := newManager(fs)
	if err := mgr.InitStorage(); err != nil {
		return fmt.Errorf("failed to initialize volume: %w", err)
	}

	pw, err := resolvePassword()
	if err != nil {
		return err
	}
	defer crypto.Zero(pw)

	if err := mgr.CreateSession(pw); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := mgr.Lock(); err != nil {
		return fmt.Errorf("failed to flush and lock session: %w", err)
	}

	fmt.Println("Session created.")
	return nil
}
