package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/spf13/cobra"

	"github.com/agraphon-io/vault/dbs"
	"github.com/agraphon-io/vault/dbs/osfs"
	"github.com/agraphon-io/vault/internal/logger"
)

var (
	addrFile string
	dataFile string
	password string
)

func addVolumeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&addrFile, "addr-file", "", "Path to the addressing blob (required)")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "Path to the data file (required)")
	cmd.Flags().StringVar(&password, "password", "", "Session password (prompted if omitted)")
}

func openVolume() (*osfs.FS, error) {
	if addrFile == "" || dataFile == "" {
		return nil, fmt.Errorf("--addr-file and --data-file are required")
	}
	return osfs.Open(addrFile, dataFile)
}

func resolvePassword() ([]byte, error) {
	if password != "" {
		return []byte(password), nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("password must not be empty")
	}
	return pw, nil
}

func newManager(fs dbs.FileSystem) *dbs.SessionManager {
	return dbs.NewSessionManager(fs, logger.NewDefaultLogger())
}
