package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/spf13/cobra"
)

var (
	identityFilePath string
	stateFilePath    string
	password         string
)

func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&identityFilePath, "identity", "", "Path to this identity's key file (required)")
}

func addStateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&stateFilePath, "state", "", "Path to this identity's session state file (required)")
	cmd.Flags().StringVar(&password, "password", "", "State file password (prompted if omitted)")
}

func resolvePassword() ([]byte, error) {
	if password != "" {
		return []byte(password), nil
	}
	fmt.Fprint(os.Stderr, "State password: ")
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
