package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the addressing blob",
	Long: `Initialize lays down the fixed-size addressing blob the first time
it is run against a volume. It is a no-op if the addressing file
already has the right size, so it is safe to run before every
create/unlock as a convenience.`,
	Example: `  dbsctl init --addr-file vol.addr --data-file vol.data`,
	RunE:    runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	addVolumeFlags(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	fs, err := openVolume()
	if err != nil {
		return err
	}
	defer fs.Close()

	mgr := newManager(fs)
	if err := mgr.InitStorage(); err != nil {
		return fmt.Errorf("failed to initialize volume: %w", err)
	}

	fmt.Printf("Volume initialized:\n  Addressing file: %s\n  Data file: %s\n", addrFile, dataFile)
	return nil
}
