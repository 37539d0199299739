package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check terminal connectivity",
	Long: `Send a STATUS request and report whether the terminal answered.

Exits non-zero when the terminal does not respond within the configured
timeout and retry budget.

Example:
  mt5bridge status -d /path/to/MQL5/Files/bridge`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	up, err := b.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("terminal unreachable: %w", err)
	}
	if !up {
		return fmt.Errorf("terminal answered but reports disconnected")
	}
	fmt.Println("terminal connected")
	return nil
}
