package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show account balance, equity and margin",
	Args:  cobra.NoArgs,
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	snap, err := b.GetAccountInfo(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Balance:     %.2f %s\n", snap.Balance, snap.Currency)
	fmt.Printf("Equity:      %.2f %s\n", snap.Equity, snap.Currency)
	fmt.Printf("Margin:      %.2f %s\n", snap.Margin, snap.Currency)
	fmt.Printf("Free margin: %.2f %s\n", snap.FreeMargin, snap.Currency)
	return nil
}
