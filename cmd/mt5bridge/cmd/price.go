package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price <symbol>",
	Short: "Fetch the current bid/ask for a symbol",
	Long: `Fetch the current quote. Shorthand symbols are resolved through the
alias table (us30 -> US30.cash, gold -> XAUUSD).

Example:
  mt5bridge price EURUSD
  mt5bridge price us30`,
	Args: cobra.ExactArgs(1),
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)
}

func runPrice(cmd *cobra.Command, args []string) error {
	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	q, err := b.GetPrice(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s  bid=%.5f  ask=%.5f  spread=%.5f  (%s)\n",
		q.Symbol, q.Bid, q.Ask, q.Spread(), q.Time.Format("15:04:05"))
	return nil
}
