package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions [symbol]",
	Short: "List open positions",
	Long: `List all open positions, or only those on one symbol.

Example:
  mt5bridge positions
  mt5bridge positions EURUSD`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPositions,
}

func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	var symbol string
	if len(args) == 1 {
		symbol = args[0]
	}
	positions, err := b.GetPositions(cmd.Context(), symbol)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		fmt.Println("no open positions")
		return nil
	}
	fmt.Printf("%-10s %-12s %-5s %8s %10s %10s %10s %10s\n",
		"TICKET", "SYMBOL", "SIDE", "VOLUME", "OPEN", "SL", "TP", "PROFIT")
	for _, p := range positions {
		fmt.Printf("%-10s %-12s %-5s %8.2f %10.5f %10.5f %10.5f %10.2f  %s\n",
			p.Ticket, p.Symbol, p.Direction, p.Volume,
			p.OpenPrice, p.StopLoss, p.TakeProfit, p.Profit,
			time.Unix(p.OpenTime, 0).Format("2006-01-02 15:04"))
	}
	return nil
}
