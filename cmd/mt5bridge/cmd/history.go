package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <days> [symbol]",
	Short: "List trades closed within the last N days",
	Long: `List closed trades from the terminal's history, optionally filtered by
symbol.

Example:
  mt5bridge history 7
  mt5bridge history 30 EURUSD`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	days, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad day count %q: %w", args[0], err)
	}
	var symbol string
	if len(args) == 2 {
		symbol = args[1]
	}

	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	orders, err := b.GetHistoryOrders(cmd.Context(), days, symbol)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("no closed trades in range")
		return nil
	}
	var total float64
	fmt.Printf("%-10s %-12s %-5s %8s %10s %10s %10s  %s\n",
		"TICKET", "SYMBOL", "SIDE", "VOLUME", "OPEN", "CLOSE", "PROFIT", "CLOSED AT")
	for _, o := range orders {
		total += o.Profit
		fmt.Printf("%-10s %-12s %-5s %8.2f %10.5f %10.5f %10.2f  %s\n",
			o.Ticket, o.Symbol, o.Direction, o.Volume,
			o.OpenPrice, o.ClosePrice, o.Profit,
			time.Unix(o.CloseTime, 0).Format("2006-01-02 15:04"))
	}
	fmt.Printf("total: %.2f over %d trade(s)\n", total, len(orders))
	return nil
}
