package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var performanceCmd = &cobra.Command{
	Use:   "performance <days> [symbol]",
	Short: "Summarize trading results over the last N days",
	Long: `Aggregate closed trades into win rate, profit factor and average trade,
optionally filtered by symbol.

Example:
  mt5bridge performance 30
  mt5bridge performance 7 EURUSD`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPerformance,
}

func init() {
	rootCmd.AddCommand(performanceCmd)
}

func runPerformance(cmd *cobra.Command, args []string) error {
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

	m, err := b.GetPerformanceMetrics(cmd.Context(), days, symbol)
	if err != nil {
		return err
	}
	if m.TotalTrades == 0 {
		fmt.Println("no closed trades in range")
		return nil
	}
	fmt.Printf("trades:        %d (%d won, %d lost)\n", m.TotalTrades, m.WinningTrades, m.LosingTrades)
	fmt.Printf("win rate:      %.1f%%\n", m.WinRate)
	fmt.Printf("profit factor: %.2f\n", m.ProfitFactor)
	fmt.Printf("total profit:  %.2f\n", m.TotalProfit)
	fmt.Printf("average trade: %.2f\n", m.AverageTrade)
	return nil
}
