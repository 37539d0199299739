package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/mt5bridge/bridge"
)

var orderCmd = &cobra.Command{
	Use:   "order <symbol> <buy|sell> <volume>",
	Short: "Place a market order",
	Long: `Place a market order. Stop-loss and take-profit are optional price
levels; zero (the default) means none.

Example:
  mt5bridge order EURUSD buy 0.5 --sl 1.0950 --tp 1.1100`,
	Args: cobra.ExactArgs(3),
	RunE: runOrder,
}

var (
	orderStopLoss   float64
	orderTakeProfit float64
)

func init() {
	rootCmd.AddCommand(orderCmd)

	orderCmd.Flags().Float64Var(&orderStopLoss, "sl", 0, "stop-loss price (0 = none)")
	orderCmd.Flags().Float64Var(&orderTakeProfit, "tp", 0, "take-profit price (0 = none)")
}

func runOrder(cmd *cobra.Command, args []string) error {
	volume, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad volume %q: %w", args[2], err)
	}
	side := bridge.Side(strings.ToUpper(args[1]))
	if side != bridge.Buy && side != bridge.Sell {
		return fmt.Errorf("side must be buy or sell, got %q", args[1])
	}

	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	ticket, err := b.PlaceOrder(cmd.Context(), bridge.OrderRequest{
		Symbol:     args[0],
		Side:       side,
		Volume:     volume,
		StopLoss:   orderStopLoss,
		TakeProfit: orderTakeProfit,
	})
	if err != nil {
		return err
	}
	fmt.Printf("order filled: ticket=%s price=%.5f\n", ticket.Ticket, ticket.FillPrice)
	return nil
}
