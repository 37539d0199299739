package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var candlesCmd = &cobra.Command{
	Use:   "candles <symbol> <timeframe> <count>",
	Short: "Fetch recent OHLC bars",
	Long: `Fetch the most recent bars for a symbol. Timeframes: M1, M5, M15, H1,
H4, D1.

Example:
  mt5bridge candles EURUSD H1 24`,
	Args: cobra.ExactArgs(3),
	RunE: runCandles,
}

func init() {
	rootCmd.AddCommand(candlesCmd)
}

func runCandles(cmd *cobra.Command, args []string) error {
	count, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("bad count %q: %w", args[2], err)
	}

	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	candles, err := b.GetCandles(cmd.Context(), args[0], args[1], count)
	if err != nil {
		return err
	}
	fmt.Printf("%-17s %10s %10s %10s %10s %8s\n", "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
	for _, c := range candles {
		fmt.Printf("%-17s %10.5f %10.5f %10.5f %10.5f %8d\n",
			time.Unix(c.Time, 0).Format("2006-01-02 15:04"),
			c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	return nil
}
