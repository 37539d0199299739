package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var sizeCmd = &cobra.Command{
	Use:   "size <symbol> <stop-pips> <risk-percent>",
	Short: "Compute a position size from equity and stop distance",
	Long: `Ask the terminal to size a position so that a stop-out loses the given
percentage of current equity. The result is floored to the broker's lot
step.

Example:
  mt5bridge size EURUSD 50 1`,
	Args: cobra.ExactArgs(3),
	RunE: runSize,
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	stop, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("bad stop distance %q: %w", args[1], err)
	}
	riskPct, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad risk percent %q: %w", args[2], err)
	}

	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	volume, err := b.CalculatePositionSize(cmd.Context(), args[0], stop, riskPct)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %.2f lots (risking %.1f%% over %.0f pips)\n", args[0], volume, riskPct, stop)
	return nil
}
