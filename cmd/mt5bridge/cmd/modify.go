package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modifyCmd = &cobra.Command{
	Use:   "modify <ticket>",
	Short: "Change the stop-loss and/or take-profit of a position",
	Long: `Change protective levels on an open position. A flag left out keeps
the current level.

Example:
  mt5bridge modify 100042 --sl 1.0980
  mt5bridge modify 100042 --sl 1.0980 --tp 1.1150`,
	Args: cobra.ExactArgs(1),
	RunE: runModify,
}

var (
	modifyStopLoss   float64
	modifyTakeProfit float64
)

func init() {
	rootCmd.AddCommand(modifyCmd)

	modifyCmd.Flags().Float64Var(&modifyStopLoss, "sl", 0, "new stop-loss price")
	modifyCmd.Flags().Float64Var(&modifyTakeProfit, "tp", 0, "new take-profit price")
}

func runModify(cmd *cobra.Command, args []string) error {
	var sl, tp *float64
	if cmd.Flags().Changed("sl") {
		sl = &modifyStopLoss
	}
	if cmd.Flags().Changed("tp") {
		tp = &modifyTakeProfit
	}
	if sl == nil && tp == nil {
		return fmt.Errorf("nothing to change: pass --sl and/or --tp")
	}

	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.ModifyPosition(cmd.Context(), args[0], sl, tp); err != nil {
		return err
	}
	fmt.Printf("position %s modified\n", args[0])
	return nil
}
