package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close <ticket|all>",
	Short: "Close a position, partially or in full",
	Long: `Close one position by ticket, or every open position with "all".
--volume closes only part of the position.

Example:
  mt5bridge close 100042
  mt5bridge close 100042 --volume 0.3
  mt5bridge close all`,
	Args: cobra.ExactArgs(1),
	RunE: runClose,
}

var closeVolume float64

func init() {
	rootCmd.AddCommand(closeCmd)

	closeCmd.Flags().Float64Var(&closeVolume, "volume", 0, "volume to close (0 = all of it)")
}

func runClose(cmd *cobra.Command, args []string) error {
	b, err := openBridge()
	if err != nil {
		return err
	}
	defer b.Close()

	if args[0] == "all" {
		if cmd.Flags().Changed("volume") {
			return fmt.Errorf("--volume cannot be combined with close all")
		}
		n, err := b.CloseAllPositions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("closed %d position(s)\n", n)
		return nil
	}

	var volume *float64
	if cmd.Flags().Changed("volume") {
		volume = &closeVolume
	}
	res, err := b.ClosePosition(cmd.Context(), args[0], volume)
	if err != nil {
		return err
	}
	fmt.Printf("closed %s: volume=%.2f profit=%.2f\n", res.Ticket, res.ClosedVolume, res.Profit)
	return nil
}
