package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the mt5bridge CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mt5bridge version %s\n", version)
		fmt.Println("File-based command bridge to a MetaTrader 5 terminal")
		fmt.Println("https://github.com/rustyeddy/mt5bridge")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
