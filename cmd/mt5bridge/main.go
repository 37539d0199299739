package main

import (
	"os"

	"github.com/rustyeddy/mt5bridge/cmd/mt5bridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
