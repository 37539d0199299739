package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/mt5bridge/bridge"
	"github.com/rustyeddy/mt5bridge/config"
)

var rootCmd = &cobra.Command{
	Use:   "mt5bridge",
	Short: "File-based command bridge to a MetaTrader 5 terminal",
	Long: `mt5bridge talks to a MetaTrader 5 terminal through a shared directory of
request and response files, the only channel available when the terminal
runs under Wine.

It provides commands for:
  - Checking terminal connectivity
  - Fetching quotes, candles, account state and open positions
  - Placing, modifying and closing market orders
  - Risk-based position sizing
  - Running a simulated terminal peer for development

Complete documentation is available at https://github.com/rustyeddy/mt5bridge`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

var (
	cfgPath     string
	dirOverride string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVarP(&dirOverride, "dir", "d", "", "bridge directory (overrides config)")
}

// loadConfig resolves the effective configuration: file if given, defaults
// otherwise, with the --dir flag applied on top.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if dirOverride != "" {
		cfg.Bridge.Dir = dirOverride
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openBridge builds and starts a bridge from the effective config. The
// caller owns the Close.
func openBridge() (*bridge.Bridge, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	b, err := bridge.New(cfg, newLogger(cfg))
	if err != nil {
		return nil, err
	}
	if err := b.Start(); err != nil {
		return nil, err
	}
	return b, nil
}
