package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/mt5bridge/simpeer"
	"github.com/rustyeddy/mt5bridge/transport"
)

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run a simulated terminal against the bridge directory",
	Long: `Run an in-memory terminal peer that answers bridge requests. Useful for
developing against the bridge without a live MetaTrader install.

Quotes are seeded with --quote and can be repeated:

  mt5bridge peer -d /tmp/bridge --balance 10000 \
      --quote EURUSD:1.1000:1.1002 --quote XAUUSD:2300.10:2300.60

The peer runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runPeer,
}

var (
	peerBalance  float64
	peerCurrency string
	peerQuotes   []string
)

func init() {
	rootCmd.AddCommand(peerCmd)

	peerCmd.Flags().Float64Var(&peerBalance, "balance", 10000, "starting account balance")
	peerCmd.Flags().StringVar(&peerCurrency, "currency", "USD", "account currency")
	peerCmd.Flags().StringArrayVar(&peerQuotes, "quote", nil, "seed quote as SYMBOL:BID:ASK (repeatable)")
}

func runPeer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	dir, err := transport.NewDir(cfg.Bridge.Dir, log)
	if err != nil {
		return err
	}
	p := simpeer.New(dir, simpeer.Account{Balance: peerBalance, Currency: peerCurrency}, log)

	for _, q := range peerQuotes {
		parts := strings.Split(q, ":")
		if len(parts) != 3 {
			return fmt.Errorf("bad quote %q, want SYMBOL:BID:ASK", q)
		}
		bid, err1 := strconv.ParseFloat(parts[1], 64)
		ask, err2 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil {
			return fmt.Errorf("bad quote %q, want SYMBOL:BID:ASK", q)
		}
		p.SetQuote(parts[0], bid, ask)
	}

	p.Start()
	defer p.Stop()
	fmt.Printf("peer serving %s (balance %.2f %s), ^C to stop\n", cfg.Bridge.Dir, peerBalance, peerCurrency)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-cmd.Context().Done():
	}
	fmt.Println("peer stopping")
	return nil
}
