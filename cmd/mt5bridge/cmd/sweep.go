package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/mt5bridge/transport"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove stale bridge files once",
	Long: `Run one retention sweep over the bridge directory: request, response
and leftover temp files older than --max-age are removed, or compressed
into the archive/ subdirectory with --archive.

The bridge does this periodically while running; this command is for
cleaning up after crashes or on a schedule.

Example:
  mt5bridge sweep -d /tmp/bridge --max-age 10m --archive`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var (
	sweepMaxAge  time.Duration
	sweepArchive bool
)

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().DurationVar(&sweepMaxAge, "max-age", 5*time.Minute, "age beyond which files are swept")
	sweepCmd.Flags().BoolVar(&sweepArchive, "archive", false, "compress swept files into archive/ instead of deleting")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := transport.NewDir(cfg.Bridge.Dir, newLogger(cfg))
	if err != nil {
		return err
	}

	res, err := dir.Sweep(sweepMaxAge, sweepArchive)
	if err != nil {
		return err
	}
	fmt.Printf("swept %s: %d removed, %d archived\n", cfg.Bridge.Dir, res.Removed, res.Archived)
	return nil
}
