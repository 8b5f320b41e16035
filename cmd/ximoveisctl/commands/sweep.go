package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	sweepDryRun bool
	sweepMinAge time.Duration
)

var sweepCmd = &cobra.Command{
	Use:   "sweep-orphans",
	Short: "Remove uploaded files no listing references",
	Long: `Scan the upload directory and remove files that no property image or
certificate row references. Files younger than --min-age are kept so uploads
still in flight are not touched.

Examples:
  ximoveisctl sweep-orphans --dry-run
  ximoveisctl sweep-orphans --min-age 48h --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context())
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "list orphans without removing them")
	sweepCmd.Flags().DurationVar(&sweepMinAge, "min-age", 24*time.Hour, "only consider files older than this")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(ctx context.Context) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	report, err := a.Service.SweepOrphans(ctx, sweepMinAge, sweepDryRun)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(report)
	}

	for _, ref := range report.Orphans {
		fmt.Println(ref)
	}
	if sweepDryRun {
		fmt.Printf("%d orphaned files (%d bytes), dry run: nothing removed\n", len(report.Orphans), report.Bytes)
		return nil
	}
	fmt.Printf("removed %d of %d orphaned files (%d bytes)\n", report.Removed, len(report.Orphans), report.Bytes)
	return nil
}
