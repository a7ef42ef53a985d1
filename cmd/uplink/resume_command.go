package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"uplink/internal/release"
	"uplink/internal/upload"
)

func newResumeCommand(cctx *commandContext) *cobra.Command {
	var trackersFlag []string
	var skipDedupe bool

	cmd := &cobra.Command{
		Use:   "resume <run-id|release-dir>",
		Short: "Resume an interrupted run, skipping trackers that already finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := cctx.openStore()
			if err != nil {
				return err
			}

			var releaseDir, snapshotPath string
			var runID int64
			if id, convErr := strconv.ParseInt(args[0], 10, 64); convErr == nil {
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					store.Close()
					return fmt.Errorf("look up run %d: %w", id, err)
				}
				runID = run.ID
				releaseDir = run.ReleaseDir
				snapshotPath = run.SnapshotPath
			} else {
				releaseDir, snapshotPath, err = resolveRelease(args[0])
				if err != nil {
					store.Close()
					return err
				}
			}
			store.Close()

			meta, err := release.LoadSnapshot(snapshotPath)
			if err != nil {
				return fmt.Errorf("%w\nresume needs the snapshot the interrupted run left in %s", err, filepath.Dir(snapshotPath))
			}
			return runRelease(cmd, cctx, meta, releaseDir, runID, upload.Options{
				Trackers:   trackersFlag,
				SkipDedupe: skipDedupe,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&trackersFlag, "trackers", "t", nil, "Restrict the resumed run to these tracker ids")
	cmd.Flags().BoolVar(&skipDedupe, "skip-dedupe", false, "Skip the duplicate search phase")
	return cmd
}
