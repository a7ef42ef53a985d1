package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"uplink/internal/logging"
	"uplink/internal/release"
	"uplink/internal/services"
	"uplink/internal/upload"
)

func newUploadCommand(cctx *commandContext) *cobra.Command {
	var trackersFlag []string
	var skipDedupe bool

	cmd := &cobra.Command{
		Use:   "upload <release-dir|release.json>",
		Short: "Upload a prepared release to the configured trackers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			releaseDir, snapshotPath, err := resolveRelease(args[0])
			if err != nil {
				return err
			}
			meta, err := release.LoadSnapshot(snapshotPath)
			if err != nil {
				return err
			}
			return runRelease(cmd, cctx, meta, releaseDir, 0, upload.Options{
				Trackers:   trackersFlag,
				SkipDedupe: skipDedupe,
			})
		},
	}

	cmd.Flags().StringSliceVarP(&trackersFlag, "trackers", "t", nil, "Restrict the run to these tracker ids")
	cmd.Flags().BoolVar(&skipDedupe, "skip-dedupe", false, "Skip the duplicate search phase")
	return cmd
}

// resolveRelease accepts either the release working directory or the
// snapshot file inside it.
func resolveRelease(arg string) (releaseDir, snapshotPath string, err error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", "", fmt.Errorf("resolve release path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("release path: %w", err)
	}
	if info.IsDir() {
		return abs, filepath.Join(abs, "release.json"), nil
	}
	return filepath.Dir(abs), abs, nil
}

// runRelease is the shared driver behind upload and resume: lock the
// release directory, run the orchestrator, persist the run, and render the
// outcome table.
func runRelease(cmd *cobra.Command, cctx *commandContext, meta *release.Meta, releaseDir string, resumeRunID int64, opts upload.Options) error {
	logger, err := cctx.ensureLogger()
	if err != nil {
		return err
	}
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}

	// One run per release directory at a time. A second invocation exits
	// instead of queueing so two runs can never interleave tracker status
	// writes.
	lock := flock.New(filepath.Join(releaseDir, ".uplink.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock release directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("release %s is already being processed by another uplink run", releaseDir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	correlationID := uuid.NewString()
	runLogger := logger.With(
		logging.String(logging.FieldCorrelationID, correlationID),
		logging.String(logging.FieldRelease, meta.WorkName()),
	)

	composer, err := cctx.newComposer(releaseDir)
	if err != nil {
		return err
	}

	store, err := cctx.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := services.WithRequestID(cmd.Context(), correlationID)
	runID := resumeRunID
	if runID == 0 {
		runID, err = store.StartRun(ctx, meta.WorkName(), releaseDir, filepath.Join(releaseDir, "release.json"))
		if err != nil {
			return err
		}
	}
	opts.RunID = runID

	orchestrator := upload.New(cfg, composer, store, runLogger)
	results, err := orchestrator.Run(ctx, meta, releaseDir, opts)
	if err != nil {
		_ = store.FinishRun(context.WithoutCancel(ctx), runID, "aborted")
		return err
	}

	failed := 0
	for _, result := range results {
		if result.State == upload.StateFailed {
			failed++
		}
	}
	status := "completed"
	if failed > 0 {
		status = "completed_with_failures"
	}
	if err := store.FinishRun(ctx, runID, status); err != nil {
		runLogger.Warn("finish run failed", logging.Error(err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderResults(out, results))
	if failed > 0 {
		return fmt.Errorf("%d of %d trackers failed; fix the cause and run `uplink resume %d`", failed, len(results), runID)
	}
	return nil
}

func renderResults(out io.Writer, results []upload.Result) string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		detail := result.Reason
		if result.Err != nil {
			detail = result.Err.Error()
		}
		link := result.DetailsURL
		rows = append(rows, []string{
			result.Tracker,
			colorizeState(out, string(result.State)),
			result.TorrentID,
			link,
			detail,
			result.Duration.Truncate(10 * time.Millisecond).String(),
		})
	}
	return renderTable(
		[]string{"Tracker", "State", "Torrent", "Link", "Detail", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
	)
}
