package upload

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"uplink/internal/config"
	"uplink/internal/dedupe"
	"uplink/internal/describe"
	"uplink/internal/fileutil"
	"uplink/internal/logging"
	"uplink/internal/release"
	"uplink/internal/services"
	"uplink/internal/textutil"
	"uplink/internal/torrents"
	"uplink/internal/tracker"
)

// State names the terminal outcome of one tracker's processing.
type State string

const (
	StateSkipped   State = "skipped"
	StateSuccess   State = "success"
	StateAmbiguous State = "ambiguous"
	StateFailed    State = "failed"
)

// Result is the terminal record for one tracker in one run.
type Result struct {
	Tracker    string
	State      State
	Reason     string
	TorrentID  string
	DetailsURL string
	Err        error
	Duration   time.Duration
}

// Recorder persists per-tracker outcomes. The run store implements it; a
// nil recorder disables persistence.
type Recorder interface {
	RecordResult(ctx context.Context, runID int64, result Result) error
}

// Options tunes one orchestrator run.
type Options struct {
	// Trackers restricts the run to a subset of the enabled trackers.
	// Empty means all enabled.
	Trackers []string
	// SkipDedupe bypasses the duplicate search phase.
	SkipDedupe bool
	// RunID links recorded results to a run store row.
	RunID int64
	// NewAdapter overrides adapter construction, used by tests. Defaults
	// to the package registry.
	NewAdapter func(id string, env tracker.Env) (tracker.Adapter, error)
}

// Orchestrator drives a release through every configured tracker. Trackers
// are processed in deterministic order and isolated from each other: one
// tracker's failure, misbehavior, or panic never reaches the next.
type Orchestrator struct {
	cfg      *config.Config
	composer *describe.Composer
	recorder Recorder
	logger   *slog.Logger
	client   *http.Client
}

// New builds an orchestrator. composer and recorder may be nil.
func New(cfg *config.Config, composer *describe.Composer, recorder Recorder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		composer: composer,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "upload"),
		client:   services.NewHTTPClient(time.Duration(cfg.HTTP.UploadTimeout)*time.Second, cfg.HTTP.UserAgent),
	}
}

// Run processes the release against each selected tracker and snapshots the
// metadata after every tracker reaches a terminal state, so an interrupted
// run can resume without repeating finished work.
func (o *Orchestrator) Run(ctx context.Context, meta *release.Meta, releaseDir string, opts Options) ([]Result, error) {
	trackers, err := o.selectTrackers(opts.Trackers)
	if err != nil {
		return nil, err
	}
	if opts.NewAdapter == nil {
		opts.NewAdapter = tracker.New
	}
	ctx = services.WithRelease(ctx, meta.WorkName())

	if err := o.stageBaseTorrent(meta, releaseDir); err != nil {
		return nil, err
	}

	snapshotPath := filepath.Join(releaseDir, "release.json")
	results := make([]Result, 0, len(trackers))
	for _, id := range trackers {
		if err := ctx.Err(); err != nil {
			return results, services.Wrap(services.ErrTimeout, "", "run", "run canceled", err)
		}
		result := o.runTracker(ctx, meta, releaseDir, id, opts)
		results = append(results, result)

		if err := meta.Snapshot(snapshotPath); err != nil {
			o.logger.Warn("snapshot failed", logging.String(logging.FieldTracker, id), logging.Error(err))
		}
		if o.recorder != nil {
			if err := o.recorder.RecordResult(ctx, opts.RunID, result); err != nil {
				o.logger.Warn("record result failed", logging.String(logging.FieldTracker, id), logging.Error(err))
			}
		}
	}
	return results, nil
}

func (o *Orchestrator) selectTrackers(requested []string) ([]string, error) {
	enabled := o.cfg.EnabledTrackers()
	if len(requested) == 0 {
		return enabled, nil
	}
	enabledSet := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		enabledSet[id] = true
	}
	selected := make([]string, 0, len(requested))
	for _, id := range requested {
		key := strings.ToUpper(strings.TrimSpace(id))
		if !enabledSet[key] {
			return nil, services.Wrap(services.ErrConfiguration, key, "run", "tracker is not enabled in the configuration", nil)
		}
		selected = append(selected, key)
	}
	return selected, nil
}

// stageBaseTorrent copies the base torrent into the release directory when
// it lives elsewhere, so every run input travels with the release and the
// original file can be moved or deleted between runs. The copy is hash
// verified because a truncated torrent uploads fine and only breaks once
// the tracker serves it back.
func (o *Orchestrator) stageBaseTorrent(meta *release.Meta, releaseDir string) error {
	if meta.BaseTorrent == "" {
		return services.Wrap(services.ErrValidation, "", "stage", "release has no base torrent", nil)
	}
	srcDir, err := filepath.Abs(filepath.Dir(meta.BaseTorrent))
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "stage", "resolve base torrent path", err)
	}
	dstDir, err := filepath.Abs(releaseDir)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "stage", "resolve release directory", err)
	}
	if srcDir == dstDir {
		return nil
	}
	staged := filepath.Join(releaseDir, filepath.Base(meta.BaseTorrent))
	if err := fileutil.CopyFileVerified(meta.BaseTorrent, staged); err != nil {
		return services.Wrap(services.ErrValidation, "", "stage", "stage base torrent into release directory", err)
	}
	o.logger.Debug("staged base torrent", "source", meta.BaseTorrent, "staged", staged)
	meta.BaseTorrent = staged
	return nil
}

// runTracker walks one tracker through the state machine. It never returns
// an error: every failure mode, panics included, collapses into a terminal
// Result so the remaining trackers still run.
func (o *Orchestrator) runTracker(ctx context.Context, meta *release.Meta, releaseDir, id string, opts Options) (result Result) {
	start := time.Now()
	ctx = services.WithTracker(ctx, id)
	log := logging.WithContext(ctx, o.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("tracker adapter panicked", logging.String("panic", fmt.Sprint(r)), logging.String("stack", string(debug.Stack())))
			result = o.finalize(meta, id, Result{
				Tracker: id,
				State:   StateFailed,
				Reason:  "adapter panic",
				Err:     fmt.Errorf("panic: %v", r),
			})
		}
		result.Duration = time.Since(start)
	}()

	if entry := meta.StatusFor(id); entry.Terminal() {
		log.Info("tracker already finalized, skipping", "status", entry.StatusMessage)
		return resultFromStatus(id, entry)
	}

	trk, ok := o.cfg.TrackerConfig(id)
	if !ok {
		return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "tracker missing from configuration",
			Err: services.Wrap(services.ErrConfiguration, id, "run", "tracker missing from configuration", nil)})
	}

	adapter, err := opts.NewAdapter(id, tracker.Env{
		Tracker:  trk,
		Config:   o.cfg,
		Client:   o.client,
		Composer: o.composer,
		Logger:   o.logger,
	})
	if err != nil {
		return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "adapter construction failed", Err: err})
	}

	// Gate before any network traffic.
	switch gate := adapter.PreCheck(ctx, meta); gate.Action {
	case tracker.Skip:
		log.Info("pre-check skipped upload", "reason", gate.Reason)
		return o.finalize(meta, id, Result{Tracker: id, State: StateSkipped, Reason: gate.Reason})
	case tracker.Fatal:
		return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "pre-check failed", Err: gate.Err})
	}

	if bound, ok := adapter.(tracker.SessionBound); ok {
		if err := bound.EnsureSession(ctx); err != nil {
			return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "session validation failed", Err: err})
		}
		defer bound.Close()
	}

	if !opts.SkipDedupe {
		if skip, reason := o.checkDuplicates(ctx, log, adapter, meta); skip {
			return o.finalize(meta, id, Result{Tracker: id, State: StateSkipped, Reason: reason})
		}
	}

	payload, err := o.gather(ctx, adapter, meta)
	if err != nil {
		return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "capability gathering failed", Err: err})
	}

	variant := torrents.VariantPath(releaseDir, id)
	if err := torrents.Derive(meta.BaseTorrent, variant, torrents.DeriveOptions{
		Tracker:     id,
		AnnounceURL: trk.AnnounceURL,
		Source:      trk.SourceTag,
		EntropyBits: trk.EntropyBits,
	}); err != nil {
		return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "torrent derivation failed", Err: err})
	}
	payload.TorrentPath = variant
	payload.NFOPath = meta.NFOPath

	log.Info("submitting upload", "name", payload.Name)
	receipt, err := adapter.Submit(ctx, meta, payload)
	if err != nil {
		return o.finalize(meta, id, Result{Tracker: id, State: StateFailed, Reason: "upload failed", Err: err})
	}
	if receipt.Ambiguous {
		saved := o.persistAmbiguousBody(id, receipt.RawBody)
		log.Warn("upload outcome is ambiguous, verify on the site before retrying",
			"response_file", saved)
		return o.finalize(meta, id, Result{Tracker: id, State: StateAmbiguous,
			Reason: "response carried no success marker, verify on the site before retrying"})
	}

	if receipt.AnnounceURL != "" || receipt.DetailsURL != "" {
		if err := torrents.Stamp(variant, receipt.DetailsURL, receipt.AnnounceURL); err != nil {
			log.Warn("stamping derived torrent failed", logging.Error(err))
		}
	}

	log.Info("upload confirmed", "torrent_id", receipt.TorrentID, "details_url", receipt.DetailsURL)
	return o.finalize(meta, id, Result{
		Tracker:    id,
		State:      StateSuccess,
		TorrentID:  receipt.TorrentID,
		DetailsURL: receipt.DetailsURL,
	})
}

// gather fans the capability calls out and joins all-or-nothing: a payload
// is only submitted when every capability produced its part.
func (o *Orchestrator) gather(ctx context.Context, adapter tracker.Adapter, meta *release.Meta) (tracker.Payload, error) {
	var payload tracker.Payload

	if id, err := adapter.CategoryID(meta); err != nil {
		return payload, err
	} else {
		payload.CategoryID = id
	}
	if id, err := adapter.TypeID(meta); err != nil {
		return payload, err
	} else {
		payload.TypeID = id
	}
	if id, err := adapter.ResolutionID(meta); err != nil {
		return payload, err
	} else {
		payload.ResolutionID = id
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		name, err := adapter.Name(gctx, meta)
		payload.Name = name
		return err
	})
	g.Go(func() error {
		description, err := adapter.Description(gctx, meta)
		payload.Description = description
		return err
	})
	g.Go(func() error {
		mediaInfo, err := adapter.MediaInfo(gctx, meta)
		payload.MediaInfo = mediaInfo
		return err
	})
	g.Go(func() error {
		extra, err := adapter.ExtraData(gctx, meta)
		payload.Extra = extra
		return err
	})
	if err := g.Wait(); err != nil {
		return tracker.Payload{}, err
	}
	return payload, nil
}

// checkDuplicates runs the tracker's duplicate search and decides whether
// the release is already on the site. A failing search logs a warning and
// lets the upload proceed: trackers reject true duplicates server-side, and
// a flaky search endpoint must not block a whole batch.
func (o *Orchestrator) checkDuplicates(ctx context.Context, log *slog.Logger, adapter tracker.Adapter, meta *release.Meta) (bool, string) {
	candidates, err := adapter.SearchDuplicates(ctx, meta)
	if err != nil {
		log.Warn("duplicate search failed, proceeding", logging.Error(err))
		return false, ""
	}
	var total int64
	for _, f := range meta.Files {
		total += f.Size
	}
	for _, candidate := range candidates {
		if !matchesRelease(candidate, meta, total) {
			continue
		}
		if candidate.Trumpable {
			log.Info("found trumpable duplicate, proceeding", "candidate", candidate.Name)
			continue
		}
		return true, fmt.Sprintf("duplicate already on site: %s", candidate.Name)
	}
	return false, ""
}

// duplicateNameThreshold is the cosine similarity above which two release
// names are considered the same release. Dotted names tokenize into their
// title, year, and technical components, so sibling encodes of the same
// film score well below this while renames of the same release score above.
const duplicateNameThreshold = 0.85

// matchesRelease treats a candidate as the same release when its size is
// within one percent of ours, falling back to fuzzy name comparison for
// scrapes that expose no size.
func matchesRelease(candidate dedupe.Candidate, meta *release.Meta, totalSize int64) bool {
	if candidate.Size > 0 && totalSize > 0 {
		diff := candidate.Size - totalSize
		if diff < 0 {
			diff = -diff
		}
		return diff*100 <= totalSize
	}
	if meta.Name == "" || candidate.Name == "" {
		return false
	}
	if strings.EqualFold(candidate.Name, meta.Name) {
		return true
	}
	ours := textutil.NewFingerprint(meta.Name)
	theirs := textutil.NewFingerprint(candidate.Name)
	return textutil.CosineSimilarity(ours, theirs) >= duplicateNameThreshold
}

// persistAmbiguousBody writes the raw response to the diagnostics directory
// so the operator can inspect what the site actually said.
func (o *Orchestrator) persistAmbiguousBody(id string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	dir := o.cfg.DiagnosticsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-upload-%d.html", id, time.Now().Unix()))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return ""
	}
	return path
}

// finalize writes the result into the release's tracker status exactly
// once and returns it unchanged.
func (o *Orchestrator) finalize(meta *release.Meta, id string, result Result) Result {
	update := release.TrackerStatus{
		StatusMessage: statusMessage(result),
		TorrentID:     result.TorrentID,
	}
	if result.State == StateSkipped {
		update.SkipUpload = true
		update.SkipReason = result.Reason
	}
	if err := meta.Finalize(id, update); err != nil {
		o.logger.Error("status finalization conflict", logging.String(logging.FieldTracker, id), logging.Error(err))
	}
	return result
}

func statusMessage(result Result) string {
	switch result.State {
	case StateSuccess:
		return "uploaded"
	case StateSkipped:
		return "skipped: " + result.Reason
	case StateAmbiguous:
		return "ambiguous: " + result.Reason
	default:
		if result.Err != nil {
			return fmt.Sprintf("failed (%s): %s", services.Classify(result.Err), result.Err.Error())
		}
		return "failed: " + result.Reason
	}
}

// resultFromStatus reconstructs a Result from an already finalized status
// entry, used when resuming a run.
func resultFromStatus(id string, entry *release.TrackerStatus) Result {
	result := Result{Tracker: id, TorrentID: entry.TorrentID}
	switch {
	case entry.SkipUpload:
		result.State = StateSkipped
		result.Reason = entry.SkipReason
	case strings.HasPrefix(entry.StatusMessage, "ambiguous"):
		result.State = StateAmbiguous
		result.Reason = entry.StatusMessage
	case strings.HasPrefix(entry.StatusMessage, "failed"):
		result.State = StateFailed
		result.Reason = entry.StatusMessage
	default:
		result.State = StateSuccess
	}
	return result
}
