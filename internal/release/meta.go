package release

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"uplink/internal/textutil"
)

// FileEntry describes one file of a release.
type FileEntry struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// DiscEntry describes one disc of a disc-based release.
type DiscEntry struct {
	Label   string `json:"label"`
	Path    string `json:"path"`
	Summary string `json:"summary"` // extracted BD-info/mediainfo text
}

// Image is one hosted screenshot in its three published forms.
type Image struct {
	ImgURL string `json:"img_url"`
	RawURL string `json:"raw_url"`
	WebURL string `json:"web_url"`
}

// TrackerStatus is the per-tracker terminal record. It is created lazily the
// first time any component touches that tracker and its terminal state is
// written exactly once.
type TrackerStatus struct {
	StatusMessage string `json:"status_message"`
	SkipUpload    bool   `json:"skip_upload"`
	TorrentID     string `json:"torrent_id"`
	SkipReason    string `json:"skip_reason"`

	terminal bool
}

// Terminal reports whether the entry has reached its terminal state.
func (s *TrackerStatus) Terminal() bool {
	return s != nil && s.terminal
}

// Meta is the release metadata record shared across the upload pipeline.
//
// It is created once per run by the upstream preparation stages and then read
// by every adapter. Adapters must treat all fields except Name, Description,
// and their own tracker status entry as read-only; the orchestrator is the
// only writer for everything else.
type Meta struct {
	Title        string   `json:"title"`
	Year         int      `json:"year"`
	Name         string   `json:"name"` // composed release name, per-tracker
	Description  string   `json:"description"`
	Category     string   `json:"category"` // movie or tv
	Type         string   `json:"type"`     // disc, remux, encode, web
	Resolution   string   `json:"resolution"`
	ReleaseGroup string   `json:"release_group"`
	IMDBID       string   `json:"imdb_id"`
	TMDBID       int64    `json:"tmdb_id"`
	Region       string   `json:"region"`
	Distributor  string   `json:"distributor"`
	MediaPath    string   `json:"media_path"`
	BaseTorrent  string   `json:"base_torrent"`
	NFOPath      string   `json:"nfo_path"`
	MediaInfo    string   `json:"media_info"` // extracted technical text for file releases
	AudioLangs   []string `json:"audio_languages"`
	SubtitleLangs []string `json:"subtitle_languages"`

	Files []FileEntry `json:"files"`
	Discs []DiscEntry `json:"discs"`

	// PrimaryScreens is the screenshot set produced upstream for the first
	// file/disc; pack buckets beyond index zero go through the image cache.
	PrimaryScreens []Image `json:"primary_screens"`

	Trackers map[string]*TrackerStatus `json:"trackers"`

	SnapshotAt time.Time `json:"snapshot_at"`
}

// IsPack reports whether the release spans multiple files or discs.
func (m *Meta) IsPack() bool {
	return len(m.Files) > 1 || len(m.Discs) > 1
}

// BucketCount returns the number of screenshot buckets the release carries:
// one per file for file releases, one per disc for disc releases.
func (m *Meta) BucketCount() int {
	if len(m.Discs) > 0 {
		return len(m.Discs)
	}
	return len(m.Files)
}

// StatusFor returns the tracker's status entry, creating it on first touch.
func (m *Meta) StatusFor(tracker string) *TrackerStatus {
	if m.Trackers == nil {
		m.Trackers = make(map[string]*TrackerStatus)
	}
	entry, ok := m.Trackers[tracker]
	if !ok {
		entry = &TrackerStatus{}
		m.Trackers[tracker] = entry
	}
	return entry
}

// Finalize writes the tracker's terminal state. A second finalize for the
// same tracker is rejected so status entries are written exactly once.
func (m *Meta) Finalize(tracker string, update TrackerStatus) error {
	entry := m.StatusFor(tracker)
	if entry.terminal {
		return fmt.Errorf("tracker %s status already finalized", tracker)
	}
	entry.StatusMessage = update.StatusMessage
	entry.SkipUpload = update.SkipUpload
	entry.TorrentID = update.TorrentID
	entry.SkipReason = update.SkipReason
	entry.terminal = true
	return nil
}

// WorkName returns the filesystem-safe identifier used for the release's
// staging directory and snapshot files.
func (m *Meta) WorkName() string {
	name := textutil.SanitizeTitle(m.Title)
	if name == "" {
		name = "release"
	}
	if m.Year > 0 {
		name = fmt.Sprintf("%s (%d)", name, m.Year)
	}
	return name
}

// Snapshot persists the record as JSON for crash recovery. The write goes
// through a temp file and rename so a crash never leaves a torn snapshot.
func (m *Meta) Snapshot(path string) error {
	m.SnapshotAt = time.Now().UTC()
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure snapshot directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot restores a previously persisted record.
func LoadSnapshot(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no snapshot at %s: %w", path, err)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	// An entry only ever gets a status message through Finalize. Uploaded,
	// skipped, and ambiguous outcomes stay terminal across runs; failed
	// entries are left re-openable so resume can retry them once the
	// operator has fixed the cause.
	for _, entry := range meta.Trackers {
		if entry == nil || entry.StatusMessage == "" {
			continue
		}
		if strings.HasPrefix(entry.StatusMessage, "failed") {
			continue
		}
		entry.terminal = true
	}
	return &meta, nil
}
