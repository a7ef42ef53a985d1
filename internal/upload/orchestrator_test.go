package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"uplink/internal/config"
	"uplink/internal/dedupe"
	"uplink/internal/release"
	"uplink/internal/services"
	"uplink/internal/torrents"
	"uplink/internal/tracker"
)

// fakeAdapter counts network-shaped calls so tests can assert the gate
// short-circuits before any of them run.
type fakeAdapter struct {
	id         string
	gate       tracker.Gate
	candidates []dedupe.Candidate
	searchErr  error
	submitErr  error
	receipt    tracker.Receipt
	panicIn    string

	networkCalls atomic.Int64
	submits      atomic.Int64
	ctxTracker   string
	ctxRelease   string
}

func (f *fakeAdapter) ID() string { return f.id }

func (f *fakeAdapter) PreCheck(ctx context.Context, meta *release.Meta) tracker.Gate {
	if f.panicIn == "precheck" {
		panic("adapter exploded")
	}
	return f.gate
}

func (f *fakeAdapter) Name(ctx context.Context, meta *release.Meta) (string, error) {
	return "Example.Movie.2020.1080p.Remux-GRP", nil
}

func (f *fakeAdapter) Description(ctx context.Context, meta *release.Meta) (string, error) {
	return "description", nil
}

func (f *fakeAdapter) MediaInfo(ctx context.Context, meta *release.Meta) (string, error) {
	return meta.MediaInfo, nil
}

func (f *fakeAdapter) CategoryID(meta *release.Meta) (string, error)   { return "1", nil }
func (f *fakeAdapter) TypeID(meta *release.Meta) (string, error)       { return "2", nil }
func (f *fakeAdapter) ResolutionID(meta *release.Meta) (string, error) { return "2", nil }

func (f *fakeAdapter) ExtraData(ctx context.Context, meta *release.Meta) (url.Values, error) {
	return url.Values{}, nil
}

func (f *fakeAdapter) SearchDuplicates(ctx context.Context, meta *release.Meta) ([]dedupe.Candidate, error) {
	f.networkCalls.Add(1)
	return f.candidates, f.searchErr
}

func (f *fakeAdapter) Submit(ctx context.Context, meta *release.Meta, payload tracker.Payload) (tracker.Receipt, error) {
	if f.panicIn == "submit" {
		panic("adapter exploded")
	}
	f.ctxTracker, _ = services.TrackerFromContext(ctx)
	f.ctxRelease, _ = services.ReleaseFromContext(ctx)
	f.networkCalls.Add(1)
	f.submits.Add(1)
	if f.submitErr != nil {
		return tracker.Receipt{}, f.submitErr
	}
	return f.receipt, nil
}

func writeBaseTorrent(t *testing.T, dir string) string {
	t.Helper()
	info := map[string]any{
		"name":         "Example.Movie.2020.1080p.mkv",
		"piece length": int64(262144),
		"pieces":       "01234567890123456789",
		"length":       int64(1048576),
		"private":      int64(1),
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		t.Fatal(err)
	}
	mi := metainfo.MetaInfo{Announce: "http://old.example/announce", InfoBytes: infoBytes}
	path := filepath.Join(dir, "base.torrent")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := mi.Write(file); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func testSetup(t *testing.T, trackers ...string) (*config.Config, *release.Meta, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{Trackers: map[string]config.Tracker{}}
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.StagingDir = filepath.Join(dir, "staging")
	for _, id := range trackers {
		cfg.Trackers[id] = config.Tracker{
			Enabled:     true,
			BaseURL:     "https://" + strings.ToLower(id) + ".example",
			AnnounceURL: "https://" + strings.ToLower(id) + ".example/announce/key",
			SourceTag:   id,
		}
	}
	releaseDir := filepath.Join(dir, "release")
	if err := os.MkdirAll(releaseDir, 0o755); err != nil {
		t.Fatal(err)
	}
	meta := &release.Meta{
		Title:       "Example Movie",
		Year:        2020,
		Category:    "movie",
		Type:        "remux",
		Resolution:  "1080p",
		BaseTorrent: writeBaseTorrent(t, releaseDir),
		Files:       []release.FileEntry{{Path: "Example.Movie.2020.1080p.mkv", Size: 1048576}},
	}
	return cfg, meta, releaseDir
}

func adapterFactory(adapters map[string]*fakeAdapter) func(string, tracker.Env) (tracker.Adapter, error) {
	return func(id string, env tracker.Env) (tracker.Adapter, error) {
		fake, ok := adapters[id]
		if !ok {
			return nil, errors.New("no fake for " + id)
		}
		return fake, nil
	}
}

func TestRunSuccessFinalizesAndStamps(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{id: "ATH", receipt: tracker.Receipt{
		TorrentID:   "42",
		DetailsURL:  "https://ath.example/torrents/42",
		AnnounceURL: "https://ath.example/announce/key",
	}}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].State != StateSuccess {
		t.Fatalf("unexpected results %+v", results)
	}

	entry := meta.StatusFor("ATH")
	if !entry.Terminal() || entry.TorrentID != "42" {
		t.Fatalf("status not finalized: %+v", entry)
	}

	variant := torrents.VariantPath(releaseDir, "ATH")
	comment, err := torrents.Comment(variant)
	if err != nil {
		t.Fatal(err)
	}
	if comment != "https://ath.example/torrents/42" {
		t.Fatalf("derived torrent not stamped, comment %q", comment)
	}

	if _, err := os.Stat(filepath.Join(releaseDir, "release.json")); err != nil {
		t.Fatalf("snapshot missing: %v", err)
	}
}

func TestRunPreCheckSkipMakesNoNetworkCalls(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{id: "ATH", gate: tracker.SkipGate("release group is banned")}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateSkipped {
		t.Fatalf("expected skip, got %+v", results[0])
	}
	if calls := fake.networkCalls.Load(); calls != 0 {
		t.Fatalf("pre-check skip must precede all network calls, saw %d", calls)
	}
	entry := meta.StatusFor("ATH")
	if !entry.SkipUpload || entry.SkipReason == "" {
		t.Fatalf("skip not recorded: %+v", entry)
	}
}

func TestRunIsolatesFailuresBetweenTrackers(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH", "BLU", "LST")
	adapters := map[string]*fakeAdapter{
		"ATH": {id: "ATH", receipt: tracker.Receipt{TorrentID: "1"}},
		"BLU": {id: "BLU", submitErr: services.Wrap(services.ErrTransient, "BLU", "upload", "gateway timeout", nil)},
		"LST": {id: "LST", receipt: tracker.Receipt{TorrentID: "3"}},
	}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		NewAdapter: adapterFactory(adapters),
	})
	if err != nil {
		t.Fatal(err)
	}
	byTracker := map[string]Result{}
	for _, r := range results {
		byTracker[r.Tracker] = r
	}
	if byTracker["BLU"].State != StateFailed {
		t.Fatalf("BLU should fail: %+v", byTracker["BLU"])
	}
	if byTracker["ATH"].State != StateSuccess || byTracker["LST"].State != StateSuccess {
		t.Fatalf("healthy trackers must complete: %+v", results)
	}
}

func TestRunRecoversAdapterPanic(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH", "BLU")
	adapters := map[string]*fakeAdapter{
		"ATH": {id: "ATH", panicIn: "submit"},
		"BLU": {id: "BLU", receipt: tracker.Receipt{TorrentID: "2"}},
	}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		NewAdapter: adapterFactory(adapters),
	})
	if err != nil {
		t.Fatal(err)
	}
	byTracker := map[string]Result{}
	for _, r := range results {
		byTracker[r.Tracker] = r
	}
	if byTracker["ATH"].State != StateFailed {
		t.Fatalf("panicking tracker should fail: %+v", byTracker["ATH"])
	}
	if byTracker["BLU"].State != StateSuccess {
		t.Fatalf("panic must not leak into the next tracker: %+v", byTracker["BLU"])
	}
}

func TestRunSkipsOnDuplicate(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{id: "ATH", candidates: []dedupe.Candidate{
		{Name: "Example.Movie.2020.1080p.Remux-OTHER", Size: 1048576},
	}}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateSkipped {
		t.Fatalf("expected duplicate skip, got %+v", results[0])
	}
	if fake.submits.Load() != 0 {
		t.Fatal("duplicate must prevent submission")
	}
}

func TestRunProceedsPastTrumpableDuplicate(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{
		id: "ATH",
		candidates: []dedupe.Candidate{
			{Name: "Example.Movie.2020.1080p.Remux-OLD", Size: 1048576, Trumpable: true},
		},
		receipt: tracker.Receipt{TorrentID: "42"},
	}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateSuccess {
		t.Fatalf("trumpable duplicate must not block the upload: %+v", results[0])
	}
}

func TestRunAmbiguousResponsePersistsBody(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{id: "ATH", receipt: tracker.Receipt{
		Ambiguous: true,
		RawBody:   []byte("<html>maintenance</html>"),
	}}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateAmbiguous {
		t.Fatalf("expected ambiguous state, got %+v", results[0])
	}
	entry := meta.StatusFor("ATH")
	if !entry.Terminal() || !strings.HasPrefix(entry.StatusMessage, "ambiguous") {
		t.Fatalf("ambiguity must be a terminal queryable state: %+v", entry)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.DiagnosticsDir(), "ATH-upload-*.html"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("raw response body not persisted, matches %v", matches)
	}
}

func TestRunResumeSkipsFinalizedTrackers(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH", "BLU")
	if err := meta.Finalize("ATH", release.TrackerStatus{StatusMessage: "uploaded", TorrentID: "42"}); err != nil {
		t.Fatal(err)
	}
	adapters := map[string]*fakeAdapter{
		"ATH": {id: "ATH"},
		"BLU": {id: "BLU", receipt: tracker.Receipt{TorrentID: "7"}},
	}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(adapters),
	})
	if err != nil {
		t.Fatal(err)
	}
	if adapters["ATH"].submits.Load() != 0 {
		t.Fatal("finalized tracker must not be resubmitted")
	}
	byTracker := map[string]Result{}
	for _, r := range results {
		byTracker[r.Tracker] = r
	}
	if byTracker["ATH"].State != StateSuccess || byTracker["ATH"].TorrentID != "42" {
		t.Fatalf("resume should report the prior outcome: %+v", byTracker["ATH"])
	}
	if byTracker["BLU"].State != StateSuccess {
		t.Fatalf("remaining tracker should run: %+v", byTracker["BLU"])
	}
}

func TestSelectTrackersRejectsDisabled(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	cfg.Trackers["OFF"] = config.Tracker{Enabled: false}

	o := New(cfg, nil, nil, nil)
	_, err := o.Run(context.Background(), meta, releaseDir, Options{
		Trackers:   []string{"off"},
		NewAdapter: adapterFactory(nil),
	})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunRetriesFailedTrackerAfterRestore(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	failing := &fakeAdapter{id: "ATH", submitErr: services.Wrap(services.ErrTransient, "ATH", "upload", "gateway timeout", nil)}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": failing}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateFailed {
		t.Fatalf("first run should fail: %+v", results[0])
	}

	// A later invocation starts from the persisted snapshot. The failed
	// tracker must be open for another attempt, not frozen at its failure.
	restored, err := release.LoadSnapshot(filepath.Join(releaseDir, "release.json"))
	if err != nil {
		t.Fatal(err)
	}
	healthy := &fakeAdapter{id: "ATH", receipt: tracker.Receipt{TorrentID: "42"}}
	results, err = o.Run(context.Background(), restored, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": healthy}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if healthy.submits.Load() != 1 {
		t.Fatal("failed tracker must be retried after a restore")
	}
	if results[0].State != StateSuccess {
		t.Fatalf("retry should succeed: %+v", results[0])
	}
	if entry := restored.StatusFor("ATH"); !entry.Terminal() || entry.TorrentID != "42" {
		t.Fatalf("retry outcome not finalized: %+v", entry)
	}
}

func TestFailureStatusRecordsKind(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{id: "ATH", submitErr: services.Wrap(services.ErrAuth, "ATH", "upload", "api token rejected", nil)}

	o := New(cfg, nil, nil, nil)
	if _, err := o.Run(context.Background(), meta, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	}); err != nil {
		t.Fatal(err)
	}
	entry := meta.StatusFor("ATH")
	if !strings.HasPrefix(entry.StatusMessage, "failed (auth): ") {
		t.Fatalf("status message should carry the failure kind: %q", entry.StatusMessage)
	}
}

func TestRunStagesOutsideBaseTorrent(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	meta.BaseTorrent = writeBaseTorrent(t, t.TempDir())
	fake := &fakeAdapter{id: "ATH", receipt: tracker.Receipt{TorrentID: "42"}}

	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateSuccess {
		t.Fatalf("unexpected results %+v", results)
	}
	if filepath.Dir(meta.BaseTorrent) != releaseDir {
		t.Fatalf("base torrent should be staged into the release directory, got %s", meta.BaseTorrent)
	}
	if _, err := os.Stat(filepath.Join(releaseDir, "base.torrent")); err != nil {
		t.Fatalf("staged copy missing: %v", err)
	}
}

func TestRunCarriesIdentityOnContext(t *testing.T) {
	cfg, meta, releaseDir := testSetup(t, "ATH")
	fake := &fakeAdapter{id: "ATH", receipt: tracker.Receipt{TorrentID: "42"}}

	o := New(cfg, nil, nil, nil)
	if _, err := o.Run(context.Background(), meta, releaseDir, Options{
		SkipDedupe: true,
		NewAdapter: adapterFactory(map[string]*fakeAdapter{"ATH": fake}),
	}); err != nil {
		t.Fatal(err)
	}
	if fake.ctxTracker != "ATH" {
		t.Errorf("context tracker = %q, want ATH", fake.ctxTracker)
	}
	if fake.ctxRelease != meta.WorkName() {
		t.Errorf("context release = %q, want %q", fake.ctxRelease, meta.WorkName())
	}
}

func TestRunUploadsThroughCookieAdapter(t *testing.T) {
	var gotCookie, gotCategory, gotName string
	mux := http.NewServeMux()
	mux.HandleFunc("/usercp.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><a href="logout.php">Logout</a></html>`)
	})
	mux.HandleFunc("/upload.php", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotCategory = r.FormValue("category")
		gotName = r.FormValue("name")
		fmt.Fprint(w, `<html><a href="details.php?id=777">uploaded</a></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg, meta, releaseDir := testSetup(t, "HDT")
	serverURL, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	cookiePath := filepath.Join(t.TempDir(), "hdt.cookies")
	line := serverURL.Hostname() + "\tFALSE\t/\tFALSE\t0\tsession\tabc123\n"
	if err := os.WriteFile(cookiePath, []byte("# Netscape HTTP Cookie File\n"+line), 0o600); err != nil {
		t.Fatal(err)
	}

	trk := cfg.Trackers["HDT"]
	trk.BaseURL = server.URL
	trk.AnnounceURL = server.URL + "/announce/key"
	trk.CookiePath = cookiePath
	trk.Session = config.SessionCheck{URL: server.URL + "/usercp.php", SuccessText: "Logout"}
	cfg.Trackers["HDT"] = trk

	// No adapter override: this run goes through the registry and the real
	// cookie backed adapter.
	o := New(cfg, nil, nil, nil)
	results, err := o.Run(context.Background(), meta, releaseDir, Options{SkipDedupe: true})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].State != StateSuccess {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].TorrentID != "777" {
		t.Errorf("torrent id = %q, want 777", results[0].TorrentID)
	}
	if gotCookie != "abc123" {
		t.Errorf("upload must ride the loaded session cookie, got %q", gotCookie)
	}
	if gotCategory != "40" {
		t.Errorf("movie remux should post category 40, got %q", gotCategory)
	}
	if gotName == "" {
		t.Error("upload form carried no release name")
	}
}

func TestMatchesRelease(t *testing.T) {
	meta := &release.Meta{Name: "Example.Movie.2020.1080p.BluRay.Remux.AVC.DTS-HD.MA.5.1-GRP"}

	tests := []struct {
		name      string
		candidate dedupe.Candidate
		total     int64
		want      bool
	}{
		{"size within one percent", dedupe.Candidate{Size: 1000}, 1005, true},
		{"size far off", dedupe.Candidate{Size: 1000}, 2000, false},
		{"renamed same release", dedupe.Candidate{Name: "Example.Movie.2020.REPACK.1080p.BluRay.Remux.AVC.DTS-HD.MA.5.1-GRP"}, 0, true},
		{"different cut entirely", dedupe.Candidate{Name: "Other.Film.1999.720p.WEB-DL.x264-ABC"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchesRelease(tt.candidate, meta, tt.total); got != tt.want {
				t.Errorf("matchesRelease = %v, want %v", got, tt.want)
			}
		})
	}
}
