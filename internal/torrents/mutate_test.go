package torrents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
)

func writeBaseTorrent(t *testing.T, comment string) string {
	t.Helper()

	info := map[string]any{
		"name":         "Example.Movie.2020.1080p.mkv",
		"piece length": int64(262144),
		"pieces":       "01234567890123456789",
		"length":       int64(1048576),
		"private":      int64(1),
		"source":       "OLD",
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		t.Fatalf("marshal info: %v", err)
	}

	mi := metainfo.MetaInfo{
		Announce:  "http://old.example/announce",
		InfoBytes: infoBytes,
		Comment:   comment,
		CreatedBy: "mkbrr",
	}

	path := filepath.Join(t.TempDir(), "base.torrent")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create base torrent: %v", err)
	}
	if err := mi.Write(file); err != nil {
		t.Fatalf("write base torrent: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close base torrent: %v", err)
	}
	return path
}

func TestDeriveStripsComment(t *testing.T) {
	base := writeBaseTorrent(t, "http://tracker.example/dl?key=SECRET")
	out := filepath.Join(t.TempDir(), "[ATH].torrent")

	err := Derive(base, out, DeriveOptions{
		Tracker:     "ATH",
		AnnounceURL: "https://aither.cc/announce/abc",
		Source:      "Aither",
	})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	comment, err := Comment(out)
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if comment != "" {
		t.Errorf("comment = %q, want empty", comment)
	}
}

func TestDeriveOverwritesAnnounceAndSource(t *testing.T) {
	base := writeBaseTorrent(t, "")
	out := filepath.Join(t.TempDir(), "[BLU].torrent")

	err := Derive(base, out, DeriveOptions{
		Tracker:     "BLU",
		AnnounceURL: "https://blutopia.cc/announce/def",
		Source:      "BLU",
	})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	mi, err := metainfo.LoadFromFile(out)
	if err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if mi.Announce != "https://blutopia.cc/announce/def" {
		t.Errorf("announce = %q", mi.Announce)
	}

	var info map[string]any
	if err := bencode.Unmarshal(mi.InfoBytes, &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info["source"] != "BLU" {
		t.Errorf("source = %v, want BLU", info["source"])
	}
	if info["private"] != int64(1) {
		t.Errorf("private flag should survive untouched, got %v", info["private"])
	}
	if info["name"] != "Example.Movie.2020.1080p.mkv" {
		t.Errorf("name should survive untouched, got %v", info["name"])
	}
}

func TestDeriveInfoHashStableWithoutEntropy(t *testing.T) {
	// The base fixture carries a leftover source field. Deriving with an
	// empty source strips it, so every tracker's default variant lands on
	// the same info-hash and the uploads stay cross-seedable.
	base := writeBaseTorrent(t, "")
	dir := t.TempDir()

	for _, tracker := range []string{"T1", "T2"} {
		err := Derive(base, VariantPath(dir, tracker), DeriveOptions{
			Tracker:     tracker,
			AnnounceURL: "https://" + tracker + ".example/announce",
		})
		if err != nil {
			t.Fatalf("Derive %s: %v", tracker, err)
		}
	}

	h1, err := InfoHash(VariantPath(dir, "T1"))
	if err != nil {
		t.Fatalf("InfoHash T1: %v", err)
	}
	h2, err := InfoHash(VariantPath(dir, "T2"))
	if err != nil {
		t.Fatalf("InfoHash T2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("variants without entropy must share one info-hash: %s != %s", h1, h2)
	}
}

func TestDeriveSourceTagSplitsInfoHash(t *testing.T) {
	base := writeBaseTorrent(t, "")
	dir := t.TempDir()

	err := Derive(base, VariantPath(dir, "PLAIN"), DeriveOptions{
		Tracker:     "PLAIN",
		AnnounceURL: "https://plain.example/announce",
	})
	if err != nil {
		t.Fatalf("Derive PLAIN: %v", err)
	}
	err = Derive(base, VariantPath(dir, "TAGGED"), DeriveOptions{
		Tracker:     "TAGGED",
		AnnounceURL: "https://tagged.example/announce",
		Source:      "TAGGED",
	})
	if err != nil {
		t.Fatalf("Derive TAGGED: %v", err)
	}

	plain, err := InfoHash(VariantPath(dir, "PLAIN"))
	if err != nil {
		t.Fatalf("InfoHash PLAIN: %v", err)
	}
	tagged, err := InfoHash(VariantPath(dir, "TAGGED"))
	if err != nil {
		t.Fatalf("InfoHash TAGGED: %v", err)
	}
	if plain == tagged {
		t.Error("a configured source tag must change the info-hash")
	}
}

func TestDeriveEntropyDecorrelatesInfoHash(t *testing.T) {
	base := writeBaseTorrent(t, "")
	dir := t.TempDir()
	out := filepath.Join(dir, "entropy.torrent")

	const trials = 1000
	seen := make(map[string]struct{}, trials)
	for i := 0; i < trials; i++ {
		err := Derive(base, out, DeriveOptions{
			Tracker:     "ENT",
			AnnounceURL: "https://ent.example/announce",
			Source:      "ENT",
			EntropyBits: 32,
		})
		if err != nil {
			t.Fatalf("Derive trial %d: %v", i, err)
		}
		hash, err := InfoHash(out)
		if err != nil {
			t.Fatalf("InfoHash trial %d: %v", i, err)
		}
		if _, dup := seen[hash]; dup {
			t.Fatalf("info-hash collision after %d trials", i)
		}
		seen[hash] = struct{}{}
	}
}

func TestDeriveRejectsBadEntropyWidth(t *testing.T) {
	base := writeBaseTorrent(t, "")
	out := filepath.Join(t.TempDir(), "bad.torrent")
	err := Derive(base, out, DeriveOptions{Tracker: "X", AnnounceURL: "https://x.example/a", EntropyBits: 16})
	if err == nil {
		t.Fatal("expected error for unsupported entropy width")
	}
}

func TestStampSetsCommentWithoutTouchingInfo(t *testing.T) {
	base := writeBaseTorrent(t, "")
	out := filepath.Join(t.TempDir(), "[ATH].torrent")
	if err := Derive(base, out, DeriveOptions{Tracker: "ATH", AnnounceURL: "https://aither.cc/announce/abc", Source: "Aither"}); err != nil {
		t.Fatalf("Derive: %v", err)
	}

	before, err := InfoHash(out)
	if err != nil {
		t.Fatalf("InfoHash before: %v", err)
	}

	if err := Stamp(out, "https://aither.cc/torrents/123", "https://aither.cc/announce/live"); err != nil {
		t.Fatalf("Stamp: %v", err)
	}

	after, err := InfoHash(out)
	if err != nil {
		t.Fatalf("InfoHash after: %v", err)
	}
	if before != after {
		t.Error("Stamp must not change the info-hash")
	}

	comment, err := Comment(out)
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if comment != "https://aither.cc/torrents/123" {
		t.Errorf("comment = %q", comment)
	}

	mi, err := metainfo.LoadFromFile(out)
	if err != nil {
		t.Fatalf("load stamped: %v", err)
	}
	if mi.Announce != "https://aither.cc/announce/live" {
		t.Errorf("announce = %q", mi.Announce)
	}
}
