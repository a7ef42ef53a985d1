package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Error("missing file should report exists=false")
	}
	if resolved == "" {
		t.Error("resolved path should not be empty")
	}
	if cfg.Description.ProcessedFileLimit != defaultProcessedFileLimit {
		t.Errorf("ProcessedFileLimit = %d, want default %d", cfg.Description.ProcessedFileLimit, defaultProcessedFileLimit)
	}
	if cfg.HTTP.RequestTimeout != defaultRequestTimeout {
		t.Errorf("RequestTimeout = %d, want default %d", cfg.HTTP.RequestTimeout, defaultRequestTimeout)
	}
}

func TestLoadNormalizesTrackerBlocks(t *testing.T) {
	path := writeConfig(t, `
[trackers.ath]
enabled = true
base_url = "https://aither.cc/"
announce_url = " https://aither.cc/announce/abc "
api_key = "key"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	trk, ok := cfg.TrackerConfig("ATH")
	if !ok {
		t.Fatal("tracker identifier should be upper-cased")
	}
	if trk.BaseURL != "https://aither.cc" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", trk.BaseURL)
	}
	if trk.AnnounceURL != "https://aither.cc/announce/abc" {
		t.Errorf("AnnounceURL = %q, want trimmed", trk.AnnounceURL)
	}
	if trk.CookiePath == "" || !strings.HasSuffix(trk.CookiePath, filepath.Join("cookies", "ATH.txt")) {
		t.Errorf("CookiePath = %q, want default under cookie dir", trk.CookiePath)
	}
	if trk.SourceTag != "" {
		t.Errorf("SourceTag = %q, must stay empty so default variants share one info-hash", trk.SourceTag)
	}
}

func TestValidateRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
[trackers.blu]
enabled = true
base_url = "https://blutopia.cc"
announce_url = "https://blutopia.cc/announce/abc"
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for tracker without api key or session check")
	}
}

func TestValidateRejectsAmbiguousSessionCheck(t *testing.T) {
	cases := []struct {
		name  string
		block string
	}{
		{"zero checks", `
[trackers.hdt.session]
url = "https://hdt.example/usercp.php"
`},
		{"two checks", `
[trackers.hdt.session]
url = "https://hdt.example/usercp.php"
success_text = "Logout"
status_code = 200
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, `
[trackers.hdt]
enabled = true
base_url = "https://hdt.example"
announce_url = "https://hdt.example/announce.php"
`+tc.block)
			if _, _, _, err := Load(path); err == nil {
				t.Fatal("expected configuration error for ambiguous session check")
			}
		})
	}
}

func TestValidateRejectsBadEntropy(t *testing.T) {
	path := writeConfig(t, `
[trackers.ath]
enabled = true
base_url = "https://aither.cc"
announce_url = "https://aither.cc/announce/abc"
api_key = "key"
entropy_bits = 16
`)
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported entropy width")
	}
}

func TestEnabledTrackersSorted(t *testing.T) {
	path := writeConfig(t, `
[trackers.zzz]
enabled = true
base_url = "https://zzz.example"
announce_url = "https://zzz.example/announce"
api_key = "key"

[trackers.aaa]
enabled = true
base_url = "https://aaa.example"
announce_url = "https://aaa.example/announce"
api_key = "key"

[trackers.mmm]
enabled = false
base_url = "https://mmm.example"
announce_url = "https://mmm.example/announce"
api_key = "key"
`)
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids := cfg.EnabledTrackers()
	if len(ids) != 2 || ids[0] != "AAA" || ids[1] != "ZZZ" {
		t.Errorf("EnabledTrackers = %v, want [AAA ZZZ]", ids)
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := writeConfig(t, SampleConfig())
	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if len(cfg.EnabledTrackers()) != 0 {
		t.Error("sample config trackers should all default to disabled")
	}
}
