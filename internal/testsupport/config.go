package testsupport

import (
	"path/filepath"
	"testing"

	"uplink/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithTracker adds an enabled tracker block to the test config.
func WithTracker(id string, trk config.Tracker) ConfigOption {
	return func(cfg *config.Config) {
		if cfg.Trackers == nil {
			cfg.Trackers = map[string]config.Tracker{}
		}
		trk.Enabled = true
		cfg.Trackers[id] = trk
	}
}

// WithCharacterLimit caps the composed description length.
func WithCharacterLimit(limit int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Description.CharacterLimit = limit
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
