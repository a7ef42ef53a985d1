package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`    // cookies, diagnostics, run database
	StagingDir string `toml:"staging_dir"` // per-release working directories
	LogDir     string `toml:"log_dir"`
}

// Description contains layout options for composed release descriptions.
type Description struct {
	CharacterLimit     int    `toml:"character_limit"`
	ProcessedFileLimit int    `toml:"processed_file_limit"`
	ScreensPerFile     int    `toml:"screens_per_file"`
	ScreensPerRow      int    `toml:"screens_per_row"`
	ThumbnailWidth     int    `toml:"thumbnail_width"`
	Header             string `toml:"header"`
	Signature          string `toml:"signature"`
}

// HTTP contains client timeout configuration, in seconds.
type HTTP struct {
	RequestTimeout int    `toml:"request_timeout"`
	UploadTimeout  int    `toml:"upload_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// ImageHost contains configuration for the screenshot hosting collaborator.
type ImageHost struct {
	Provider string `toml:"provider"`
	APIKey   string `toml:"api_key"`
	BaseURL  string `toml:"base_url"`
}

// SessionCheck describes how a cookie session is validated against a known
// authenticated page. Exactly one of the four checks must be configured.
type SessionCheck struct {
	URL          string `toml:"url"`
	SuccessText  string `toml:"success_text"`
	ErrorText    string `toml:"error_text"`
	StatusCode   int    `toml:"status_code"`
	TokenPattern string `toml:"token_pattern"`
}

// Tracker contains per-tracker configuration.
type Tracker struct {
	Enabled         bool         `toml:"enabled"`
	BaseURL         string       `toml:"base_url"`
	AnnounceURL     string       `toml:"announce_url"`
	APIKey          string       `toml:"api_key"`
	CookiePath      string       `toml:"cookie_path"`
	Anonymous       bool         `toml:"anonymous"`
	Internal        bool         `toml:"internal"`
	PersonalRelease bool         `toml:"personal_release"`
	ModQueue        bool         `toml:"mod_queue"`
	EntropyBits     int          `toml:"entropy_bits"` // 0, 32, or 64
	SourceTag       string       `toml:"source_tag"`   // torrent source field; empty keeps variants cross-seedable
	Header          string       `toml:"header"`       // description header override
	Session         SessionCheck `toml:"session"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for uplink.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, and log directories
//   - Description: composed description layout options
//   - HTTP: client timeouts and user agent
//   - ImageHost: screenshot hosting collaborator
//   - Trackers: per-tracker credentials, flags, and session checks
//   - Logging: log format and level
type Config struct {
	Paths       Paths              `toml:"paths"`
	Description Description        `toml:"description"`
	HTTP        HTTP               `toml:"http"`
	ImageHost   ImageHost          `toml:"image_host"`
	Trackers    map[string]Tracker `toml:"trackers"`
	Logging     Logging            `toml:"logging"`
}

// SampleConfig returns the embedded sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/uplink/config.toml")
}

// ExpandPath resolves ~ and environment variables in a user-supplied path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

// EnsureDirectories creates the directories uplink needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DataDir,
		c.CookieDir(),
		c.DiagnosticsDir(),
		c.Paths.StagingDir,
		c.Paths.LogDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CookieDir returns the directory holding per-tracker cookie files.
func (c *Config) CookieDir() string {
	return filepath.Join(c.Paths.DataDir, "cookies")
}

// DiagnosticsDir returns the directory holding saved failure response bodies.
func (c *Config) DiagnosticsDir() string {
	return filepath.Join(c.Paths.DataDir, "diagnostics")
}

// ReleaseDir returns the per-release working directory under staging.
func (c *Config) ReleaseDir(releaseName string) string {
	return filepath.Join(c.Paths.StagingDir, releaseName)
}

// EnabledTrackers returns the identifiers of trackers marked enabled, sorted
// for deterministic processing order.
func (c *Config) EnabledTrackers() []string {
	ids := make([]string, 0, len(c.Trackers))
	for id, trk := range c.Trackers {
		if trk.Enabled {
			ids = append(ids, id)
		}
	}
	sortStrings(ids)
	return ids
}

// TrackerConfig returns the configuration block for a tracker identifier.
func (c *Config) TrackerConfig(id string) (Tracker, bool) {
	trk, ok := c.Trackers[id]
	return trk, ok
}
