package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTrackers(); err != nil {
		return err
	}
	c.normalizeDescription()
	c.normalizeHTTP()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		c.Paths.StagingDir = defaultStagingDir
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTrackers() error {
	if c.Trackers == nil {
		c.Trackers = map[string]Tracker{}
		return nil
	}
	normalized := make(map[string]Tracker, len(c.Trackers))
	for id, trk := range c.Trackers {
		key := strings.ToUpper(strings.TrimSpace(id))
		if key == "" {
			return fmt.Errorf("trackers: empty tracker identifier")
		}
		trk.BaseURL = strings.TrimRight(strings.TrimSpace(trk.BaseURL), "/")
		trk.AnnounceURL = strings.TrimSpace(trk.AnnounceURL)
		trk.APIKey = strings.TrimSpace(trk.APIKey)
		if trk.CookiePath != "" {
			expanded, err := expandPath(trk.CookiePath)
			if err != nil {
				return fmt.Errorf("trackers.%s.cookie_path: %w", key, err)
			}
			trk.CookiePath = expanded
		} else {
			trk.CookiePath = filepath.Join(c.CookieDir(), key+".txt")
		}
		// SourceTag stays empty unless the operator sets it: injecting a
		// per-tracker source would give every variant its own info-hash,
		// and cross-seedable uploads want them identical by default.
		trk.SourceTag = strings.TrimSpace(trk.SourceTag)
		normalized[key] = trk
	}
	c.Trackers = normalized
	return nil
}

func (c *Config) normalizeDescription() {
	if c.Description.ProcessedFileLimit <= 0 {
		c.Description.ProcessedFileLimit = defaultProcessedFileLimit
	}
	if c.Description.ScreensPerFile <= 0 {
		c.Description.ScreensPerFile = defaultScreensPerFile
	}
	if c.Description.ScreensPerRow <= 0 {
		c.Description.ScreensPerRow = defaultScreensPerRow
	}
	if c.Description.ThumbnailWidth <= 0 {
		c.Description.ThumbnailWidth = defaultThumbnailWidth
	}
}

func (c *Config) normalizeHTTP() {
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = defaultRequestTimeout
	}
	if c.HTTP.UploadTimeout <= 0 {
		c.HTTP.UploadTimeout = defaultUploadTimeout
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		c.HTTP.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}
	return abs, nil
}

func sortStrings(values []string) {
	sort.Strings(values)
}
