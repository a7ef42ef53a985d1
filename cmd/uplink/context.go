package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"uplink/internal/config"
	"uplink/internal/describe"
	"uplink/internal/imagecache"
	"uplink/internal/imagehost"
	"uplink/internal/logging"
	"uplink/internal/runstore"
	"uplink/internal/screens"
	"uplink/internal/services"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
		if err != nil {
			c.loggerErr = fmt.Errorf("initialize logging: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) openStore() (*runstore.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return runstore.Open(cfg)
}

// newComposer wires the screenshot pipeline for one release working
// directory: ffmpeg capture, the configured image host, and the append-only
// image ledger living next to the release snapshot.
func (c *commandContext) newComposer(releaseDir string) (*describe.Composer, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	cache, err := imagecache.Open(filepath.Join(releaseDir, "images.json"), logger)
	if err != nil {
		return nil, err
	}
	client := services.NewHTTPClient(time.Duration(cfg.HTTP.UploadTimeout)*time.Second, cfg.HTTP.UserAgent)
	host, err := imagehost.New(cfg.ImageHost, client, logger)
	if err != nil {
		return nil, err
	}
	capturer := screens.NewFFmpegCapturer(logger)
	return describe.NewComposer(cfg.Description, capturer, host, cache, releaseDir, logger), nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
