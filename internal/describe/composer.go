package describe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"uplink/internal/config"
	"uplink/internal/imagecache"
	"uplink/internal/logging"
	"uplink/internal/release"
	"uplink/internal/services"
)

// Composer assembles per-tracker release descriptions, going through the
// image cache so capture and hosting happen at most once per bucket across
// any number of runs.
type Composer struct {
	layout   config.Description
	capturer Capturer
	host     Host
	cache    *imagecache.Cache
	workDir  string
	logger   *slog.Logger
}

// Options carries the per-tracker description overrides.
type Options struct {
	Tracker   string
	Header    string // overrides the global header when set
	Signature string // overrides the global signature when set
}

// NewComposer builds a composer for one release working directory.
func NewComposer(layout config.Description, capturer Capturer, host Host, cache *imagecache.Cache, workDir string, logger *slog.Logger) *Composer {
	return &Composer{
		layout:   layout,
		capturer: capturer,
		host:     host,
		cache:    cache,
		workDir:  workDir,
		logger:   logging.NewComponentLogger(logger, "describe"),
	}
}

// Compose produces the final description text for one tracker.
//
// Buckets are processed strictly in order and sequentially: deterministic
// ordering in the output, and no concurrent writers for the cache file.
func (c *Composer) Compose(ctx context.Context, meta *release.Meta, opts Options) (string, error) {
	sections := make([]string, 0, 8)

	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = strings.TrimSpace(c.layout.Header)
	}
	if header != "" {
		sections = append(sections, header)
	}
	if block := languageBlock(meta); block != "" {
		sections = append(sections, block)
	}

	buckets := meta.BucketCount()
	ceiling := c.layout.ProcessedFileLimit
	if buckets < ceiling {
		ceiling = buckets
	}

	grids := make([]string, 0, ceiling)
	for index := 0; index < ceiling; index++ {
		if block := techBlock(meta, index); block != "" {
			sections = append(sections, block)
		}
		images, err := c.bucketImages(ctx, meta, index)
		if err != nil {
			return "", err
		}
		grid := screenGrid(images, c.layout.ScreensPerRow, c.layout.ThumbnailWidth)
		if grid != "" {
			sections = append(sections, grid)
			grids = append(grids, grid)
		}
	}

	if spoiler := otherFilesSpoiler(meta, ceiling); spoiler != "" {
		sections = append(sections, spoiler)
	}

	signature := strings.TrimSpace(opts.Signature)
	if signature == "" {
		signature = strings.TrimSpace(c.layout.Signature)
	}
	if signature != "" {
		sections = append(sections, signature)
	}

	text := strings.Join(sections, "\n\n")
	return c.fitBudget(text, grids), nil
}

// bucketImages resolves the hosted screenshots for one bucket. Index zero
// reuses the primary set produced upstream; later buckets hit the cache and
// only on a miss pay for capture plus hosting.
func (c *Composer) bucketImages(ctx context.Context, meta *release.Meta, index int) ([]release.Image, error) {
	if index == 0 {
		return meta.PrimaryScreens, nil
	}

	key := imagecache.FileKey(index)
	mediaPath := ""
	if len(meta.Discs) > 0 {
		key = imagecache.DiscKey(index)
		mediaPath = meta.Discs[index].Path
	} else {
		mediaPath = meta.Files[index].Path
	}

	if images, ok := c.cache.Lookup(key); ok {
		c.logger.Debug("image cache hit", logging.String("bucket", key), logging.Int("images", len(images)))
		return images, nil
	}

	if c.capturer == nil || c.host == nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "compose description", "screenshot collaborators not configured for pack content", nil)
	}

	outDir := filepath.Join(c.workDir, "screens", key)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure screenshot directory: %w", err)
	}
	captured, err := c.capturer.Capture(ctx, mediaPath, c.layout.ScreensPerFile, outDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "compose description", "capture screenshots for "+key, err)
	}
	images, err := c.host.Upload(ctx, captured)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "", "compose description", "host screenshots for "+key, err)
	}
	if err := c.cache.Append(key, images); err != nil {
		return nil, fmt.Errorf("record %s in image cache: %w", key, err)
	}
	c.logger.Info("captured and hosted pack screenshots",
		logging.String("bucket", key),
		logging.Int("images", len(images)))
	return images, nil
}

// fitBudget enforces the character limit by dropping screenshot grids from
// the end of the description before resorting to a hard truncation.
func (c *Composer) fitBudget(text string, grids []string) string {
	limit := c.layout.CharacterLimit
	if limit <= 0 || len(text) <= limit {
		return text
	}
	for i := len(grids) - 1; i >= 0 && len(text) > limit; i-- {
		text = strings.Replace(text, "\n\n"+grids[i], "", 1)
	}
	if len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
