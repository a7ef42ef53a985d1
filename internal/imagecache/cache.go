package imagecache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"uplink/internal/logging"
	"uplink/internal/release"
)

// Bucket holds the hosted screenshots for one logical unit of a pack
// ("file 2", "disc 1").
type Bucket struct {
	Count  int             `json:"count"`
	Images []release.Image `json:"images"`
}

// File is the on-disk ledger document.
type File struct {
	Keys       map[string]Bucket `json:"keys"`
	TotalCount int               `json:"total_count"`
}

// Cache is the per-release append-only screenshot ledger. A bucket that
// already holds images is never re-populated, which is what makes repeated
// runs skip capture and upload work already paid for.
type Cache struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	data File
}

// FileKey returns the ledger key for the Nth file of a pack.
func FileKey(index int) string {
	return fmt.Sprintf("file %d", index)
}

// DiscKey returns the ledger key for the Nth disc of a pack.
func DiscKey(index int) string {
	return fmt.Sprintf("disc %d", index)
}

// Open loads the cache document for a release, starting empty when the file
// does not exist yet.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	c := &Cache{
		path:   path,
		logger: logging.NewComponentLogger(logger, "imagecache"),
		data:   File{Keys: map[string]Bucket{}},
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read image cache: %w", err)
	}
	if err := json.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("parse image cache %s: %w", path, err)
	}
	if c.data.Keys == nil {
		c.data.Keys = map[string]Bucket{}
	}
	return c, nil
}

// Lookup returns the hosted images for a bucket, if any were ever stored.
func (c *Cache) Lookup(key string) ([]release.Image, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	bucket, ok := c.data.Keys[key]
	if !ok || len(bucket.Images) == 0 {
		return nil, false
	}
	images := make([]release.Image, len(bucket.Images))
	copy(images, bucket.Images)
	return images, true
}

// Append stores a bucket's images and persists the ledger. Appending to a
// bucket that already holds images is rejected: the ledger is append-only
// within and across runs.
func (c *Cache) Append(key string, images []release.Image) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("bucket key cannot be empty")
	}
	if len(images) == 0 {
		return errors.New("cannot append empty image set")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.data.Keys[key]; ok && len(existing.Images) > 0 {
		return fmt.Errorf("bucket %q already populated with %d images", key, existing.Count)
	}

	stored := make([]release.Image, len(images))
	copy(stored, images)
	c.data.Keys[key] = Bucket{Count: len(stored), Images: stored}
	c.recountLocked()

	if err := c.saveLocked(); err != nil {
		return fmt.Errorf("persist image cache: %w", err)
	}
	c.logger.Debug("cached screenshot bucket",
		logging.String("bucket", key),
		logging.Int("images", len(stored)),
		logging.Int("total", c.data.TotalCount))
	return nil
}

// TotalCount returns the ledger-wide image count.
func (c *Cache) TotalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.TotalCount
}

// Buckets returns the number of populated buckets.
func (c *Cache) Buckets() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data.Keys)
}

// recountLocked keeps total_count equal to the sum of every bucket's count.
func (c *Cache) recountLocked() {
	total := 0
	for key, bucket := range c.data.Keys {
		bucket.Count = len(bucket.Images)
		c.data.Keys[key] = bucket
		total += bucket.Count
	}
	c.data.TotalCount = total
}

func (c *Cache) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("ensure cache directory: %w", err)
	}
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace cache: %w", err)
	}
	return nil
}
