package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"uplink/internal/logging"
	"uplink/internal/release"
)

// Candidate is one existing catalog entry, normalized across the
// tracker-specific JSON and HTML shapes.
//
// Precision varies per adapter: JSON-API trackers filter server-side by
// identifier, category, type, and resolution, while scrape adapters parse
// whatever the page embeds. Callers must not read meaning into result order
// across trackers.
type Candidate struct {
	Name      string
	Size      int64
	FileCount int
	Files     []string
	Trumpable bool
	Link      string
}

// Searcher is the duplicate-search capability a tracker adapter exposes.
type Searcher interface {
	SearchDuplicates(ctx context.Context, meta *release.Meta) ([]Candidate, error)
}

// Coordinator fans duplicate searches across trackers, tolerating individual
// failures: a tracker that cannot be searched yields an error entry, never
// an aborted batch.
type Coordinator struct {
	logger *slog.Logger
}

// NewCoordinator builds a duplicate-search coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{logger: logging.NewComponentLogger(logger, "dedupe")}
}

// Result holds one tracker's search outcome.
type Result struct {
	Tracker    string
	Candidates []Candidate
	Err        error
}

// Run searches every given tracker and returns results in input order.
func (c *Coordinator) Run(ctx context.Context, meta *release.Meta, searchers map[string]Searcher, order []string) []Result {
	results := make([]Result, 0, len(order))
	for _, tracker := range order {
		searcher, ok := searchers[tracker]
		if !ok {
			continue
		}
		candidates, err := searcher.SearchDuplicates(ctx, meta)
		if err != nil {
			c.logger.Warn("duplicate search failed",
				logging.String(logging.FieldTracker, tracker),
				logging.Error(err))
		} else {
			c.logger.Debug("duplicate search completed",
				logging.String(logging.FieldTracker, tracker),
				logging.Int("candidates", len(candidates)))
		}
		results = append(results, Result{Tracker: tracker, Candidates: candidates, Err: err})
	}
	return results
}

var sizeUnits = map[string]float64{
	"B":   1,
	"KB":  1e3,
	"MB":  1e6,
	"GB":  1e9,
	"TB":  1e12,
	"KIB": 1 << 10,
	"MIB": 1 << 20,
	"GIB": 1 << 30,
	"TIB": 1 << 40,
}

// ParseSize converts a human-readable size string ("4.37 GiB") into bytes,
// returning 0 for text it cannot interpret.
func ParseSize(text string) int64 {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", ""), 64)
	if err != nil {
		return 0
	}
	unit, ok := sizeUnits[strings.ToUpper(fields[1])]
	if !ok {
		return 0
	}
	return int64(math.Round(value * unit))
}

// FormatSize renders a byte count in binary units for display.
func FormatSize(bytes int64) string {
	switch {
	case bytes >= 1<<40:
		return fmt.Sprintf("%.2f TiB", float64(bytes)/(1<<40))
	case bytes >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(bytes)/(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
