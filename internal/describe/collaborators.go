package describe

import (
	"context"

	"uplink/internal/release"
)

// Capturer produces screenshot files for one media file or disc. The pixel
// rendering itself lives outside this repository; implementations may run
// ffmpeg, a headless player, or anything else, with whatever internal worker
// parallelism they like.
type Capturer interface {
	Capture(ctx context.Context, mediaPath string, count int, outDir string) ([]string, error)
}

// Host uploads captured screenshot files to an image-hosting service and
// returns the published URL forms.
type Host interface {
	Upload(ctx context.Context, paths []string) ([]release.Image, error)
}
