package screens

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"uplink/internal/logging"
	"uplink/internal/services"
)

// FFmpegCapturer shells out to ffmpeg for frame grabs. Frames are taken
// sequentially at evenly spaced offsets between 10% and 90% of the runtime,
// so repeated runs against the same file produce the same frames.
type FFmpegCapturer struct {
	Binary string // defaults to "ffmpeg"
	Probe  string // defaults to "ffprobe"
	logger *slog.Logger
}

// NewFFmpegCapturer builds a capturer using binaries resolved from PATH.
func NewFFmpegCapturer(logger *slog.Logger) *FFmpegCapturer {
	return &FFmpegCapturer{
		Binary: "ffmpeg",
		Probe:  "ffprobe",
		logger: logging.NewComponentLogger(logger, "screens"),
	}
}

// Capture writes count PNG frames from mediaPath into outDir and returns
// their paths in capture order.
func (c *FFmpegCapturer) Capture(ctx context.Context, mediaPath string, count int, outDir string) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}

	duration, err := c.probeDuration(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	// Offsets span 10%..90% of the runtime to avoid studio logos and
	// credits.
	span := duration * 8 / 10
	start := duration / 10
	step := span
	if count > 1 {
		step = span / time.Duration(count-1)
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		offset := start + step*time.Duration(i)
		target := filepath.Join(outDir, fmt.Sprintf("screen-%02d.png", i+1))
		if err := c.grabFrame(ctx, mediaPath, offset, target); err != nil {
			return nil, err
		}
		c.logger.Debug("captured frame", "offset", offset.String(), "path", target)
		paths = append(paths, target)
	}
	return paths, nil
}

func (c *FFmpegCapturer) probeDuration(ctx context.Context, mediaPath string) (time.Duration, error) {
	probe := c.Probe
	if probe == "" {
		probe = "ffprobe"
	}
	cmd := exec.CommandContext(ctx, probe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, services.Wrap(services.ErrTransient, "", "capture",
			fmt.Sprintf("probe duration: %s", strings.TrimSpace(stderr.String())), err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil || seconds <= 0 {
		return 0, services.Wrap(services.ErrValidation, "", "capture",
			fmt.Sprintf("unusable duration %q for %s", strings.TrimSpace(stdout.String()), mediaPath), err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (c *FFmpegCapturer) grabFrame(ctx context.Context, mediaPath string, offset time.Duration, target string) error {
	binary := c.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, binary,
		"-y",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", mediaPath,
		"-frames:v", "1",
		"-q:v", "2",
		target,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return services.Wrap(services.ErrTransient, "", "capture",
			fmt.Sprintf("grab frame at %s: %s", offset, strings.TrimSpace(stderr.String())), err)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrTransient, "", "capture",
			fmt.Sprintf("ffmpeg produced no frame at %s", offset), err)
	}
	return nil
}
