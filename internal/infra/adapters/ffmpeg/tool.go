package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
)

var _ adapter.MediaTool = (*Tool)(nil)

// Tool shells out to ffprobe and ffmpeg.
type Tool struct {
	ffmpeg  string
	ffprobe string
	logger  *zerolog.Logger
}

func New(ffmpegPath, ffprobePath string, logger *zerolog.Logger) *Tool {
	return &Tool{ffmpeg: ffmpegPath, ffprobe: ffprobePath, logger: logging.Component(logger, "ffmpeg")}
}

// Duration returns the container duration in seconds. ffprobe is tried first,
// then the banner printed by "ffmpeg -i".
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, t.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	).Output()
	if err == nil {
		if d, perr := strconv.ParseFloat(strings.TrimSpace(string(out)), 64); perr == nil && d > 0 {
			return d, nil
		}
	}
	t.logger.Debug().Err(err).Msg("ffprobe failed, falling back to ffmpeg banner")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.ffmpeg, "-hide_banner", "-i", path)
	cmd.Stderr = &stderr
	_ = cmd.Run() // exits non-zero without an output file
	d, ok := ParseDuration(stderr.String())
	if !ok {
		return 0, fmt.Errorf("no duration in ffmpeg output for %s", path)
	}
	return d, nil
}

// Cut stream-copies [start, start+duration) of in to out.
func (t *Tool) Cut(ctx context.Context, in, out string, start, duration float64) error {
	args := []string{
		"-y",
		"-ss", formatSeconds(start),
		"-i", in,
		"-t", formatSeconds(duration),
		"-c", "copy",
		out,
	}
	lw := logging.NewLineWriter(t.logger, zerolog.DebugLevel, 5)
	cmd := exec.CommandContext(ctx, t.ffmpeg, args...)
	cmd.Stderr = lw
	err := cmd.Run()
	lw.Flush()
	if err != nil {
		return fmt.Errorf("ffmpeg cut: %w: %s", err, strings.Join(lw.Tail(), " | "))
	}
	return nil
}

var durationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseDuration extracts "Duration: HH:MM:SS.xx" from ffmpeg stderr.
func ParseDuration(s string) (float64, bool) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	sec, _ := strconv.ParseFloat(m[3], 64)
	return float64(h*3600+mi*60) + sec, true
}

func formatSeconds(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
