// Package media cuts oversized videos into overlapping stream-copied parts.
package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
)

// Segment is one planned cut, in seconds.
type Segment struct {
	Index    int
	Start    float64
	Duration float64
}

// Plan computes ceil(size/maxPart) segments over total seconds. Each segment
// starts overlap*i seconds before its even boundary; all but the last have
// length base+overlap and the last one runs to the end of the source.
func Plan(total float64, size, maxPart int64, overlap float64) []Segment {
	if maxPart <= 0 || total <= 0 {
		return nil
	}
	n := int(math.Ceil(float64(size) / float64(maxPart)))
	if n < 1 {
		n = 1
	}
	base := total / float64(n)
	out := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		start := math.Max(float64(i)*base-overlap*float64(i), 0)
		dur := base + overlap
		if i == n-1 {
			dur = total - start
		}
		if start+dur > total {
			dur = total - start
		}
		out = append(out, Segment{Index: i, Start: start, Duration: dur})
	}
	return out
}

// Splitter produces part files through a MediaTool.
type Splitter struct {
	tool    adapter.MediaTool
	tmpRoot string
	logger  *zerolog.Logger
}

func NewSplitter(tool adapter.MediaTool, tmpRoot string, logger *zerolog.Logger) *Splitter {
	return &Splitter{tool: tool, tmpRoot: tmpRoot, logger: logging.Component(logger, "splitter")}
}

// Split cuts input into parts no larger than roughly maxPart bytes. The parts
// and the returned scratch directory belong to the caller. On error the
// scratch directory is already removed.
func (s *Splitter) Split(ctx context.Context, input, videoID string, maxPart int64, overlap float64) ([]string, string, error) {
	defer logging.TraceDuration(s.logger, "Splitter.Split")()

	st, err := os.Stat(input)
	if err != nil {
		return nil, "", fmt.Errorf("stat input: %w", err)
	}
	total, err := s.tool.Duration(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrDurationUnknown, err)
	}
	if total <= 0 {
		return nil, "", domain.ErrDurationUnknown
	}

	dir, err := os.MkdirTemp(s.tmpRoot, "split_")
	if err != nil {
		return nil, "", fmt.Errorf("create scratch dir: %w", err)
	}

	segs := Plan(total, st.Size(), maxPart, overlap)
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		out := filepath.Join(dir, fmt.Sprintf("part_%d_%s.mp4", seg.Index+1, videoID))
		if err := s.tool.Cut(ctx, input, out, seg.Start, seg.Duration); err != nil {
			_ = os.RemoveAll(dir)
			return nil, "", fmt.Errorf("cut part %d/%d: %w", seg.Index+1, len(segs), err)
		}
		s.logger.Debug().
			Int("part", seg.Index+1).
			Int("parts", len(segs)).
			Float64("start", seg.Start).
			Float64("duration", seg.Duration).
			Msg("part written")
		parts = append(parts, out)
	}
	return parts, dir, nil
}
