package adapter

import (
	"context"
	"time"
)

// Metadata is what a probe returns without fetching payload.
type Metadata struct {
	ID       string
	Title    string
	Duration time.Duration
	// Subtitles and AutoCaptions map a language key to its available formats.
	Subtitles    map[string][]string
	AutoCaptions map[string][]string
}

// SubtitleTrack is one selected caption track.
type SubtitleTrack struct {
	Language string
	Auto     bool
}

type DownloadOptions struct {
	Format string
	Output string
}

// ContentSource fetches metadata, media and captions. Errors wrap
// domain.ErrAgeRestricted or domain.ErrUnavailable when recognised.
type ContentSource interface {
	ProbeMetadata(ctx context.Context, url string) (*Metadata, error)
	Download(ctx context.Context, url string, opts DownloadOptions) error
	DownloadSubtitle(ctx context.Context, url string, track SubtitleTrack, dir string) (string, error)
	HasCookies() bool
}

// TitleResolver is a cheap best-effort title lookup.
type TitleResolver interface {
	Title(ctx context.Context, videoID string) (string, error)
}
