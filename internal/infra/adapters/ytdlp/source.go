// Package ytdlp implements the content source port on top of the yt-dlp binary.
package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/config"
	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/ports/adapter"
	"telegram-yt-relay/internal/infra/logging"
)

var _ adapter.ContentSource = (*Source)(nil)

type Source struct {
	bin     string
	cookies string
	log     *zerolog.Logger
}

func New(cfg config.DownloaderConfig, logger *zerolog.Logger) *Source {
	l := logger.With().Str("component", "ytdlp").Logger()
	return &Source{bin: cfg.YtdlpPath, cookies: cfg.CookiesFile, log: &l}
}

// HasCookies reports whether a non-empty cookies file is present right now.
func (s *Source) HasCookies() bool {
	if s.cookies == "" {
		return false
	}
	st, err := os.Stat(s.cookies)
	return err == nil && !st.IsDir() && st.Size() > 0
}

func (s *Source) command() *ytdlp.Command {
	cmd := ytdlp.New().NoPlaylist().NoProgress()
	if s.bin != "" {
		cmd = cmd.SetExecutable(s.bin)
	}
	if s.HasCookies() {
		cmd = cmd.Cookies(s.cookies)
	}
	return cmd
}

type videoInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Duration          float64                    `json:"duration"`
	Subtitles         map[string][]subtitleEntry `json:"subtitles"`
	AutomaticCaptions map[string][]subtitleEntry `json:"automatic_captions"`
}

type subtitleEntry struct {
	Ext string `json:"ext"`
}

func (s *Source) ProbeMetadata(ctx context.Context, url string) (*adapter.Metadata, error) {
	defer logging.TraceDuration(s.log, "probe metadata")()
	res, err := s.command().SkipDownload().DumpSingleJSON().Run(ctx, url)
	if err != nil {
		return nil, classify(err, stderrOf(res))
	}
	return parseMetadata([]byte(res.Stdout))
}

func parseMetadata(raw []byte) (*adapter.Metadata, error) {
	var info videoInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp metadata: %w", err)
	}
	return &adapter.Metadata{
		ID:           info.ID,
		Title:        info.Title,
		Duration:     time.Duration(info.Duration * float64(time.Second)),
		Subtitles:    trackFormats(info.Subtitles),
		AutoCaptions: trackFormats(info.AutomaticCaptions),
	}, nil
}

func trackFormats(in map[string][]subtitleEntry) map[string][]string {
	out := make(map[string][]string, len(in))
	for lang, entries := range in {
		exts := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Ext != "" {
				exts = append(exts, e.Ext)
			}
		}
		out[lang] = exts
	}
	return out
}

func (s *Source) Download(ctx context.Context, url string, opts adapter.DownloadOptions) error {
	defer logging.TraceDuration(s.log, "download")()
	cmd := s.command().ForceOverwrites().Output(opts.Output)
	if opts.Format != "" {
		cmd = cmd.Format(opts.Format)
	}
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return classify(err, stderrOf(res))
	}
	return nil
}

// DownloadSubtitle writes one caption track into dir and returns its path.
func (s *Source) DownloadSubtitle(ctx context.Context, url string, track adapter.SubtitleTrack, dir string) (string, error) {
	cmd := s.command().
		SkipDownload().
		SubLangs(track.Language).
		SubFormat("vtt/srt/best").
		Output(filepath.Join(dir, "sub.%(ext)s"))
	if track.Auto {
		cmd = cmd.WriteAutoSubs()
	} else {
		cmd = cmd.WriteSubs()
	}
	res, err := cmd.Run(ctx, url)
	if err != nil {
		return "", classify(err, stderrOf(res))
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "sub.*"))
	sort.Strings(matches)
	for _, m := range matches {
		if st, err := os.Stat(m); err == nil && st.Size() > 0 {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrNoSubtitles, track.Language)
}

func stderrOf(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	return res.Stderr
}
