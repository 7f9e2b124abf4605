// Package youtube resolves video titles through the public player API.
package youtube

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain"
	"telegram-yt-relay/internal/domain/ports/adapter"
)

var _ adapter.TitleResolver = (*TitleResolver)(nil)

// videoClient is the part of youtube.Client the resolver uses.
type videoClient interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
}

type TitleResolver struct {
	client  videoClient
	timeout time.Duration
	log     *zerolog.Logger
}

func NewTitleResolver(logger *zerolog.Logger) *TitleResolver {
	l := logger.With().Str("component", "youtube-titles").Logger()
	return &TitleResolver{
		client:  &youtube.Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}},
		timeout: 20 * time.Second,
		log:     &l,
	}
}

func (r *TitleResolver) Title(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	v, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		r.log.Debug().Err(err).Str("video_id", videoID).Msg("title lookup failed")
		return "", err
	}
	title := strings.TrimSpace(v.Title)
	if title == "" {
		return "", domain.ErrNotFound
	}
	return title, nil
}
