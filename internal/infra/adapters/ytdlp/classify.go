package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"telegram-yt-relay/internal/domain"
)

var (
	ageMarkers = []string{
		"sign in to confirm your age",
		"age-restricted",
		"age restricted",
		"inappropriate for some users",
	}
	unavailableMarkers = []string{
		"video unavailable",
		"this video is unavailable",
		"private video",
		"has been removed",
		"account associated with this video has been terminated",
		"is not available in your country",
		"this live event will begin",
	}
)

// classify maps a yt-dlp failure onto the domain error kinds by inspecting
// its message and stderr.
func classify(err error, stderr string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	text := strings.ToLower(err.Error() + "\n" + stderr)
	for _, m := range ageMarkers {
		if strings.Contains(text, m) {
			return fmt.Errorf("%w: %s", domain.ErrAgeRestricted, lastLine(stderr, err))
		}
	}
	for _, m := range unavailableMarkers {
		if strings.Contains(text, m) {
			return fmt.Errorf("%w: %s", domain.ErrUnavailable, lastLine(stderr, err))
		}
	}
	return fmt.Errorf("yt-dlp: %s", lastLine(stderr, err))
}

// lastLine picks the most telling stderr line, usually the final ERROR line.
func lastLine(stderr string, err error) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if strings.HasPrefix(l, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(l, "ERROR:"))
		}
	}
	if l := strings.TrimSpace(lines[len(lines)-1]); l != "" {
		return l
	}
	return err.Error()
}
