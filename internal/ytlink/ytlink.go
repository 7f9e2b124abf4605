// Package ytlink recognises YouTube links and extracts video ids.
package ytlink

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	idPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	urlInText  = regexp.MustCompile(`(?i)\bhttps?://(?:www\.|m\.)?(?:youtube\.com|youtu\.be)/\S+`)
	validHosts = map[string]bool{
		"youtube.com":     true,
		"www.youtube.com": true,
		"m.youtube.com":   true,
		"youtu.be":        true,
	}
)

// ExtractVideoID returns the 11 character video id for shortlinks,
// watch links and shorts links.
func ExtractVideoID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if !validHosts[host] {
		return "", false
	}

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimSuffix(strings.TrimPrefix(u.Path, "/shorts/"), "/")
	case u.Path == "/watch" || u.Path == "/watch/":
		id = u.Query().Get("v")
	default:
		return "", false
	}
	if !IsVideoID(id) {
		return "", false
	}
	return id, true
}

func IsVideoID(s string) bool { return idPattern.MatchString(s) }

// CleanURL returns the canonical shortlink for id.
func CleanURL(id string) string { return "https://youtu.be/" + id }

// FindURL returns the first YouTube link found in free text.
func FindURL(text string) (string, bool) {
	m := urlInText.FindString(text)
	if m == "" {
		return "", false
	}
	return m, true
}
