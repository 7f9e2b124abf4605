package subtitles

import (
	"sort"
	"strings"

	"telegram-yt-relay/internal/domain/ports/adapter"
)

// Fallback is the language tried after the target one.
const Fallback = "en"

// SelectTrack picks a caption track in this order: manual target, auto target,
// manual English, auto English, any manual, any auto.
func SelectTrack(manual, auto map[string][]string, target string) (adapter.SubtitleTrack, bool) {
	target = strings.ToLower(strings.TrimSpace(target))

	type step struct {
		tracks map[string][]string
		lang   string
		auto   bool
	}
	steps := []step{
		{manual, target, false},
		{auto, target, true},
		{manual, Fallback, false},
		{auto, Fallback, true},
	}
	for _, s := range steps {
		if s.lang == "" {
			continue
		}
		if key, ok := matchLanguage(s.tracks, s.lang); ok {
			return adapter.SubtitleTrack{Language: key, Auto: s.auto}, true
		}
	}
	if key, ok := anyLanguage(manual); ok {
		return adapter.SubtitleTrack{Language: key, Auto: false}, true
	}
	if key, ok := anyLanguage(auto); ok {
		return adapter.SubtitleTrack{Language: key, Auto: true}, true
	}
	return adapter.SubtitleTrack{}, false
}

// Preferred lists the tracks to request, in order, when the available tracks
// are unknown: manual target, auto target, manual English, auto English.
func Preferred(target string) []adapter.SubtitleTrack {
	target = strings.ToLower(strings.TrimSpace(target))
	var out []adapter.SubtitleTrack
	for _, lang := range []string{target, Fallback} {
		if lang == "" || (len(out) > 0 && out[0].Language == lang) {
			continue
		}
		out = append(out,
			adapter.SubtitleTrack{Language: lang},
			adapter.SubtitleTrack{Language: lang, Auto: true},
		)
	}
	return out
}

// matchLanguage finds an exact key or a regional variant such as "es-419".
func matchLanguage(tracks map[string][]string, lang string) (string, bool) {
	if _, ok := tracks[lang]; ok {
		return lang, true
	}
	keys := sortedKeys(tracks)
	for _, k := range keys {
		if strings.HasPrefix(strings.ToLower(k), lang+"-") {
			return k, true
		}
	}
	return "", false
}

func anyLanguage(tracks map[string][]string) (string, bool) {
	for _, k := range sortedKeys(tracks) {
		// live_chat is a replay of the chat, not captions
		if k == "live_chat" {
			continue
		}
		return k, true
	}
	return "", false
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
