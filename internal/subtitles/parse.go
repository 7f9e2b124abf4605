// Package subtitles turns caption files into plain text and picks the best track.
package subtitles

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

var (
	inlineTag = regexp.MustCompile(`<[^>]*>`)
	assTag    = regexp.MustCompile(`\{\\[^}]*\}`)
)

// Parse reads WebVTT or SRT and returns the spoken text joined by single spaces.
// Within a cue block, lines before the timing line (SRT sequence numbers, VTT
// cue identifiers) are dropped and every line after it is text. Blocks without
// a timing line carry no text. Consecutive duplicate lines, as produced by
// rolling auto captions, are collapsed.
func Parse(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		parts   []string
		last    string
		skip    bool // header, NOTE, STYLE or REGION block
		inCue   bool // past the timing line of the current block
		blockAt = true
		first   = true
	)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			skip, inCue, blockAt = false, false, true
			continue
		}
		start := blockAt
		blockAt = false
		if first {
			first = false
			if strings.HasPrefix(line, "WEBVTT") {
				skip = true
				continue
			}
		}
		if skip {
			continue
		}
		if start && (strings.HasPrefix(line, "NOTE") || line == "STYLE" || line == "REGION") {
			skip = true
			continue
		}
		if !inCue {
			if strings.Contains(line, "-->") {
				inCue = true
			}
			continue
		}

		text := assTag.ReplaceAllString(inlineTag.ReplaceAllString(line, ""), "")
		text = strings.Join(strings.Fields(decodeEntities(text)), " ")
		if text == "" || text == last {
			continue
		}
		parts = append(parts, text)
		last = text
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return strings.Join(parts, " "), nil
}

var entityReplacer = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&nbsp;", " ", "&quot;", `"`, "&#39;", "'")

func decodeEntities(s string) string { return entityReplacer.Replace(s) }
