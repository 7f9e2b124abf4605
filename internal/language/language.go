// Package language resolves user input to ISO 639-1 codes and English names.
package language

import (
	"sort"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const Default = "en"

// popular is the set offered in suggestions and help texts.
var popular = map[string]string{
	"en": "English", "es": "Spanish", "fr": "French", "de": "German", "it": "Italian",
	"pt": "Portuguese", "ru": "Russian", "ja": "Japanese", "ko": "Korean", "zh": "Chinese",
	"ar": "Arabic", "hi": "Hindi", "nl": "Dutch", "sv": "Swedish", "no": "Norwegian",
	"da": "Danish", "fi": "Finnish", "pl": "Polish", "cs": "Czech", "hu": "Hungarian",
	"tr": "Turkish", "th": "Thai", "vi": "Vietnamese", "id": "Indonesian", "ms": "Malay",
	"tl": "Filipino", "uk": "Ukrainian", "bg": "Bulgarian", "hr": "Croatian", "sk": "Slovak",
	"sl": "Slovenian", "et": "Estonian", "lv": "Latvian", "lt": "Lithuanian", "ro": "Romanian",
	"el": "Greek", "he": "Hebrew", "fa": "Persian", "ur": "Urdu", "bn": "Bengali",
	"ta": "Tamil", "te": "Telugu", "ml": "Malayalam", "kn": "Kannada", "gu": "Gujarati",
	"pa": "Punjabi", "mr": "Marathi", "ne": "Nepali", "si": "Sinhala", "my": "Burmese",
	"km": "Khmer", "lo": "Lao", "ka": "Georgian", "hy": "Armenian", "az": "Azerbaijani",
	"kk": "Kazakh", "ky": "Kyrgyz", "uz": "Uzbek", "tg": "Tajik", "mn": "Mongolian",
}

var byName = func() map[string]string {
	m := make(map[string]string, len(popular))
	for code, name := range popular {
		m[strings.ToLower(name)] = code
	}
	return m
}()

// Normalize accepts a code ("es"), a tag ("es-MX") or an English name
// ("spanish") and returns the base code with its English name.
func Normalize(input string) (code, name string, ok bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return "", "", false
	}
	if n, found := popular[in]; found {
		return in, n, true
	}
	if c, found := byName[in]; found {
		return c, popular[c], true
	}
	tag, err := xlang.Parse(in)
	if err != nil {
		return "", "", false
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return "", "", false
	}
	code = base.String()
	if n := Name(code); n != "" && n != code {
		return code, n, true
	}
	return "", "", false
}

// Name returns the English name for a code, or the code itself if unknown.
func Name(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if n, ok := popular[code]; ok {
		return n
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return code
	}
	if n := display.English.Languages().Name(tag); n != "" {
		return n
	}
	return code
}

// Suggestions returns up to limit popular languages close to the input.
func Suggestions(input string, limit int) []string {
	in := strings.ToLower(strings.TrimSpace(input))
	var out []string
	for _, code := range Popular() {
		name := strings.ToLower(popular[code])
		if in == "" || strings.HasPrefix(name, in) || strings.HasPrefix(code, in) ||
			(len(in) >= 3 && strings.Contains(name, in)) {
			out = append(out, code+" ("+popular[code]+")")
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Popular returns the popular codes in stable order.
func Popular() []string {
	codes := make([]string, 0, len(popular))
	for c := range popular {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
