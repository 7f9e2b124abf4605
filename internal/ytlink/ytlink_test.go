package ytlink

import "testing"

func TestExtractVideoID(t *testing.T) {
	valid := []string{
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ?t=42",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ&list=PL123",
		"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"  https://youtube.com/shorts/dQw4w9WgXcQ/  ",
	}
	for _, raw := range valid {
		t.Run(raw, func(t *testing.T) {
			id, ok := ExtractVideoID(raw)
			if !ok || id != "dQw4w9WgXcQ" {
				t.Fatalf("got (%q, %v)", id, ok)
			}
		})
	}

	invalid := []string{
		"",
		"not a url",
		"https://vimeo.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com.evil.org/watch?v=dQw4w9WgXcQ",
		"https://youtu.be/short",
		"https://youtu.be/dQw4w9WgXcQX",
		"https://www.youtube.com/watch?v=dQw4w9Wg$cQ",
		"https://www.youtube.com/channel/dQw4w9WgXcQ",
		"https://www.youtube.com/watch",
	}
	for _, raw := range invalid {
		t.Run("invalid "+raw, func(t *testing.T) {
			if id, ok := ExtractVideoID(raw); ok {
				t.Fatalf("expected no id, got %q", id)
			}
		})
	}

	t.Run("should keep distinct ids distinct", func(t *testing.T) {
		a, _ := ExtractVideoID("https://youtu.be/aaaaaaaaaaa")
		b, _ := ExtractVideoID("https://youtu.be/aaaaaaaaaab")
		if a == b {
			t.Fatal("distinct ids collapsed")
		}
	})
}

func TestFindURL(t *testing.T) {
	got, ok := FindURL("look at this https://www.youtube.com/watch?v=dQw4w9WgXcQ please")
	if !ok || got != "https://www.youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
	if _, ok := FindURL("no links here"); ok {
		t.Fatal("expected no url")
	}
	if CleanURL("dQw4w9WgXcQ") != "https://youtu.be/dQw4w9WgXcQ" {
		t.Fatal("unexpected clean url")
	}
}
