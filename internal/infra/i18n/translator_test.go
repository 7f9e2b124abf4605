//go:build !integration

package i18n

import (
	"testing"
	"testing/fstest"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: hola\nwelcome_user: hola %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "hola" {
			t.Errorf("wanted 'hola', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted key back, got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "Ana"); got != "hola Ana" {
			t.Errorf("wanted 'hola Ana', got '%s'", got)
		}
	})

	t.Run("should load from any fs", func(t *testing.T) {
		fsys := fstest.MapFS{"locales/xx.yaml": {Data: []byte("k: v")}}
		tr, err := NewTranslator(fsys, "xx")
		if err != nil {
			t.Fatal(err)
		}
		if tr.T("k") != "v" {
			t.Fatal("unexpected value")
		}
		if _, err := NewTranslator(fsys, "zz"); err == nil {
			t.Fatal("expected error for missing catalog")
		}
	})
}

func TestEmbeddedCatalog(t *testing.T) {
	tr := MustDefault()
	if got := tr.T("error_timeout", 10); got != "❌ Task timed out after 10 minutes." {
		t.Fatalf("got %q", got)
	}
	if got := tr.T("status_sending_part", 1, 2); got != "📤 Sending part 1/2..." {
		t.Fatalf("got %q", got)
	}
}
