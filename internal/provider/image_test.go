package provider

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// pngHeader is a minimal valid PNG signature, enough for content sniffing.
var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

func TestPrepareImageURLPassthrough(t *testing.T) {
	for _, ref := range []string{
		"https://example.com/cat.png",
		"http://example.com/cat.png",
		"data:image/png;base64,AAAA",
	} {
		got, errPrepare := PrepareImageURL(ref)
		if errPrepare != nil {
			t.Fatalf("prepare %q: %v", ref, errPrepare)
		}
		if got != ref {
			t.Fatalf("expected passthrough for %q, got %q", ref, got)
		}
	}
}

func TestPrepareImageURLFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	if errWrite := os.WriteFile(path, pngHeader, 0o644); errWrite != nil {
		t.Fatalf("write file: %v", errWrite)
	}

	got, errPrepare := PrepareImageURL(path)
	if errPrepare != nil {
		t.Fatalf("prepare: %v", errPrepare)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("expected data URI, got %q", got)
	}
}

func TestPrepareImageURLFromBase64(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	got, errPrepare := PrepareImageURL(encoded)
	if errPrepare != nil {
		t.Fatalf("prepare: %v", errPrepare)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Fatalf("expected data URI, got %q", got)
	}
}

func TestPrepareImageURLRejectsGarbage(t *testing.T) {
	for _, ref := range []string{"", "   ", "!!not-base64!!", "/no/such/file.png"} {
		if _, errPrepare := PrepareImageURL(ref); !errors.Is(errPrepare, ErrBadImageRef) {
			t.Fatalf("expected ErrBadImageRef for %q, got %v", ref, errPrepare)
		}
	}
}

func TestPrepareImageURLRejectsNonImageData(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("plain text payload here"))
	if _, errPrepare := PrepareImageURL(encoded); !errors.Is(errPrepare, ErrBadImageRef) {
		t.Fatalf("expected ErrBadImageRef for non-image bytes, got %v", errPrepare)
	}
}
