package store

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func testFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s
}

func TestSaveDownloadRoundTrip(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()

	locator, err := s.Save(ctx, "book-1/copy-1/page-001.png", []byte("raster"), "image/png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if locator != "book-1/copy-1/page-001.png" {
		t.Fatalf("locator = %q", locator)
	}

	data, err := s.Download(ctx, locator)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "raster" {
		t.Fatalf("data = %q", data)
	}
}

func TestSaveSanitizesKey(t *testing.T) {
	s := testFileStore(t)

	locator, err := s.Save(context.Background(), "../Weird Title!/Page 1.PNG", []byte("x"), "image/png")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(locator, "..") || strings.Contains(locator, " ") {
		t.Fatalf("locator not sanitized: %q", locator)
	}
	if _, err := s.Download(context.Background(), locator); err != nil {
		t.Fatalf("Download after sanitize: %v", err)
	}
}

func TestSaveGeneratesNameFromContent(t *testing.T) {
	s := testFileStore(t)

	// minimal PNG signature so detection has something to chew on
	pngSig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	locator, err := s.Save(context.Background(), "", pngSig, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(locator, ".png") {
		t.Fatalf("locator = %q, want detected png extension", locator)
	}
}

func TestDownloadRejectsTraversal(t *testing.T) {
	s := testFileStore(t)
	if _, err := s.Download(context.Background(), "../escape"); err == nil {
		t.Fatal("expected error for traversal locator")
	}
}

func TestList(t *testing.T) {
	s := testFileStore(t)
	ctx := context.Background()

	for _, key := range []string{"book-1/page-001.png", "book-1/page-002.png", "book-2/page-001.png"} {
		if _, err := s.Save(ctx, key, []byte("x"), "image/png"); err != nil {
			t.Fatalf("Save %s: %v", key, err)
		}
	}

	locators, err := s.List(ctx, "book-1/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(locators) != 2 {
		t.Fatalf("listed %v, want 2 entries", locators)
	}
	if locators[0] != "book-1/page-001.png" {
		t.Fatalf("ordering wrong: %v", locators)
	}
}
