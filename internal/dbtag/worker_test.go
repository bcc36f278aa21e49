package dbtag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsSupportedFormat(t *testing.T) {
	cases := map[string]bool{
		".mp3": true, ".MP3": true, ".flac": true, ".txt": false, "": false,
	}
	for ext, want := range cases {
		if got := IsSupportedFormat(ext); got != want {
			t.Errorf("IsSupportedFormat(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestCheckFallsBackToFilenameForTitle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "My Song.mp3")
	if err := os.WriteFile(path, []byte("not actually an mp3 file"), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	result := Check(path)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Checksum == "" {
		t.Fatal("expected a non-empty checksum")
	}
	if result.Entry.Title != "My Song" {
		t.Fatalf("expected filename-derived title, got %q", result.Entry.Title)
	}
	if result.Entry.Path != path {
		t.Fatalf("expected entry path %q, got %q", path, result.Entry.Path)
	}
}

func TestCheckSameContentSameChecksum(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp3")
	b := filepath.Join(dir, "b.mp3")
	content := []byte("identical bytes")
	if err := os.WriteFile(a, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, content, 0o644); err != nil {
		t.Fatal(err)
	}

	ra := Check(a)
	rb := Check(b)
	if ra.Checksum != rb.Checksum {
		t.Fatalf("expected identical content to hash the same: %q vs %q", ra.Checksum, rb.Checksum)
	}
}

func TestCheckMissingFileReportsErrNotPanic(t *testing.T) {
	result := Check(filepath.Join(t.TempDir(), "nope.mp3"))
	if result.Err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
