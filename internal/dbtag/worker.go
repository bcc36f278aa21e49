// Package dbtag is the tag-reading worker collaborator the database
// updater calls out to for every file it needs checked: read tags, hash
// the file, report back what it found. The logic here is lifted directly
// from the library's own file-to-Track conversion and generalized into a
// request/response shape the updater pipeline can drive.
package dbtag

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/bdj4go/bdj4/internal/musicdb"
)

// SupportedFormats lists the audio file extensions dbtag will read.
// Tag-reader internals (codec-specific frame parsing) stay inside
// dhowden/tag; this list only gates which files get handed to it.
var SupportedFormats = []string{".mp3", ".wav", ".flac", ".aac", ".ogg", ".m4a"}

// IsSupportedFormat reports whether ext (including the leading dot) names
// a format dbtag will process.
func IsSupportedFormat(ext string) bool {
	lower := strings.ToLower(ext)
	for _, f := range SupportedFormats {
		if lower == f {
			return true
		}
	}
	return false
}

// CheckResult is what a DB_FILE_CHK request yields: the checksum and tag
// fields dbupdate needs to decide whether an entry is new, changed, or
// unchanged, matching the updater's found/skipped/processed accounting.
// TagsRead and HasTags let the caller distinguish the two no-fallback
// cases the database-update job's counters track separately: TagsRead is
// false when the file couldn't be opened or no tag container could be
// parsed at all (the "null-tags" case); HasTags is false when a tag
// container was read but every field came back empty (the "no-tags"
// case). Neither case gets a fallback beyond the filename-derived title
// already on Entry — this reproduces the original's count-and-drop
// behavior rather than inventing one.
type CheckResult struct {
	Path     string
	Checksum string
	Entry    musicdb.Entry
	TagsRead bool
	HasTags  bool
	Err      error
}

// Check reads path's checksum and tags and returns a CheckResult. It never
// returns a Go error itself — read failures are carried in Err so the
// caller can count the file as an error without aborting the batch, the
// same non-fatal-per-file contract the original directory scan used.
func Check(path string) CheckResult {
	checksum, err := computeChecksum(path)
	if err != nil {
		return CheckResult{Path: path, Err: fmt.Errorf("dbtag: checksum %q: %w", path, err)}
	}

	entry := musicdb.Entry{
		Checksum: checksum,
		Path:     path,
	}

	filename := filepath.Base(path)
	entry.Title = strings.TrimSuffix(filename, filepath.Ext(filename))

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("dbtag: could not open file for metadata", "path", path, "error", err)
		return CheckResult{Path: path, Checksum: checksum, Entry: entry}
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("dbtag: could not read tags", "path", path, "error", err)
		return CheckResult{Path: path, Checksum: checksum, Entry: entry}
	}

	hasTags := m.Title() != "" || m.Artist() != "" || m.Album() != "" || m.Genre() != ""
	if m.Title() != "" {
		entry.Title = m.Title()
	}
	entry.Artist = m.Artist()
	entry.Album = m.Album()
	entry.Genre = m.Genre()

	return CheckResult{Path: path, Checksum: checksum, Entry: entry, TagsRead: true, HasTags: hasTags}
}

func computeChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
