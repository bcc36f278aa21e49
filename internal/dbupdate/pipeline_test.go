package dbupdate

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/bdj4go/bdj4/internal/dbtag"
	"github.com/bdj4go/bdj4/internal/musicdb"
)

func writeTestSong(t *testing.T, dir, name string, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestPipelineRunFindsAndProcessesFiles(t *testing.T) {
	musicDir := t.TempDir()
	writeTestSong(t, musicDir, "one.mp3", "song one")
	writeTestSong(t, musicDir, "two.flac", "song two")
	writeTestSong(t, musicDir, "notes.txt", "not a song")

	dbPath := filepath.Join(t.TempDir(), "musicdb.json")

	var states []State
	p := New(Options{
		MusicDir: musicDir,
		DBPath:   dbPath,
		OnState:  func(s State) { states = append(states, s) },
	})

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	counters := p.Counters()
	if counters.Found != 2 {
		t.Fatalf("expected 2 supported files found, got %d", counters.Found)
	}
	if counters.Found != counters.Skipped+counters.Processed {
		t.Fatalf("invariant violated: found=%d skipped=%d processed=%d",
			counters.Found, counters.Skipped, counters.Processed)
	}
	if counters.Processed != 2 {
		t.Fatalf("expected both new files processed, got %d", counters.Processed)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file to be written: %v", err)
	}
	if p.State() != Done {
		t.Fatalf("expected final state DONE, got %s", p.State())
	}
}

// readableTagsChecker reports readable tags for path. Plain text bytes carry
// no tag container, so dbtag.Check would count such a file null-tags and
// never save it.
func readableTagsChecker(path, checksum string) *stubChecker {
	return &stubChecker{results: map[string]dbtag.CheckResult{
		path: {
			Path: path, Checksum: checksum, TagsRead: true, HasTags: true,
			Entry: musicdb.Entry{Checksum: checksum, Path: path, Title: "one"},
		},
	}}
}

func TestPipelineRerunDoesNotResaveUnchangedFile(t *testing.T) {
	musicDir := t.TempDir()
	songPath := writeTestSong(t, musicDir, "one.mp3", "song one")
	dbPath := filepath.Join(t.TempDir(), "musicdb.json")
	checker := readableTagsChecker(songPath, "c1")

	first := New(Options{MusicDir: musicDir, DBPath: dbPath, Checker: checker})
	if err := first.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstSummary := first.Summary()
	if firstSummary.Processed != 1 || firstSummary.Saved != 1 {
		t.Fatalf("expected 1 processed and saved on first run, got %+v", firstSummary)
	}

	second := New(Options{MusicDir: musicDir, DBPath: dbPath, Checker: checker})
	if err := second.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	summary := second.Summary()
	// The file is still sent and checked every run (no check-new mode), but
	// its checksum is unchanged, so it is counted processed without being
	// rewritten to the database.
	if summary.Sent != 1 || summary.Processed != 1 || summary.Saved != 0 {
		t.Fatalf("expected unchanged file processed but not re-saved, got %+v", summary)
	}
}

func TestPipelineCheckNewSkipsKnownRelativePaths(t *testing.T) {
	musicDir := t.TempDir()
	songPath := writeTestSong(t, musicDir, "one.mp3", "song one")
	dbPath := filepath.Join(t.TempDir(), "musicdb.json")
	checker := readableTagsChecker(songPath, "c1")

	first := New(Options{MusicDir: musicDir, DBPath: dbPath, Checker: checker})
	if err := first.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	writeTestSong(t, musicDir, "two.mp3", "song two")

	second := New(Options{MusicDir: musicDir, DBPath: dbPath, CheckNew: true, Checker: checker})
	if err := second.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	summary := second.Summary()
	if summary.Found != 2 {
		t.Fatalf("expected both files found, got %d", summary.Found)
	}
	if summary.Already != 1 || summary.Sent != 1 {
		t.Fatalf("expected the known file counted already and the new file sent, got %+v", summary)
	}
}

func TestPipelineRebuildDiscardsExistingDatabase(t *testing.T) {
	musicDir := t.TempDir()
	writeTestSong(t, musicDir, "one.mp3", "song one")
	dbPath := filepath.Join(t.TempDir(), "musicdb.json")

	first := New(Options{MusicDir: musicDir, DBPath: dbPath})
	if err := first.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	rebuild := New(Options{MusicDir: musicDir, DBPath: dbPath, Rebuild: true})
	if err := rebuild.Run(context.Background()); err != nil {
		t.Fatalf("rebuild run: %v", err)
	}
	if rebuild.Counters().Processed != 1 {
		t.Fatalf("expected rebuild to reprocess the file as new, got processed=%d", rebuild.Counters().Processed)
	}
}

func TestPipelineBlacklistCountsBadButStillCountsFound(t *testing.T) {
	musicDir := t.TempDir()
	writeTestSong(t, musicDir, "keep.mp3", "keep me")
	writeTestSong(t, musicDir, "skip_me.mp3", "exclude me")

	p := New(Options{
		MusicDir:  musicDir,
		DBPath:    filepath.Join(t.TempDir(), "musicdb.json"),
		Blacklist: regexp.MustCompile(`skip_me`),
	})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	summary := p.Summary()
	// Found must include the blacklisted file — blacklist classification
	// happens in SEND, not PREP, so a bad-named file still counts toward
	// the candidate total.
	if summary.Found != 2 {
		t.Fatalf("expected found to include the blacklisted file, found=%d", summary.Found)
	}
	if summary.Bad != 1 || summary.Sent != 1 || summary.Skipped != 1 {
		t.Fatalf("expected one bad, one sent, one skipped, got %+v", summary)
	}
}

func TestPipelineNullAndNoTagsCountedWithoutBeingSaved(t *testing.T) {
	musicDir := t.TempDir()
	writeTestSong(t, musicDir, "a.mp3", "a")
	writeTestSong(t, musicDir, "b.mp3", "b")

	checker := &stubChecker{
		results: map[string]dbtag.CheckResult{
			filepath.Join(musicDir, "a.mp3"): {Path: filepath.Join(musicDir, "a.mp3"), Checksum: "aaa"},
			filepath.Join(musicDir, "b.mp3"): {
				Path: filepath.Join(musicDir, "b.mp3"), Checksum: "bbb", TagsRead: true, HasTags: false,
			},
		},
	}

	p := New(Options{
		MusicDir: musicDir,
		DBPath:   filepath.Join(t.TempDir(), "musicdb.json"),
		Checker:  checker,
	})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	summary := p.Summary()
	if summary.NullTags != 1 {
		t.Fatalf("expected the unread file counted null-tags, got %+v", summary)
	}
	if summary.NoTags != 1 {
		t.Fatalf("expected the tag-less file counted no-tags, got %+v", summary)
	}
	if summary.Saved != 0 {
		t.Fatalf("expected neither file to be saved, got saved=%d", summary.Saved)
	}
	if summary.Processed != 2 {
		t.Fatalf("expected both files counted processed regardless, got processed=%d", summary.Processed)
	}
}

func TestPipelineStopCancellationSkipsRebuildRename(t *testing.T) {
	musicDir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeTestSong(t, musicDir, string(rune('a'+i))+".mp3", "content")
	}
	dbPath := filepath.Join(t.TempDir(), "musicdb.json")

	ctx, cancel := context.WithCancel(context.Background())
	checker := &stubChecker{
		results: map[string]dbtag.CheckResult{},
		onCheck: func(path string) { cancel() },
	}

	p := New(Options{MusicDir: musicDir, DBPath: dbPath, Rebuild: true, Checker: checker})
	if err := p.Run(ctx); err == nil {
		t.Fatal("expected DB_STOP_REQ-style cancellation to surface an error")
	}
	if _, err := os.Stat(dbPath); err == nil {
		t.Fatal("expected no database file to be written once canceled mid-run")
	}
}

// stubChecker drives dbupdate's Checker interface from a fixed result
// table, for tests that need to control tag-read outcomes (null/empty
// tags, mid-run cancellation) without depending on dhowden/tag's parsing
// of real audio bytes.
type stubChecker struct {
	results map[string]dbtag.CheckResult
	onCheck func(path string)
}

func (s *stubChecker) Check(path string) (dbtag.CheckResult, error) {
	if s.onCheck != nil {
		s.onCheck(path)
	}
	r, ok := s.results[path]
	if !ok {
		return dbtag.CheckResult{Path: path}, nil
	}
	return r, nil
}

func TestPipelineRunCanceledContextStopsPromptly(t *testing.T) {
	musicDir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeTestSong(t, musicDir, string(rune('a'+i))+".mp3", "content")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Options{MusicDir: musicDir, DBPath: filepath.Join(t.TempDir(), "musicdb.json")})
	err := p.Run(ctx)
	if err == nil {
		t.Fatal("expected an error from a pre-canceled context")
	}
}

func TestPipelineMissingMusicDirErrors(t *testing.T) {
	p := New(Options{
		MusicDir: filepath.Join(t.TempDir(), "does-not-exist"),
		DBPath:   filepath.Join(t.TempDir(), "musicdb.json"),
	})
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected an error for a missing music directory")
	}
}
