package musicdb

import (
	"path/filepath"
	"testing"
)

func TestPutGetRemove(t *testing.T) {
	db := New(filepath.Join(t.TempDir(), "musicdb.json"))

	entry := Entry{Checksum: "abc", Path: "/music/a.mp3", Title: "A"}
	db.Put(entry)

	got, ok := db.Get("abc")
	if !ok || got != entry {
		t.Fatalf("expected to get back %+v, got %+v (ok=%v)", entry, got, ok)
	}
	if db.Count() != 1 {
		t.Fatalf("expected count 1, got %d", db.Count())
	}

	db.Remove("abc")
	if _, ok := db.Get("abc"); ok {
		t.Fatal("expected entry to be gone after Remove")
	}
	if db.Count() != 0 {
		t.Fatalf("expected count 0 after remove, got %d", db.Count())
	}
}

func TestSaveOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicdb.json")
	db := New(path)
	db.Put(Entry{Checksum: "c1", Path: "/a.mp3", Title: "One", Duration: 180})
	db.Put(Entry{Checksum: "c2", Path: "/b.mp3", Title: "Two", Duration: 200})

	if err := db.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("expected 2 entries after reopen, got %d", reopened.Count())
	}
	e, ok := reopened.Get("c1")
	if !ok || e.Title != "One" {
		t.Fatalf("unexpected entry after reopen: %+v (ok=%v)", e, ok)
	}
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if db.Count() != 0 {
		t.Fatalf("expected empty database, got %d entries", db.Count())
	}
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "musicdb.json")
	db := New(path)
	db.Put(Entry{Checksum: "c1", Path: "/a.mp3"})
	if err := db.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reader, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if reader.Count() != 1 {
		t.Fatalf("expected 1 entry, got %d", reader.Count())
	}

	db.Put(Entry{Checksum: "c2", Path: "/b.mp3"})
	if err := db.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := reader.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reader.Count() != 2 {
		t.Fatalf("expected 2 entries after reload, got %d", reader.Count())
	}
}

func TestAllReturnsEverySavedEntry(t *testing.T) {
	db := New(filepath.Join(t.TempDir(), "musicdb.json"))
	db.Put(Entry{Checksum: "c1"})
	db.Put(Entry{Checksum: "c2"})
	db.Put(Entry{Checksum: "c3"})

	all := db.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
}
