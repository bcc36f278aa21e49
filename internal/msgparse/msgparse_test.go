package msgparse

import (
	"testing"

	"github.com/bdj4go/bdj4/internal/bus/msg"
)

func TestParseSongSelect(t *testing.T) {
	args := msg.EncodeArgs("1", "4")
	got, err := ParseSongSelect(args)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.MusicqIdx != 1 || got.SongIdx != 4 {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseSongSelectWrongFieldCount(t *testing.T) {
	args := msg.EncodeArgs("1")
	if _, err := ParseSongSelect(args); err == nil {
		t.Fatal("expected error for wrong field count")
	}
}

func TestPlayerStatusRoundTrip(t *testing.T) {
	status := PlayerStatus{
		Playing: true, Paused: false, Repeat: true,
		Volume: 55, PlayedTime: 120, Duration: 240, SongIdx: 3,
	}
	encoded := EncodePlayerStatus(status)
	got, err := ParsePlayerStatus(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != status {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, status)
	}
}

func TestDBProgressRoundTrip(t *testing.T) {
	p := DBProgress{Found: 100, Skipped: 5, Processed: 95}
	encoded := EncodeDBProgress(p)
	got, err := ParseDBProgress(encoded)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != p {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, p)
	}
}

func TestParseDBProgressBadField(t *testing.T) {
	args := msg.EncodeArgs("not-a-number", "0", "0")
	if _, err := ParseDBProgress(args); err == nil {
		t.Fatal("expected error for non-numeric field")
	}
}
