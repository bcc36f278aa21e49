// Package msgparse turns a message's raw args payload into the typed
// structure its code implies. Each parser here mirrors one Code from
// internal/bus/msg and knows nothing about sockets or routing.
package msgparse

import (
	"fmt"
	"strconv"

	"github.com/bdj4go/bdj4/internal/bus/msg"
)

// SongSelect is the payload of REQ_SONG_SELECT: which on-screen queue row
// was chosen.
type SongSelect struct {
	MusicqIdx int
	SongIdx   int
}

// ParseSongSelect parses a REQ_SONG_SELECT args payload ("musicqidx\x1esongidx").
func ParseSongSelect(args []byte) (SongSelect, error) {
	f := msg.DecodeArgs(args)
	if len(f) != 2 {
		return SongSelect{}, fmt.Errorf("msgparse: song select wants 2 fields, got %d", len(f))
	}
	mq, err := strconv.Atoi(f[0])
	if err != nil {
		return SongSelect{}, fmt.Errorf("msgparse: musicqidx: %w", err)
	}
	si, err := strconv.Atoi(f[1])
	if err != nil {
		return SongSelect{}, fmt.Errorf("msgparse: songidx: %w", err)
	}
	return SongSelect{MusicqIdx: mq, SongIdx: si}, nil
}

// PlayerStatus is the payload of PLAYER_STATUS_DATA, the player's periodic
// "now playing" broadcast.
type PlayerStatus struct {
	Playing     bool
	Paused      bool
	Repeat      bool
	Volume      int
	PlayedTime  int
	Duration    int
	SongIdx     int
}

// ParsePlayerStatus parses a PLAYER_STATUS_DATA args payload.
func ParsePlayerStatus(args []byte) (PlayerStatus, error) {
	f := msg.DecodeArgs(args)
	if len(f) != 7 {
		return PlayerStatus{}, fmt.Errorf("msgparse: player status wants 7 fields, got %d", len(f))
	}
	atoiBool := func(s string) bool { return s == "1" }
	atoi := func(s string) (int, error) { return strconv.Atoi(s) }

	volume, err := atoi(f[3])
	if err != nil {
		return PlayerStatus{}, fmt.Errorf("msgparse: volume: %w", err)
	}
	played, err := atoi(f[4])
	if err != nil {
		return PlayerStatus{}, fmt.Errorf("msgparse: playedtime: %w", err)
	}
	dur, err := atoi(f[5])
	if err != nil {
		return PlayerStatus{}, fmt.Errorf("msgparse: duration: %w", err)
	}
	songIdx, err := atoi(f[6])
	if err != nil {
		return PlayerStatus{}, fmt.Errorf("msgparse: songidx: %w", err)
	}

	return PlayerStatus{
		Playing:    atoiBool(f[0]),
		Paused:     atoiBool(f[1]),
		Repeat:     atoiBool(f[2]),
		Volume:     volume,
		PlayedTime: played,
		Duration:   dur,
		SongIdx:    songIdx,
	}, nil
}

// DBProgress is the payload of DB_PROGRESS: the updater's running counters,
// reported at most once every 50ms while a rebuild or update is in flight.
type DBProgress struct {
	Found     int
	Skipped   int
	Processed int
}

// ParseDBProgress parses a DB_PROGRESS args payload.
func ParseDBProgress(args []byte) (DBProgress, error) {
	f := msg.DecodeArgs(args)
	if len(f) != 3 {
		return DBProgress{}, fmt.Errorf("msgparse: db progress wants 3 fields, got %d", len(f))
	}
	found, err := strconv.Atoi(f[0])
	if err != nil {
		return DBProgress{}, fmt.Errorf("msgparse: found: %w", err)
	}
	skipped, err := strconv.Atoi(f[1])
	if err != nil {
		return DBProgress{}, fmt.Errorf("msgparse: skipped: %w", err)
	}
	processed, err := strconv.Atoi(f[2])
	if err != nil {
		return DBProgress{}, fmt.Errorf("msgparse: processed: %w", err)
	}
	return DBProgress{Found: found, Skipped: skipped, Processed: processed}, nil
}

// EncodeDBProgress builds a DB_PROGRESS args payload from counters.
func EncodeDBProgress(p DBProgress) []byte {
	return msg.EncodeArgs(
		strconv.Itoa(p.Found),
		strconv.Itoa(p.Skipped),
		strconv.Itoa(p.Processed),
	)
}

// DBFileTags is the payload of DB_FILE_TAGS: dbtag's answer to one
// DB_FILE_CHK request. TagsRead/HasTags distinguish a file whose tag
// container couldn't be parsed at all from one that parsed clean but
// carried no fields, so dbupdate can keep its null-tags/no-tags counters
// separate.
type DBFileTags struct {
	Path     string
	Checksum string
	Title    string
	Artist   string
	Album    string
	Genre    string
	TagsRead bool
	HasTags  bool
}

// ParseDBFileTags parses a DB_FILE_TAGS args payload.
func ParseDBFileTags(args []byte) (DBFileTags, error) {
	f := msg.DecodeArgs(args)
	if len(f) != 8 {
		return DBFileTags{}, fmt.Errorf("msgparse: db file tags wants 8 fields, got %d", len(f))
	}
	return DBFileTags{
		Path:     f[0],
		Checksum: f[1],
		Title:    f[2],
		Artist:   f[3],
		Album:    f[4],
		Genre:    f[5],
		TagsRead: f[6] == "1",
		HasTags:  f[7] == "1",
	}, nil
}

// EncodeDBFileTags builds a DB_FILE_TAGS args payload.
func EncodeDBFileTags(t DBFileTags) []byte {
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	return msg.EncodeArgs(
		t.Path, t.Checksum, t.Title, t.Artist, t.Album, t.Genre, b(t.TagsRead), b(t.HasTags),
	)
}

// EncodePlayerStatus builds a PLAYER_STATUS_DATA args payload.
func EncodePlayerStatus(s PlayerStatus) []byte {
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	return msg.EncodeArgs(
		b(s.Playing), b(s.Paused), b(s.Repeat),
		strconv.Itoa(s.Volume), strconv.Itoa(s.PlayedTime),
		strconv.Itoa(s.Duration), strconv.Itoa(s.SongIdx),
	)
}
