package msg

// Code is a message code drawn from the closed, per-destination enumeration
// described by the bus contract. The code alone determines the shape of
// Args; msgparse dispatches on it.
type Code int

// Handshake and lifecycle codes, shared by every route.
const (
	Null Code = iota
	Handshake
	SocketClose
	ExitRequest

	// Commands to main: queue manipulation, playback control.
	ReqQueueClear
	ReqQueueSwitch
	ReqSongSelect
	ReqSongMoveUp
	ReqSongMoveDown
	ReqPlaylistQueue
	ReqQueueDance
	ReqPlay
	ReqNextSong
	ReqPauseatend
	ReqRepeat

	// Commands to player: fade, pause, seek, volume.
	ReqPlayerFade
	ReqPlayerPause
	ReqPlayerPlay
	ReqPlayerSeek
	ReqPlayerVolume
	ReqPlayerVolmute
	ReqPlayerSpeed
	ReqPlayerStop

	// Notifications from player.
	PlayerStatusData
	PlaybackBegin
	PlaybackFinish
	PlayerStateChg

	// Broadcast notifications.
	DbEntryUpdate
	DbEntryRemove
	MusicqDataUpdate
	DanceListData
	PlaylistNamesData

	// Starter / fleet management.
	MainStartReq
	MainStartReattach

	// dbupdate <-> dbtag pipeline.
	DBFileChk
	DBFileTags
	DBStopReq
	DBProgress
	DBFinish

	maxCode
)

// Valid reports whether c is within the known code range.
func (c Code) Valid() bool { return c >= 0 && c < maxCode }

var names = [maxCode]string{
	Null:              "NULL",
	Handshake:         "HANDSHAKE",
	SocketClose:       "SOCKET_CLOSE",
	ExitRequest:       "EXIT_REQUEST",
	ReqQueueClear:     "REQ_QUEUE_CLEAR",
	ReqQueueSwitch:    "REQ_QUEUE_SWITCH",
	ReqSongSelect:     "REQ_SONG_SELECT",
	ReqSongMoveUp:     "REQ_SONG_MOVE_UP",
	ReqSongMoveDown:   "REQ_SONG_MOVE_DOWN",
	ReqPlaylistQueue:  "REQ_PLAYLIST_QUEUE",
	ReqQueueDance:     "REQ_QUEUE_DANCE",
	ReqPlay:           "REQ_PLAY",
	ReqNextSong:       "REQ_NEXT_SONG",
	ReqPauseatend:     "REQ_PAUSEATEND",
	ReqRepeat:         "REQ_REPEAT",
	ReqPlayerFade:     "REQ_PLAYER_FADE",
	ReqPlayerPause:    "REQ_PLAYER_PAUSE",
	ReqPlayerPlay:     "REQ_PLAYER_PLAY",
	ReqPlayerSeek:     "REQ_PLAYER_SEEK",
	ReqPlayerVolume:   "REQ_PLAYER_VOLUME",
	ReqPlayerVolmute:  "REQ_PLAYER_VOLMUTE",
	ReqPlayerSpeed:    "REQ_PLAYER_SPEED",
	ReqPlayerStop:     "REQ_PLAYER_STOP",
	PlayerStatusData:  "PLAYER_STATUS_DATA",
	PlaybackBegin:     "PLAYBACK_BEGIN",
	PlaybackFinish:    "PLAYBACK_FINISH",
	PlayerStateChg:    "PLAYER_STATE_CHG",
	DbEntryUpdate:     "DB_ENTRY_UPDATE",
	DbEntryRemove:     "DB_ENTRY_REMOVE",
	MusicqDataUpdate:  "MUSICQ_DATA_UPDATE",
	DanceListData:     "DANCE_LIST_DATA",
	PlaylistNamesData: "PLAYLIST_NAMES_DATA",
	MainStartReq:      "MAIN_START_REQ",
	MainStartReattach: "MAIN_START_REATTACH",
	DBFileChk:         "DB_FILE_CHK",
	DBFileTags:        "DB_FILE_TAGS",
	DBStopReq:         "DB_STOP_REQ",
	DBProgress:        "DB_PROGRESS",
	DBFinish:          "DB_FINISH",
}

// String returns the fixed debug name for c, or "UNKNOWN" if out of range.
// This table is static by design (spec Design Notes): never build it
// dynamically.
func (c Code) String() string {
	if !c.Valid() {
		return "UNKNOWN"
	}
	if n := names[c]; n != "" {
		return n
	}
	return "UNKNOWN"
}
