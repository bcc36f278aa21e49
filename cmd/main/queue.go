package main

import (
	"sync"

	"github.com/bdj4go/bdj4/internal/msgparse"
)

// queue holds main's view of the active music queue and the last player
// status it has seen. It is deliberately small: sequencing/dance
// classification/favorites logic lives above this layer and is out of
// scope here.
type queue struct {
	mu           sync.Mutex
	songs        []string
	activePlname string
	activeDance  string
	danceCount   int
	status       msgparse.PlayerStatus
}

func newQueue() *queue {
	return &queue{}
}

// Clear empties the queue, the REQ_QUEUE_CLEAR action.
func (q *queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.songs = nil
}

// Select moves a song to the front of musicqIdx's queue, the
// REQ_SONG_SELECT action. musicqIdx selects between the current/next
// queue slots; this minimal model only tracks one queue so it is ignored
// (not validated). An out-of-range songIdx leaves the queue unchanged.
func (q *queue) Select(musicqIdx, songIdx int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if songIdx < 0 || songIdx >= len(q.songs) {
		return
	}
	song := q.songs[songIdx]
	q.songs = append(q.songs[:songIdx], q.songs[songIdx+1:]...)
	q.songs = append([]string{song}, q.songs...)
	_ = musicqIdx
}

// QueuePlaylist records which playlist is feeding the queue, the
// REQ_PLAYLIST_QUEUE action.
func (q *queue) QueuePlaylist(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.activePlname = name
}

// QueueDance records a dance-name queue request and how many songs of it
// were asked for, the REQ_QUEUE_DANCE action behind the remote control
// "queue"/"queue5" commands. Picking actual songs for the dance is
// sequencing logic that lives above this layer, same as QueuePlaylist.
func (q *queue) QueueDance(name string, count int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.activeDance = name
	q.danceCount = count
}

// SetStatus records the player's most recent broadcast status.
func (q *queue) SetStatus(st msgparse.PlayerStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.status = st
}

// Status returns the last known player status.
func (q *queue) Status() msgparse.PlayerStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status
}
