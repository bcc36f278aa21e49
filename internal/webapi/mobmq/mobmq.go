// Package mobmq implements the mobile marquee's no-auth web surface:
// polling /mmupdate plus a websocket push channel for "now playing"
// updates. The fanout shape (one buffered channel per subscriber, a
// broadcaster holding the write lock only long enough to enqueue) is
// adapted directly from the broadcaster/clientSub pattern the teacher uses
// to fan an audio stream out to many HTTP clients; here it fans out JSON
// status updates instead of MP3 bytes.
package mobmq

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bdj4go/bdj4/internal/msgparse"
	"github.com/bdj4go/bdj4/internal/websrv"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// sub is one websocket subscriber's outbound queue, mirroring the
// teacher's clientSub: a buffered channel the broadcaster never blocks on.
type sub struct {
	ch chan msgparse.PlayerStatus
	id uint64
}

// Hub fans the player's current status out to every connected marquee,
// both to /mmupdate pollers (via Current) and to websocket subscribers
// (via the push channel).
type Hub struct {
	mu      sync.RWMutex
	current msgparse.PlayerStatus
	clients map[uint64]*sub
	nextID  uint64
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[uint64]*sub)}
}

// Publish updates the current status and fans it out to every websocket
// subscriber without blocking on any single slow client — a full client
// channel just drops the update, the same shape as broadcastWriter.Write.
func (h *Hub) Publish(status msgparse.PlayerStatus) {
	h.mu.Lock()
	h.current = status
	clients := make([]*sub, 0, len(h.clients))
	for _, s := range h.clients {
		clients = append(clients, s)
	}
	h.mu.Unlock()

	for _, s := range clients {
		select {
		case s.ch <- status:
		default:
		}
	}
}

// Current returns the last published status, what /mmupdate polling
// responds with.
func (h *Hub) Current() msgparse.PlayerStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Hub) subscribe() *sub {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	s := &sub{ch: make(chan msgparse.PlayerStatus, 16), id: id}
	h.clients[id] = s
	return s
}

func (h *Hub) unsubscribe(s *sub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, s.id)
	close(s.ch)
}

// statusJSON is the wire shape for both /mmupdate and the websocket push;
// no auth gate applies to either, per the mobile marquee's no-auth model.
type statusJSON struct {
	Playing    bool `json:"playing"`
	Paused     bool `json:"paused"`
	Volume     int  `json:"volume"`
	PlayedTime int  `json:"playedTime"`
	Duration   int  `json:"duration"`
	SongIdx    int  `json:"songIdx"`
}

func toJSON(s msgparse.PlayerStatus) statusJSON {
	return statusJSON{
		Playing:    s.Playing,
		Paused:     s.Paused,
		Volume:     s.Volume,
		PlayedTime: s.PlayedTime,
		Duration:   s.Duration,
		SongIdx:    s.SongIdx,
	}
}

// Register mounts the mobile marquee's routes onto e: GET /mmupdate for
// polling, GET /mmws for the websocket push, and a static fallback for the
// marquee's own HTML/JS/CSS under webDir.
func Register(e *websrv.Engine, hub *Hub, webDir string) {
	g := e.Group("/mobilemq")

	g.GET("/mmupdate", func(c *gin.Context) {
		c.JSON(http.StatusOK, toJSON(hub.Current()))
	})

	g.GET("/mmws", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		s := hub.subscribe()
		defer hub.unsubscribe(s)

		if err := conn.WriteJSON(toJSON(hub.Current())); err != nil {
			return
		}
		for status := range s.ch {
			if err := conn.WriteJSON(toJSON(status)); err != nil {
				return
			}
		}
	})

	g.GET("/*path", func(c *gin.Context) {
		p := c.Param("path")
		if p == "" || p == "/" {
			p = "/mobilemq.html"
		}
		websrv.ServeStaticFile(c, webDir, p)
	})
}
