// Package rc implements the remote control web surface: Basic-auth-gated
// endpoints that translate HTTP requests into bus messages toward main and
// the player, and a status endpoint that reflects the last known player
// state back. The handler/service split mirrors the teacher's
// radio/handler + radio/service layering, generalized from an HTTP-native
// radio API to a thin HTTP-to-bus translation layer.
package rc

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/msgparse"
	"github.com/bdj4go/bdj4/internal/websrv"
)

// Sender is how rc speaks to the rest of the fleet: a thin seam over
// conn.Manager.Send so this package never imports the bus transport
// directly.
type Sender interface {
	Send(code msg.Code, args []byte) error
}

// Service holds the remote control's view of player state plus a Sender
// for issuing commands, the service-layer half of the handler/service
// split.
type Service struct {
	send          Sender
	status        msgparse.PlayerStatus
	danceList     []string
	playlistNames []string
}

// NewService creates a Service bound to send.
func NewService(send Sender) *Service {
	return &Service{send: send}
}

// UpdateStatus is called whenever a PLAYER_STATUS_DATA message arrives, so
// GetStatus reflects the live player instead of going out to the bus on
// every request.
func (s *Service) UpdateStatus(st msgparse.PlayerStatus) {
	s.status = st
}

// Status returns the last known player status.
func (s *Service) Status() msgparse.PlayerStatus {
	return s.status
}

// UpdateDanceList is called whenever a DANCE_LIST_DATA broadcast arrives,
// so GetDanceList reflects the fleet's dance catalog without a bus round
// trip per request.
func (s *Service) UpdateDanceList(names []string) {
	s.danceList = names
}

// DanceList returns the last known dance list.
func (s *Service) DanceList() []string {
	return s.danceList
}

// UpdatePlaylistNames is called whenever a PLAYLIST_NAMES_DATA broadcast
// arrives, so GetPlaylistSel reflects the known playlists without a bus
// round trip per request.
func (s *Service) UpdatePlaylistNames(names []string) {
	s.playlistNames = names
}

// PlaylistNames returns the last known playlist name list.
func (s *Service) PlaylistNames() []string {
	return s.playlistNames
}

// Handlers holds the gin route handlers for remote control: each POST
// handler is a thin translation from an HTTP request to one or more bus
// Send calls, and each GET handler answers from the Service's cached state
// without sending, following the teacher's handler-calls-service-does-the-
// work split.
type Handlers struct {
	svc *Service
}

// NewHandlers creates Handlers around svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func (h *Handlers) ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) send(c *gin.Context, code msg.Code, args []byte) {
	if err := h.svc.send.Send(code, args); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	h.ok(c)
}

// Play handles POST /play.
func (h *Handlers) Play(c *gin.Context) { h.send(c, msg.ReqPlay, nil) }

// NextSong handles POST /nextsong.
func (h *Handlers) NextSong(c *gin.Context) { h.send(c, msg.ReqNextSong, nil) }

// Fade handles POST /fade.
func (h *Handlers) Fade(c *gin.Context) { h.send(c, msg.ReqPlayerFade, nil) }

// PauseAtEnd handles POST /pauseatend.
func (h *Handlers) PauseAtEnd(c *gin.Context) { h.send(c, msg.ReqPauseatend, nil) }

// Repeat handles POST /repeat.
func (h *Handlers) Repeat(c *gin.Context) { h.send(c, msg.ReqRepeat, nil) }

// Clear handles POST /clear.
func (h *Handlers) Clear(c *gin.Context) { h.send(c, msg.ReqQueueClear, nil) }

// PlaylistQueue handles POST /playlistqueue?name=...
func (h *Handlers) PlaylistQueue(c *gin.Context) {
	name := c.Query("name")
	h.send(c, msg.ReqPlaylistQueue, msg.EncodeArgs(name))
}

// PlaylistClearPlay handles POST /playlistclearplay?name=...: clears the
// queue and the currently playing song, then queues and plays the named
// playlist, the combined action a remote "play this instead" button drives.
func (h *Handlers) PlaylistClearPlay(c *gin.Context) {
	name := c.Query("name")
	steps := []struct {
		code msg.Code
		args []byte
	}{
		{msg.ReqQueueClear, nil},
		{msg.ReqNextSong, nil},
		{msg.ReqPlaylistQueue, msg.EncodeArgs(name)},
		{msg.ReqPlay, nil},
	}
	for _, step := range steps {
		if err := h.svc.send.Send(step.code, step.args); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
			return
		}
	}
	h.ok(c)
}

// Queue handles POST /queue?name=...: queues one song of the named dance
// and starts playback.
func (h *Handlers) Queue(c *gin.Context) { h.queueDance(c, 1) }

// Queue5 handles POST /queue5?name=...: queues five songs of the named
// dance and starts playback.
func (h *Handlers) Queue5(c *gin.Context) { h.queueDance(c, 5) }

func (h *Handlers) queueDance(c *gin.Context, count int) {
	name := c.Query("name")
	args := msg.EncodeArgs(name, strconv.Itoa(count))
	if err := h.svc.send.Send(msg.ReqQueueDance, args); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	h.send(c, msg.ReqPlay, nil)
}

// Volume handles POST /volume?level=...
func (h *Handlers) Volume(c *gin.Context) {
	level := c.Query("level")
	h.send(c, msg.ReqPlayerVolume, msg.EncodeArgs(level))
}

// VolMute handles POST /volmute.
func (h *Handlers) VolMute(c *gin.Context) { h.send(c, msg.ReqPlayerVolmute, nil) }

// Speed handles POST /speed?rate=...
func (h *Handlers) Speed(c *gin.Context) {
	rate := c.Query("rate")
	h.send(c, msg.ReqPlayerSpeed, msg.EncodeArgs(rate))
}

// GetStatus handles GET /getstatus.
func (h *Handlers) GetStatus(c *gin.Context) {
	st := h.svc.Status()
	c.JSON(http.StatusOK, gin.H{
		"playing":    st.Playing,
		"paused":     st.Paused,
		"repeat":     st.Repeat,
		"volume":     st.Volume,
		"playedTime": st.PlayedTime,
		"duration":   st.Duration,
		"songIdx":    st.SongIdx,
	})
}

// GetCurrSong handles GET /getcurrsong.
func (h *Handlers) GetCurrSong(c *gin.Context) {
	st := h.svc.Status()
	c.JSON(http.StatusOK, gin.H{"songIdx": st.SongIdx})
}

// GetDanceList handles GET /getdancelist, returning the last DANCE_LIST_DATA
// broadcast this process has seen.
func (h *Handlers) GetDanceList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dances": h.svc.DanceList()})
}

// GetPlaylistSel handles GET /getplaylistsel, returning the last
// PLAYLIST_NAMES_DATA broadcast this process has seen.
func (h *Handlers) GetPlaylistSel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"playlists": h.svc.PlaylistNames()})
}

// Register mounts every remote control route onto e, gated behind Basic
// auth using the provided credentials.
func Register(e *websrv.Engine, h *Handlers, user string, passwordHash []byte) {
	g := e.Group("/remctrl")
	g.Use(websrv.BasicAuth(user, passwordHash))

	g.POST("/play", h.Play)
	g.POST("/nextsong", h.NextSong)
	g.POST("/fade", h.Fade)
	g.POST("/pauseatend", h.PauseAtEnd)
	g.POST("/repeat", h.Repeat)
	g.POST("/clear", h.Clear)
	g.POST("/playlistqueue", h.PlaylistQueue)
	g.POST("/playlistclearplay", h.PlaylistClearPlay)
	g.POST("/queue", h.Queue)
	g.POST("/queue5", h.Queue5)
	g.POST("/volume", h.Volume)
	g.POST("/volmute", h.VolMute)
	g.POST("/speed", h.Speed)
	g.GET("/getstatus", h.GetStatus)
	g.GET("/getcurrsong", h.GetCurrSong)
	g.GET("/getdancelist", h.GetDanceList)
	g.GET("/getplaylistsel", h.GetPlaylistSel)
}
