// Package srv implements the inter-host BDJ4 file/playlist server: an
// HTTPS, Basic-auth-gated surface one bdj4go host exposes so another host
// can list and fetch its music library and playlists. Handlers stay a thin
// translation layer over musicdb, the same handler-thin/service-does-work
// shape the teacher's radio/handler package follows.
package srv

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bdj4go/bdj4/internal/musicdb"
	"github.com/bdj4go/bdj4/internal/websrv"
)

// Handlers serves the inter-host file/playlist API against a local
// musicdb.DB and music directory.
type Handlers struct {
	db       *musicdb.DB
	musicDir string
}

// NewHandlers creates Handlers backed by db. musicDir is kept on the
// Handlers; SongGet serves each entry's recorded path and does not
// consult it.
func NewHandlers(db *musicdb.DB, musicDir string) *Handlers {
	return &Handlers{db: db, musicDir: musicDir}
}

// Echo handles GET /echo, a liveness probe a remote host can use before
// attempting a real request.
func (h *Handlers) Echo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SongExists handles GET /songexists?checksum=...
func (h *Handlers) SongExists(c *gin.Context) {
	checksum := c.Query("checksum")
	_, ok := h.db.Get(checksum)
	c.JSON(http.StatusOK, gin.H{"exists": ok})
}

// SongTags handles GET /songtags?checksum=...
func (h *Handlers) SongTags(c *gin.Context) {
	checksum := c.Query("checksum")
	entry, ok := h.db.Get(checksum)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"title":        entry.Title,
		"artist":       entry.Artist,
		"album":        entry.Album,
		"genre":        entry.Genre,
		"durationSecs": entry.Duration,
	})
}

// SongGet handles GET /songget?checksum=..., streaming the audio file
// itself from the entry's recorded on-disk path via c.File. The path comes
// from the database, never from the client, so a malicious checksum can at
// worst name a nonexistent entry, never an arbitrary path; the recorded
// path is not checked against musicDir.
func (h *Handlers) SongGet(c *gin.Context) {
	checksum := c.Query("checksum")
	entry, ok := h.db.Get(checksum)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "not found"})
		return
	}
	c.File(entry.Path)
}

// PlNames handles GET /plnames, listing the checksums this host's
// database knows about — the minimal "playlist" surface for a remote host
// to diff against its own library.
func (h *Handlers) PlNames(c *gin.Context) {
	entries := h.db.All()
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Checksum)
	}
	c.JSON(http.StatusOK, gin.H{"checksums": names})
}

// PlGet handles GET /plget?checksum=..., returning one entry's full
// record.
func (h *Handlers) PlGet(c *gin.Context) {
	checksum := c.Query("checksum")
	entry, ok := h.db.Get(checksum)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Register mounts the inter-host file server's routes onto e, gated
// behind Basic auth. The caller is responsible for serving e over TLS
// (via Engine.ListenTLS) since this surface crosses host boundaries.
func Register(e *websrv.Engine, h *Handlers, user string, passwordHash []byte) {
	g := e.Group("/bdj4srv")
	g.Use(websrv.BasicAuth(user, passwordHash))

	g.GET("/echo", h.Echo)
	g.GET("/songexists", h.SongExists)
	g.GET("/songtags", h.SongTags)
	g.GET("/songget", h.SongGet)
	g.GET("/plnames", h.PlNames)
	g.GET("/plget", h.PlGet)
}
