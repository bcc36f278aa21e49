// Package websrv is the shared HTTP/HTTPS engine the mobile marquee,
// remote control, and inter-host file server all mount their routes onto.
// It wraps a single *gin.Engine — the same dispatch engine the teacher's
// dead radio/handler+service layer already depended on in go.mod but
// never actually wired up — as the "URI dispatch table that routes to
// bus-message translators" the web servers need.
package websrv

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// forbiddenExt lists the TLS-material extensions a bdj4go web server must
// never serve, regardless of auth; pathSafety rejects them, and rejects
// ".." separately.
var forbiddenExt = []string{".key", ".crt", ".pem", ".csr"}

// Engine wraps a gin.Engine (Listen and ListenTLS return the Server that
// serves it), so the three web servers (mobmq, rc, srv) can each mount their own route group
// while sharing one security-headers/static-file foundation.
type Engine struct {
	gin *gin.Engine
}

// New builds an Engine with the teacher's security-headers middleware
// (adapted from radio/middleware.go's SecurityHeadersMiddleware) installed
// on every route, plus the path-safety guard every bdj4go web server
// needs before it ever touches the filesystem.
func New() *Engine {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	g.Use(securityHeaders())
	g.Use(pathSafety())
	return &Engine{gin: g}
}

// Group mounts a route group under prefix, the same shape each of
// mobmq/rc/srv uses to register its own endpoint set without stepping on
// the others.
func (e *Engine) Group(prefix string) *gin.RouterGroup {
	return e.gin.Group(prefix)
}

// ServeHTTP makes Engine itself an http.Handler, so callers (including
// httptest-driven package tests outside websrv) can exercise it without
// an open listener.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.gin.ServeHTTP(w, r)
}

// ServeStaticFile serves a single file from a web root, rejecting any
// request whose cleaned path would land outside dir. This generalizes the
// path-traversal guard the teacher's stdlib-based server.go used for its
// static file handler to gin's request path.
func ServeStaticFile(c *gin.Context, dir, reqPath string) {
	clean := path.Clean("/" + reqPath)
	full := dir + clean
	if !strings.HasPrefix(full, path.Clean(dir)+"/") && full != path.Clean(dir) {
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	c.File(full)
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// pathSafety rejects URIs that try to read TLS material or escape the web
// root via "..", before any handler runs.
func pathSafety() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := strings.ToLower(c.Request.URL.Path)
		for _, ext := range forbiddenExt {
			if strings.HasSuffix(p, ext) {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}
		if strings.Contains(c.Request.URL.Path, "..") {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

// BasicAuth returns gin middleware enforcing HTTP Basic auth against a
// bcrypt-hashed password, the bcrypt half of the teacher's auth.Auth
// carried over from bearer-token auth to Basic auth per the remote
// control / inter-host server's auth model.
func BasicAuth(user string, passwordHash []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, p, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="bdj4"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(passwordHash, []byte(p)); err != nil {
			c.Header("WWW-Authenticate", `Basic realm="bdj4"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// HashPassword bcrypt-hashes a plaintext password at startup, the same
// pre-hash-once-at-load shape auth.New uses for the DJ password.
func HashPassword(plain string) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("websrv: hash password: %w", err)
	}
	return h, nil
}

// Server wraps http.Server for graceful shutdown, matching the teacher's
// main.go shutdown-context pattern.
type Server struct {
	http *http.Server
}

// Listen starts serving addr with engine in the background, returning
// immediately. An error from ListenAndServe (such as the address being in
// use) is discarded and not reported to the caller.
func (e *Engine) Listen(addr string) *Server {
	hs := &http.Server{Addr: addr, Handler: e.gin}
	s := &Server{http: hs}
	go func() {
		_ = hs.ListenAndServe()
	}()
	return s
}

// ListenTLS is the HTTPS variant used by the inter-host file server.
func (e *Engine) ListenTLS(addr, certFile, keyFile string) *Server {
	hs := &http.Server{Addr: addr, Handler: e.gin}
	s := &Server{http: hs}
	go func() {
		_ = hs.ListenAndServeTLS(certFile, keyFile)
	}()
	return s
}

// Shutdown gracefully stops the server within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
