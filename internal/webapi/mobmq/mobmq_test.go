package mobmq

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bdj4go/bdj4/internal/msgparse"
	"github.com/bdj4go/bdj4/internal/websrv"
)

func TestMmUpdateReflectsLastPublishedStatusWithoutAuth(t *testing.T) {
	hub := NewHub()
	hub.Publish(msgparse.PlayerStatus{Playing: true, Volume: 55, SongIdx: 2})

	e := websrv.New()
	Register(e, hub, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/mobilemq/mmupdate", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with no credentials (mobmq has no auth), got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["playing"] != true {
		t.Fatalf("expected playing=true, got %v", body["playing"])
	}
	if int(body["songIdx"].(float64)) != 2 {
		t.Fatalf("expected songIdx=2, got %v", body["songIdx"])
	}
}

func TestHubPublishDropsOnFullSubscriberChannel(t *testing.T) {
	hub := NewHub()
	s := hub.subscribe()
	defer hub.unsubscribe(s)

	// The subscriber channel is buffered to 16; publishing far more than
	// that without draining it must never block the broadcaster.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(msgparse.PlayerStatus{SongIdx: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full, undrained subscriber channel")
	}
}

func TestHubUnsubscribeRemovesClient(t *testing.T) {
	hub := NewHub()
	s := hub.subscribe()
	if len(hub.clients) != 1 {
		t.Fatalf("expected 1 client, got %d", len(hub.clients))
	}
	hub.unsubscribe(s)
	if len(hub.clients) != 0 {
		t.Fatalf("expected 0 clients after unsubscribe, got %d", len(hub.clients))
	}
}

func TestCurrentReturnsLastPublishedStatus(t *testing.T) {
	hub := NewHub()
	hub.Publish(msgparse.PlayerStatus{Volume: 33})
	if got := hub.Current(); got.Volume != 33 {
		t.Fatalf("expected volume 33, got %d", got.Volume)
	}
}
