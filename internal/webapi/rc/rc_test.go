package rc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bdj4go/bdj4/internal/bus/msg"
	"github.com/bdj4go/bdj4/internal/msgparse"
	"github.com/bdj4go/bdj4/internal/websrv"
)

type fakeSender struct {
	codes []msg.Code
	args  [][]byte
	err   error
}

func (f *fakeSender) Send(code msg.Code, args []byte) error {
	f.codes = append(f.codes, code)
	f.args = append(f.args, args)
	return f.err
}

func newTestServer(t *testing.T) (*websrv.Engine, *Service, *fakeSender) {
	t.Helper()
	hash, err := websrv.HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	sender := &fakeSender{}
	svc := NewService(sender)
	h := NewHandlers(svc)

	e := websrv.New()
	Register(e, h, "bdj4", hash)
	return e, svc, sender
}

func doRequest(e *websrv.Engine, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.SetBasicAuth("bdj4", "secret")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPlayIssuesReqPlay(t *testing.T) {
	e, _, sender := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/remctrl/play")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.codes) != 1 || sender.codes[0] != msg.ReqPlay {
		t.Fatalf("expected a single ReqPlay send, got %v", sender.codes)
	}
}

func TestVolumeEncodesQueryParamAsArgs(t *testing.T) {
	e, _, sender := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/remctrl/volume?level=42")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.codes) != 1 || sender.codes[0] != msg.ReqPlayerVolume {
		t.Fatalf("expected a ReqPlayerVolume send, got %v", sender.codes)
	}
	got := msg.DecodeArgs(sender.args[0])
	if len(got) != 1 || got[0] != "42" {
		t.Fatalf("expected args [\"42\"], got %v", got)
	}
}

func TestGetStatusReflectsLastUpdate(t *testing.T) {
	e, svc, _ := newTestServer(t)
	svc.UpdateStatus(msgparse.PlayerStatus{Playing: true, Volume: 70, SongIdx: 3})

	rec := doRequest(e, http.MethodGet, "/remctrl/getstatus")
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["playing"] != true {
		t.Fatalf("expected playing=true, got %v", body["playing"])
	}
	if int(body["volume"].(float64)) != 70 {
		t.Fatalf("expected volume=70, got %v", body["volume"])
	}
}

func TestPlaylistClearPlaySendsClearNextQueuePlay(t *testing.T) {
	e, _, sender := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/remctrl/playlistclearplay?name=Standards")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	want := []msg.Code{msg.ReqQueueClear, msg.ReqNextSong, msg.ReqPlaylistQueue, msg.ReqPlay}
	if len(sender.codes) != len(want) {
		t.Fatalf("expected %d sends, got %v", len(want), sender.codes)
	}
	for i, code := range want {
		if sender.codes[i] != code {
			t.Fatalf("step %d: expected %s, got %s", i, code, sender.codes[i])
		}
	}
	got := msg.DecodeArgs(sender.args[2])
	if len(got) != 1 || got[0] != "Standards" {
		t.Fatalf("expected playlist name args, got %v", got)
	}
}

func TestQueueAndQueue5EncodeDanceNameAndCount(t *testing.T) {
	e, _, sender := newTestServer(t)

	rec := doRequest(e, http.MethodPost, "/remctrl/queue5?name=Tango")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(sender.codes) != 2 || sender.codes[0] != msg.ReqQueueDance || sender.codes[1] != msg.ReqPlay {
		t.Fatalf("expected ReqQueueDance then ReqPlay, got %v", sender.codes)
	}
	got := msg.DecodeArgs(sender.args[0])
	if len(got) != 2 || got[0] != "Tango" || got[1] != "5" {
		t.Fatalf("expected args [\"Tango\", \"5\"], got %v", got)
	}
}

func TestGetDanceListAndGetPlaylistSelReflectLastBroadcast(t *testing.T) {
	e, svc, _ := newTestServer(t)
	svc.UpdateDanceList([]string{"Waltz", "Tango"})
	svc.UpdatePlaylistNames([]string{"Standards"})

	rec := doRequest(e, http.MethodGet, "/remctrl/getdancelist")
	var dances map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &dances); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := dances["dances"].([]any); len(got) != 2 {
		t.Fatalf("expected 2 dances, got %v", got)
	}

	rec = doRequest(e, http.MethodGet, "/remctrl/getplaylistsel")
	var playlists map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &playlists); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := playlists["playlists"].([]any); len(got) != 1 {
		t.Fatalf("expected 1 playlist, got %v", got)
	}
}

func TestRequestWithoutCredentialsIsRejected(t *testing.T) {
	hash, err := websrv.HashPassword("secret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	e := websrv.New()
	Register(e, NewHandlers(NewService(&fakeSender{})), "bdj4", hash)

	req := httptest.NewRequest(http.MethodPost, "/remctrl/play", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
