package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/AvatarCoach/internal/app/orch"
	"github.com/dkeye/AvatarCoach/internal/app/sfu"
	"github.com/dkeye/AvatarCoach/internal/config"
	"github.com/dkeye/AvatarCoach/internal/core"
	"github.com/dkeye/AvatarCoach/internal/core/coretest"
	"github.com/dkeye/AvatarCoach/internal/domain"
	"github.com/dkeye/AvatarCoach/internal/locale"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	orch   *orch.Orchestrator
	client *coretest.Client
	url    string
}

func newRig(t *testing.T, sid string) *rig {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := locale.Load()
	require.NoError(t, err)
	client := coretest.NewClient("")
	o := orch.New(orch.Deps{
		Tokens:  &coretest.Tokens{Token: "tok"},
		Factory: coretest.Factory(client),
		Catalog: cat,
		Avatar:  config.AvatarConfig{Name: "Pedro_Chair_Sitting_public", Quality: "high"},
	}, sfu.NewRelayManager(), func(core.SessionID) (core.MediaConnection, error) {
		return &coretest.Media{}, nil
	})

	ctl := NewSignalWSController(o, 1<<15, time.Minute)
	r := gin.New()
	r.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", sid)
		if lang := c.Query("lang"); lang != "" {
			s := sessions.Default(c)
			s.Set(LanguageKey, lang)
		}
		ctl.HandleSignal(context.Background(), c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &rig{orch: o, client: client, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
}

func (r *rig) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(r.url+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

type inbound struct {
	Type    string          `json:"type"`
	View    json.RawMessage `json:"view"`
	Stage   string          `json:"stage"`
	Message string          `json:"message"`
}

func read(t *testing.T, ws *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m inbound
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

// readUntil skips messages until match returns true.
func readUntil(t *testing.T, ws *websocket.Conn, match func(inbound) bool) inbound {
	t.Helper()
	for i := 0; i < 50; i++ {
		if m := read(t, ws); match(m) {
			return m
		}
	}
	t.Fatal("expected message never arrived")
	return inbound{}
}

func phaseOf(t *testing.T, m inbound) domain.Phase {
	t.Helper()
	var v struct {
		Phase domain.Phase `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(m.View, &v))
	return v.Phase
}

func live(t *testing.T, m inbound) bool {
	t.Helper()
	if m.Type != "view" {
		return false
	}
	var v struct {
		Phase domain.Phase `json:"phase"`
		Muted bool         `json:"muted"`
	}
	require.NoError(t, json.Unmarshal(m.View, &v))
	return v.Phase == domain.PhaseConnected && !v.Muted
}

func TestHandleSignal_SendsInitialView(t *testing.T) {
	r := newRig(t, "v1")
	ws := r.dial(t, "?lang=de")

	m := read(t, ws)
	assert.Equal(t, "view", m.Type)
	var v struct {
		Language  string `json:"language"`
		ShowStart bool   `json:"show_start"`
	}
	require.NoError(t, json.Unmarshal(m.View, &v))
	assert.Equal(t, "de", v.Language)
	assert.True(t, v.ShowStart)
}

func TestHandleSignal_StartStop(t *testing.T) {
	r := newRig(t, "v1")
	ws := r.dial(t, "")
	read(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "start"}))
	readUntil(t, ws, func(m inbound) bool { return live(t, m) })
	assert.Eventually(t, func() bool { return r.client.Count("Speak") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"StartAvatar", "StartVoiceChat", "UnmuteInputAudio", "Speak"}, r.client.Calls())

	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte("pcm")))
	assert.Eventually(t, func() bool { return len(r.client.Audio()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "stop"}))
	readUntil(t, ws, func(m inbound) bool { return m.Type == "view" && phaseOf(t, m) == domain.PhaseInactive })
	assert.Equal(t, 1, r.client.Count("StopAvatar"))
	assert.Equal(t, []core.Frame{core.Frame("pcm")}, r.client.Audio())
}

func TestHandleSignal_PingAndErrors(t *testing.T) {
	r := newRig(t, "v1")
	ws := r.dial(t, "")
	read(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	readUntil(t, ws, func(m inbound) bool { return m.Type == "pong" })

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "language", "language": "xx"}))
	m := readUntil(t, ws, func(m inbound) bool { return m.Type == "error" })
	assert.Equal(t, "language", m.Stage)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "mute"}))
	m = readUntil(t, ws, func(m inbound) bool { return m.Type == "error" })
	assert.Equal(t, "mute", m.Stage)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "answer", "sdp": "v=0"}))
	m = readUntil(t, ws, func(m inbound) bool { return m.Type == "error" })
	assert.Equal(t, "answer", m.Stage)
}

func TestHandleSignal_StartFailureReported(t *testing.T) {
	r := newRig(t, "v1")
	r.orch.Deps.Tokens = &coretest.Tokens{}
	ws := r.dial(t, "")
	read(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "start"}))
	m := readUntil(t, ws, func(m inbound) bool { return m.Type == "error" })
	assert.Equal(t, "start", m.Stage)
	assert.NotEmpty(t, m.Message)
}

func TestHandleSignal_DisconnectTearsDown(t *testing.T) {
	r := newRig(t, "v1")
	ws := r.dial(t, "")
	read(t, ws)

	require.NoError(t, ws.WriteJSON(map[string]string{"type": "start"}))
	readUntil(t, ws, func(m inbound) bool { return live(t, m) })
	assert.Eventually(t, func() bool { return r.client.Count("Speak") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = ws.Close()

	assert.Eventually(t, func() bool {
		_, ok := r.orch.Registry.Controller("v1")
		return !ok && r.client.Count("StopAvatar") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWsSignalConn_Backpressure(t *testing.T) {
	c := &WsSignalConn{send: make(chan core.Frame, 1)}
	require.NoError(t, c.TrySend(core.Frame("a")))
	assert.ErrorIs(t, c.TrySend(core.Frame("b")), core.ErrBackpressure)
}

func TestHandleSignal_RejectsPlainHTTP(t *testing.T) {
	r := newRig(t, "v1")
	resp, err := http.Get("http" + strings.TrimPrefix(r.url, "ws"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, r.orch.Registry.Len())
}
