package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer answers whoami and join like the conference server does and
// records every message type it saw.
func echoServer(t *testing.T, seen chan<- string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var env struct {
				Type string `json:"type"`
				Room string `json:"room"`
			}
			_ = json.Unmarshal(data, &env)
			seen <- env.Type
			switch env.Type {
			case "whoami":
				_ = ws.WriteJSON(map[string]any{"type": "whoami", "username": "guest"})
			case "join":
				_ = ws.WriteJSON(map[string]any{
					"type": "room_state", "room": env.Room,
					"members": []map[string]string{{"id": "u1", "username": "guest"}}, "count": 1,
				})
			case "ping":
				_ = ws.WriteJSON(map[string]any{"type": "pong"})
			case "bye":
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClientRoundTrip(t *testing.T) {
	seen := make(chan string, 16)
	srv := echoServer(t, seen)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "sid-1", Options{ReadLimit: 1 << 15})
	require.NoError(t, err)
	defer c.Close()

	got := make(chan string, 16)
	var state RoomState
	c.Start(ctx, func(typ string, data []byte) {
		if typ == "room_state" {
			state, _ = DecodeRoomState(data)
		}
		got <- typ
	}, nil)

	require.NoError(t, c.WhoAmI())
	assert.Equal(t, "whoami", <-got)
	require.NoError(t, c.Join("standup", "", true))
	assert.Equal(t, "room_state", <-got)
	assert.Equal(t, "standup", state.Room)
	assert.Equal(t, 1, state.Count)

	require.NoError(t, c.Ping())
	assert.Equal(t, "whoami", <-seen)
	assert.Equal(t, "join", <-seen)
	assert.Equal(t, "ping", <-seen)
	select {
	case typ := <-got:
		t.Fatalf("pong must not reach the handler, got %q", typ)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientRemoteClose(t *testing.T) {
	seen := make(chan string, 16)
	srv := echoServer(t, seen)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, wsURL(srv), "sid-2", Options{})
	require.NoError(t, err)

	closed := make(chan error, 1)
	c.Start(ctx, nil, func(err error) { closed <- err })
	require.NoError(t, c.SendJSON(map[string]string{"type": "bye"}))

	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("onClose not called")
	}
	assert.True(t, c.IsClosed())
	assert.ErrorIs(t, c.TrySend([]byte("{}")), ErrClosed)
}

func TestClientLocalCloseReportsNil(t *testing.T) {
	seen := make(chan string, 16)
	srv := echoServer(t, seen)
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv), "sid-3", Options{})
	require.NoError(t, err)

	closed := make(chan error, 1)
	c.Start(context.Background(), nil, func(err error) { closed <- err })
	c.Close()
	c.Close()
	assert.NoError(t, <-closed)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/nope", "sid", Options{})
	assert.Error(t, err)
}

func TestDecodeCandidate(t *testing.T) {
	ci, err := DecodeCandidate([]byte(`{"type":"candidate","candidate":"candidate:1 1 udp 1 1.2.3.4 5 typ host","sdpMid":"0","sdpMLineIndex":1}`))
	require.NoError(t, err)
	require.NotNil(t, ci.SDPMid)
	assert.Equal(t, "0", *ci.SDPMid)
	assert.EqualValues(t, 1, *ci.SDPMLineIndex)

	ans, err := DecodeAnswer([]byte(`{"type":"answer","sdp":"v=0"}`))
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeAnswer, ans.Type)
	assert.Equal(t, "v=0", ans.SDP)
}
