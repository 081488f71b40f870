package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, ctx context.Context, h *Hub, p *Page) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Serve(ctx, w, r, p.Snapshot()); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readSnapshot(t *testing.T, ws *websocket.Conn) Snapshot {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var s Snapshot
	require.NoError(t, json.Unmarshal(data, &s))
	return s
}

func TestHubPushesSnapshots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	p := NewPage(h)
	ws := dialHub(t, ctx, h, p)

	first := readSnapshot(t, ws)
	assert.Len(t, first.Elements, 9)

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, p.Hide(Welcome))

	next := readSnapshot(t, ws)
	assert.Greater(t, next.Version, first.Version)
	for _, e := range next.Elements {
		if e.ID == Welcome {
			assert.False(t, e.Visible)
		}
	}
}

func TestHubForgetsClosedSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	p := NewPage(h)
	ws := dialHub(t, ctx, h, p)
	readSnapshot(t, ws)
	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return h.Len() == 0 }, 3*time.Second, 10*time.Millisecond)

	assert.NotPanics(t, func() { _ = p.Show(Room) })
}

func TestHubServeRejectsPlainHTTP(t *testing.T) {
	h := NewHub()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Error(t, h.Serve(context.Background(), rec, req, NewPage(nil).Snapshot()))
	assert.Equal(t, 0, h.Len())
}
