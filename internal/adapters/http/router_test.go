package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/adapters/ui"
	"github.com/dkeye/Meet/internal/app/controller"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	err      error
	calls    []string
	room     string
	deviceID string
	device   domain.DeviceType
}

func (f *fakeController) record(name string) error {
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) EnterRoom(_ context.Context, name string) error {
	f.room = name
	return f.record("enter")
}

func (f *fakeController) StartStream(context.Context) error { return f.record("start") }
func (f *fakeController) StopStream(context.Context) error  { return f.record("stop") }
func (f *fakeController) Leave(context.Context) error       { return f.record("leave") }

func (f *fakeController) SelectDevice(_ context.Context, id string, t domain.DeviceType) error {
	f.deviceID, f.device = id, t
	return f.record("select")
}

func (f *fakeController) Status(context.Context) (controller.Status, error) {
	return controller.Status{Room: f.room, Joined: f.room != ""}, nil
}

type fakeStream struct{ served int }

func (s *fakeStream) Serve(_ context.Context, w http.ResponseWriter, _ *http.Request, _ ui.Snapshot) error {
	s.served++
	w.WriteHeader(http.StatusSwitchingProtocols)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>meet</html>"), 0o644))
	return &config.Config{
		Mode:           "test",
		StaticPath:     dir,
		Secret:         "test-secret",
		ActionRate:     100,
		ActionInterval: time.Minute,
	}
}

func newTestRouter(t *testing.T, ctl Controller) (*gin.Engine, *fakeStream) {
	gin.SetMode(gin.TestMode)
	stream := &fakeStream{}
	return SetupRouter(context.Background(), testConfig(t), ctl, ui.NewPage(nil), stream), stream
}

func do(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIndexAndClientToken(t *testing.T) {
	r, _ := newTestRouter(t, &fakeController{})
	w := do(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "meet")

	var ct *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" {
			ct = c
		}
	}
	require.NotNil(t, ct)
	assert.Len(t, ct.Value, 36)
}

func TestEnterRoom(t *testing.T) {
	ctl := &fakeController{}
	r, _ := newTestRouter(t, ctl)

	w := do(r, http.MethodPost, "/api/room", gin.H{"name": "standup"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "standup", ctl.room)

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "MeetSessions" {
			session = c
		}
	}
	require.NotNil(t, session, "last room is kept in the session cookie")

	w = do(r, http.MethodGet, "/api/state", nil, session)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Page     ui.Snapshot       `json:"page"`
		Session  controller.Status `json:"session"`
		LastRoom string            `json:"lastRoom"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "standup", body.LastRoom)
	assert.True(t, body.Session.Joined)
	assert.NotEmpty(t, body.Page.Elements)
}

func TestEnterRoomRequiresName(t *testing.T) {
	ctl := &fakeController{}
	r, _ := newTestRouter(t, ctl)
	w := do(r, http.MethodPost, "/api/room", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ctl.calls)
}

func TestActionErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not joined", controller.ErrNotJoined, http.StatusConflict},
		{"wrapped not joined", errors.Join(errors.New("x"), controller.ErrNotJoined), http.StatusConflict},
		{"streaming", controller.ErrAlreadyStreaming, http.StatusConflict},
		{"room empty", domain.ErrRoomIDEmpty, http.StatusBadRequest},
		{"stopped", controller.ErrStopped, http.StatusServiceUnavailable},
		{"sdk", errors.New("Error[jitsiCreateConference]"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _ := newTestRouter(t, &fakeController{err: tc.err})
			w := do(r, http.MethodPost, "/api/stream/start", nil)
			assert.Equal(t, tc.want, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestStreamAndLeave(t *testing.T) {
	ctl := &fakeController{}
	r, _ := newTestRouter(t, ctl)
	for _, path := range []string{"/api/stream/start", "/api/stream/stop", "/api/leave"} {
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, path, nil).Code, path)
	}
	assert.Equal(t, []string{"start", "stop", "leave"}, ctl.calls)
}

func TestSelectDevice(t *testing.T) {
	ctl := &fakeController{}
	r, _ := newTestRouter(t, ctl)

	w := do(r, http.MethodPost, "/api/devices/video", gin.H{"id": "v1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", ctl.deviceID)
	assert.Equal(t, domain.DeviceVideo, ctl.device)

	w = do(r, http.MethodPost, "/api/devices/speaker", gin.H{"id": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ctl.calls, 1)
}

func TestViewSocketDelegates(t *testing.T) {
	r, stream := newTestRouter(t, &fakeController{})
	do(r, http.MethodGet, "/api/ws/view", nil)
	assert.Equal(t, 1, stream.served)
}

func TestActionsAreRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.ActionRate = 2
	r := SetupRouter(context.Background(), cfg, &fakeController{}, ui.NewPage(nil), &fakeStream{})

	ct := &http.Cookie{Name: "ct", Value: "browser-1"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/leave", nil, ct).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/leave", nil, ct).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/leave", nil, ct).Code)

	other := &http.Cookie{Name: "ct", Value: "browser-2"}
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/leave", nil, other).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/state", nil, ct).Code, "reads are not limited")
}

func TestActionLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewActionLimiter(1, time.Second)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	now = now.Add(2 * time.Second)
	assert.True(t, rl.Allow("a"))

	assert.True(t, NewActionLimiter(0, time.Second).Allow("a"), "zero limit disables limiting")
}
