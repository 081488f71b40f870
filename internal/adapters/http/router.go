package http

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/dkeye/Meet/internal/adapters/ui"
	"github.com/dkeye/Meet/internal/app/controller"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenKey = "client_token"
	lastRoomKey    = "last_room"
)

// Controller is the action surface the page buttons map onto.
type Controller interface {
	EnterRoom(ctx context.Context, name string) error
	StartStream(ctx context.Context) error
	StopStream(ctx context.Context) error
	SelectDevice(ctx context.Context, id string, t domain.DeviceType) error
	Leave(ctx context.Context) error
	Status(ctx context.Context) (controller.Status, error)
}

type View interface {
	Snapshot() ui.Snapshot
}

type ViewStream interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, initial ui.Snapshot) error
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

type roomRequest struct {
	Name string `json:"name" binding:"required"`
}

type deviceRequest struct {
	ID string `json:"id"`
}

type handlers struct {
	ctx    context.Context
	ctl    Controller
	view   View
	stream ViewStream
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl Controller, view View, stream ViewStream) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{ctx: ctx, ctl: ctl, view: view, stream: stream}
	api := r.Group("/api")
	api.GET("/state", h.state)
	api.GET("/ws/view", h.viewSocket)

	actions := api.Group("")
	actions.Use(NewActionLimiter(cfg.ActionRate, cfg.ActionInterval).Middleware())
	actions.POST("/room", h.enterRoom)
	actions.POST("/stream/start", h.startStream)
	actions.POST("/stream/stop", h.stopStream)
	actions.POST("/leave", h.leave)
	actions.POST("/devices/:type", h.selectDevice)

	return r
}

func (h *handlers) state(c *gin.Context) {
	st, err := h.ctl.Status(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	lastRoom, _ := sessions.Default(c).Get(lastRoomKey).(string)
	c.JSON(http.StatusOK, gin.H{
		"page":     h.view.Snapshot(),
		"session":  st,
		"lastRoom": lastRoom,
	})
}

func (h *handlers) viewSocket(c *gin.Context) {
	log.Debug().Str("module", "adapters.http").Str("ct", c.GetString(clientTokenKey)).Msg("view socket requested")
	// The socket outlives the request, so it is bound to the app context.
	if err := h.stream.Serve(h.ctx, c.Writer, c.Request, h.view.Snapshot()); err != nil {
		log.Warn().Str("module", "adapters.http").Err(err).Msg("view socket upgrade")
	}
}

func (h *handlers) enterRoom(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ctl.EnterRoom(c.Request.Context(), req.Name); err != nil {
		fail(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(lastRoomKey, req.Name)
	if err := sess.Save(); err != nil {
		log.Warn().Str("module", "adapters.http").Err(err).Msg("save session")
	}
	c.JSON(http.StatusOK, gin.H{"room": req.Name})
}

func (h *handlers) startStream(c *gin.Context) {
	h.run(c, h.ctl.StartStream)
}

func (h *handlers) stopStream(c *gin.Context) {
	h.run(c, h.ctl.StopStream)
}

func (h *handlers) leave(c *gin.Context) {
	h.run(c, h.ctl.Leave)
}

func (h *handlers) selectDevice(c *gin.Context) {
	t := domain.DeviceType(c.Param("type"))
	if t != domain.DeviceAudio && t != domain.DeviceVideo {
		c.JSON(http.StatusBadRequest, gin.H{"error": "device type must be audio or video"})
		return
	}
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.ctl.SelectDevice(c.Request.Context(), req.ID, t); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": t, "id": req.ID})
}

func (h *handlers) run(c *gin.Context, action func(context.Context) error) {
	if err := action(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func fail(c *gin.Context, err error) {
	status := statusOf(err)
	log.Error().Str("module", "adapters.http").Str("path", c.FullPath()).Int("status", status).Err(err).Msg("action failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, controller.ErrNotJoined),
		errors.Is(err, controller.ErrAlreadyJoined),
		errors.Is(err, controller.ErrAlreadyStreaming):
		return http.StatusConflict
	case errors.Is(err, controller.ErrUnknownDeviceType),
		errors.Is(err, domain.ErrRoomIDEmpty):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
