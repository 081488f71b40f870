package voicesdk

import (
	"context"
	"net/http"
	"sync"

	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/events"
	"github.com/dkeye/Meet/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type connection struct {
	*events.Emitter

	sdk    *SDK
	sid    core.SessionID
	appID  string
	token  string
	opts   core.ConnectionOptions
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	mu          sync.Mutex
	started     bool
	established bool
	client      *signal.Client
	conf        *conference
}

func newConnection(s *SDK, appID, token string, opts core.ConnectionOptions) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	sid := core.SessionID(uuid.NewString())
	return &connection{
		Emitter: events.NewEmitter(),
		sdk:     s,
		sid:     sid,
		appID:   appID,
		token:   token,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.With().Str("module", "voicesdk").Str("sid", string(sid)).Logger(),
	}
}

func (c *connection) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	if c.appID != "" {
		h.Set("X-App-Id", c.appID)
	}
	return h
}

// Connect dials in the background; only the first call does anything.
func (c *connection) Connect() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.dial()
}

func (c *connection) dial() {
	client, err := signal.Dial(c.ctx, c.opts.ServiceURL, c.sid, signal.Options{
		Header:     c.header(),
		PingPeriod: c.sdk.opts.PingPeriod,
		ReadLimit:  c.sdk.opts.ReadLimit,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("dial failed")
		c.Emit(core.Event{Name: core.ConnectionFailed, Err: err})
		return
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	client.Start(c.ctx, c.onSignal, c.onSignalClosed)
	if err := client.WhoAmI(); err != nil {
		c.logger.Error().Err(err).Msg("whoami not sent")
		client.Close()
	}
}

func (c *connection) onSignal(typ string, data []byte) {
	if typ == "whoami" {
		c.markEstablished(data)
		return
	}
	c.mu.Lock()
	conf := c.conf
	c.mu.Unlock()
	if conf == nil {
		c.logger.Debug().Str("type", typ).Msg("signal without conference")
		return
	}
	conf.onSignal(typ, data)
}

func (c *connection) markEstablished(data []byte) {
	c.mu.Lock()
	if c.established {
		c.mu.Unlock()
		return
	}
	c.established = true
	c.mu.Unlock()

	who, err := signal.DecodeWhoAmI(data)
	if err == nil {
		c.logger.Info().Str("username", who.Username).Msg("connection established")
	}
	c.Emit(core.Event{Name: core.ConnectionEstablished})
}

func (c *connection) onSignalClosed(err error) {
	c.mu.Lock()
	wasEstablished := c.established
	c.established = false
	conf := c.conf
	c.mu.Unlock()

	if !wasEstablished {
		if err == nil {
			err = ErrClosedBeforeEstablished
		}
		c.Emit(core.Event{Name: core.ConnectionFailed, Err: err})
		return
	}
	c.logger.Info().Err(err).Msg("signaling closed")
	if conf != nil {
		conf.onTransportClosed(err)
	}
}

func (c *connection) signaling() *signal.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

func (c *connection) InitConference(roomID string, opts core.ConferenceOptions) (core.Conference, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.established {
		return nil, ErrNotConnected
	}
	if c.conf != nil && !c.conf.isLeft() {
		return nil, ErrConferenceActive
	}
	c.conf = newConference(c, roomID, opts)
	return c.conf, nil
}

// Disconnect leaves any conference and closes signaling.
func (c *connection) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	conf := c.conf
	client := c.client
	c.mu.Unlock()

	var err error
	if conf != nil {
		err = conf.Leave(ctx)
	}
	if client != nil {
		client.Close()
	}
	c.cancel()
	c.logger.Info().Msg("disconnected")
	return err
}
