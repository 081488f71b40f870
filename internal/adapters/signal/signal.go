// Package signal is the client side of the JSON-over-websocket signaling
// protocol spoken by the conference server.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// Handler receives every inbound message with its decoded type.
type Handler func(typ string, data []byte)

type Options struct {
	Header     http.Header
	PingPeriod time.Duration
	ReadLimit  int64
}

// Client owns one websocket; it must be Close()d.
type Client struct {
	sid  core.SessionID
	conn *websocket.Conn
	send chan core.Frame
	opts Options

	mu        sync.RWMutex
	closed    bool
	closeErr  error
	closeOnce sync.Once
	onClose   func(error)
}

// Dial opens the websocket. Nothing is read or written until Start.
func Dial(ctx context.Context, url string, sid core.SessionID, opts Options) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if opts.ReadLimit > 0 {
		ws.SetReadLimit(opts.ReadLimit)
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("url", url).Msg("signal connected")
	return &Client{
		sid:  sid,
		conn: ws,
		send: make(chan core.Frame, 32),
		opts: opts,
	}, nil
}

// Start runs the pumps. onClose fires once, with the read error that ended
// the session or nil after a local Close.
func (c *Client) Start(ctx context.Context, h Handler, onClose func(error)) {
	c.mu.Lock()
	c.onClose = onClose
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		c.shutdown(ctx.Err())
	}()
	go c.writePump(ctx)
	go func() {
		defer cancel()
		c.readPump(ctx, h)
	}()
}

func (c *Client) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Client) SendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return err
	}
	return c.TrySend(b)
}

func (c *Client) Close() {
	c.shutdown(nil)
}

func (c *Client) shutdown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		c.mu.RLock()
		fn := c.onClose
		c.mu.RUnlock()
		if fn != nil {
			fn(cause)
		}
	})
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
