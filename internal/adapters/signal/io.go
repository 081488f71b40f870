package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Client) writePump(ctx context.Context) {
	var ping <-chan time.Time
	if c.opts.PingPeriod > 0 {
		t := time.NewTicker(c.opts.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump ctx done")
			return
		case <-ping:
			if err := c.Ping(); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("ping not queued")
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("sid", string(c.sid)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.shutdown(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.shutdown(err)
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump ctx done")
			c.shutdown(ctx.Err())
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if c.IsClosed() {
					c.shutdown(nil)
				} else {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(c.sid)).Msg("readPump read error")
					c.shutdown(err)
				}
				return
			}
			c.dispatch(h, data)
		}
	}
}

func (c *Client) dispatch(h Handler, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}
	if env.Type == "pong" {
		return
	}
	if h != nil {
		h(env.Type, data)
	}
}
