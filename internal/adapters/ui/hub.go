package ui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("view subscriber send buffer full")

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) trySend(b []byte) error {
	select {
	case s.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.send)
		_ = s.conn.Close()
	})
}

// Hub fans page snapshots out to every connected browser.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber)}
}

// Publish implements Publisher. A subscriber that cannot keep up is dropped.
func (h *Hub) Publish(s Snapshot) {
	b, err := json.Marshal(s)
	if err != nil {
		log.Error().Str("module", "ui").Err(err).Msg("marshal snapshot")
		return
	}

	h.mu.Lock()
	var slow []*subscriber
	for _, sub := range h.subs {
		if err := sub.trySend(b); err != nil {
			slow = append(slow, sub)
		}
	}
	for _, sub := range slow {
		delete(h.subs, sub.id)
	}
	h.mu.Unlock()

	for _, sub := range slow {
		log.Warn().Str("module", "ui").Str("sub", sub.id).Msg("dropping slow view subscriber")
		sub.close()
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Serve upgrades the request and streams snapshots until the socket or ctx
// closes. initial is sent first so a fresh browser renders immediately.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, initial Snapshot) error {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	first, err := json.Marshal(initial)
	if err != nil {
		_ = ws.Close()
		return err
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		conn: ws,
		send: make(chan []byte, sendBuffer),
	}
	sub.send <- first

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	log.Debug().Str("module", "ui").Str("sub", sub.id).Msg("view subscriber connected")

	ctx, cancel := context.WithCancel(ctx)
	go h.writePump(ctx, sub)
	go h.readPump(ctx, cancel, sub)
	return nil
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subs, sub.id)
	h.mu.Unlock()
	sub.close()
}

func (h *Hub) writePump(ctx context.Context, sub *subscriber) {
	defer h.remove(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.send:
			if !ok {
				return
			}
			if err := sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("module", "ui").Str("sub", sub.id).Err(err).Msg("view write failed")
				return
			}
		}
	}
}

// readPump only watches for the browser going away; input is ignored.
func (h *Hub) readPump(ctx context.Context, cancel context.CancelFunc, sub *subscriber) {
	defer func() {
		cancel()
		h.remove(sub)
		log.Debug().Str("module", "ui").Str("sub", sub.id).Msg("view subscriber gone")
	}()
	sub.conn.SetReadLimit(1024)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
