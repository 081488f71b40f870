package voicesdk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/app/events"
	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type confState int

const (
	confIdle confState = iota
	confJoining
	confJoined
	confLeft
)

const negotiateTimeout = 10 * time.Second

type conference struct {
	*events.Emitter

	conn   *connection
	room   string
	opts   core.ConferenceOptions
	logger zerolog.Logger

	mu      sync.Mutex
	state   confState
	media   core.MediaConnection
	locals  []*localTrack
	remotes *remoteSet

	// one offer/answer round at a time
	negMu sync.Mutex
}

func newConference(c *connection, room string, opts core.ConferenceOptions) *conference {
	return &conference{
		Emitter: events.NewEmitter(),
		conn:    c,
		room:    room,
		opts:    opts,
		logger:  c.logger.With().Str("room", room).Logger(),
		remotes: newRemoteSet(),
	}
}

func (c *conference) isLeft() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == confLeft
}

func (c *conference) Join() {
	c.mu.Lock()
	if c.state != confIdle {
		c.mu.Unlock()
		return
	}
	c.state = confJoining
	c.mu.Unlock()

	client := c.conn.signaling()
	if client == nil {
		c.fail(ErrNotConnected)
		return
	}
	if err := client.Join(c.room, "", c.opts.P2PEnabled); err != nil {
		c.fail(err)
	}
}

// fail reports err as a join failure while joining and as a conference
// error afterwards.
func (c *conference) fail(err error) {
	c.mu.Lock()
	prev := c.state
	if prev == confJoining {
		c.state = confLeft
	}
	c.mu.Unlock()

	switch prev {
	case confJoining:
		c.logger.Error().Err(err).Msg("join failed")
		c.Emit(core.Event{Name: core.ConferenceFailed, Err: err})
	case confJoined:
		c.logger.Error().Err(err).Msg("conference error")
		c.Emit(core.Event{Name: core.ConferenceError, Err: err})
	}
}

func (c *conference) onSignal(typ string, data []byte) {
	switch typ {
	case "room_state":
		c.onRoomState(data)
	case "error":
		msg, err := signal.DecodeError(data)
		if err != nil {
			c.fail(fmt.Errorf("%w: undecodable error: %w", ErrServer, err))
			return
		}
		c.fail(fmt.Errorf("%w: %s", ErrServer, msg.Error))
	case "answer":
		c.onAnswer(data)
	case "candidate":
		c.onCandidate(data)
	case "member_joined", "member_left", "member_updated":
		if ev, err := signal.DecodeMemberEvent(data); err == nil {
			c.logger.Info().Str("event", typ).Str("user", ev.User.Username).Msg("member")
		}
	case "left":
		c.logger.Info().Msg("left acknowledged")
	default:
		c.logger.Warn().Str("type", typ).Msg("unknown signal")
	}
}

func (c *conference) onRoomState(data []byte) {
	c.mu.Lock()
	joining := c.state == confJoining
	c.mu.Unlock()

	state, err := signal.DecodeRoomState(data)
	if err != nil {
		c.fail(fmt.Errorf("%w: bad room_state: %w", ErrServer, err))
		return
	}
	if !joining {
		c.logger.Debug().Int("count", state.Count).Msg("room state update")
		return
	}

	if err := c.startMedia(); err != nil {
		c.fail(err)
		return
	}

	c.mu.Lock()
	c.state = confJoined
	c.mu.Unlock()
	c.logger.Info().Int("members", state.Count).Msg("conference joined")
	c.Emit(core.Event{Name: core.ConferenceJoined})

	go func() {
		ctx, cancel := context.WithTimeout(c.conn.ctx, negotiateTimeout)
		defer cancel()
		if err := c.negotiate(ctx); err != nil {
			c.fail(err)
		}
	}()
}

func (c *conference) startMedia() error {
	wc, err := rtc.NewWebRTCConnection(c.conn.sdk.api, c.conn.sdk.ice, c.conn.sid)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}
	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		if client := c.conn.signaling(); client != nil {
			_ = client.SendCandidate(ci)
		}
	})
	wc.OnTrack(c.onRemoteTrack)
	wc.OnClosed(func() {
		c.logger.Info().Msg("media closed")
	})
	if err := wc.Start(c.conn.ctx); err != nil {
		wc.Close()
		return fmt.Errorf("start peer connection: %w", err)
	}
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		if err := wc.AddRecvTransceiver(kind); err != nil {
			wc.Close()
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	c.mu.Lock()
	c.media = wc
	c.mu.Unlock()
	return nil
}

func (c *conference) mediaConn() core.MediaConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.media
}

func (c *conference) negotiate(ctx context.Context) error {
	c.negMu.Lock()
	defer c.negMu.Unlock()

	mc := c.mediaConn()
	client := c.conn.signaling()
	if mc == nil || client == nil || mc.IsClosed() {
		return ErrNotJoined
	}
	offer, err := mc.CreateAndSetOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := client.SendOffer(offer.SDP); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}
	c.logger.Debug().Msg("offer sent")
	return nil
}

func (c *conference) onAnswer(data []byte) {
	answer, err := signal.DecodeAnswer(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("bad answer payload")
		return
	}
	mc := c.mediaConn()
	if mc == nil {
		c.logger.Warn().Msg("answer without media connection")
		return
	}
	if err := mc.ApplyAnswer(answer); err != nil {
		c.fail(fmt.Errorf("apply answer: %w", err))
	}
}

func (c *conference) onCandidate(data []byte) {
	cand, err := signal.DecodeCandidate(data)
	if err != nil {
		c.logger.Error().Err(err).Msg("bad candidate payload")
		return
	}
	mc := c.mediaConn()
	if mc == nil {
		c.logger.Warn().Msg("candidate: no media connection")
		return
	}
	if err := mc.AddICECandidate(cand); err != nil {
		c.logger.Error().Err(err).Msg("add ice candidate")
	}
}

func (c *conference) onRemoteTrack(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	rt := newRemoteTrack(track)
	c.remotes.Add(rt)
	c.Emit(core.Event{Name: core.TrackAdded, Track: rt})
	c.remotes.Start(ctx, rt, func() {
		c.Emit(core.Event{Name: core.TrackRemoved, Track: rt})
	})
}

func (c *conference) AddTrack(ctx context.Context, t core.Track) error {
	lt, ok := t.(*localTrack)
	if !ok {
		return ErrForeignTrack
	}
	c.mu.Lock()
	joined := c.state == confJoined
	mc := c.media
	c.mu.Unlock()
	if !joined || mc == nil {
		return ErrNotJoined
	}

	sender, err := mc.AddLocalTrack(lt.src)
	if err != nil {
		return fmt.Errorf("add local track: %w", err)
	}
	c.logger.Debug().Str("track", lt.id).Str("device", lt.deviceID).Msg("publishing capture")
	if err := lt.bind(c, sender); err != nil {
		_ = mc.RemoveSender(sender)
		return err
	}

	c.mu.Lock()
	c.locals = append(c.locals, lt)
	c.mu.Unlock()

	return c.negotiate(ctx)
}

// LocalTracks returns the tracks added and not yet disposed.
func (c *conference) LocalTracks() []core.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Track, 0, len(c.locals))
	for _, lt := range c.locals {
		if lt.State() != TrackStateDisposed {
			out = append(out, lt)
		}
	}
	return out
}

// unpublish is called by a disposed local track.
func (c *conference) unpublish(ctx context.Context, lt *localTrack, sender *webrtc.RTPSender) error {
	c.mu.Lock()
	for i, cur := range c.locals {
		if cur == lt {
			c.locals = append(c.locals[:i], c.locals[i+1:]...)
			break
		}
	}
	mc := c.media
	c.mu.Unlock()

	if mc == nil || mc.IsClosed() || sender == nil {
		return nil
	}
	if err := mc.RemoveSender(sender); err != nil {
		return fmt.Errorf("remove sender: %w", err)
	}
	return c.negotiate(ctx)
}

func (c *conference) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.state == confLeft {
		c.mu.Unlock()
		return nil
	}
	c.state = confLeft
	locals := append([]*localTrack(nil), c.locals...)
	c.locals = nil
	mc := c.media
	c.mu.Unlock()

	var errs []error
	for _, lt := range locals {
		lt.detach()
	}
	if client := c.conn.signaling(); client != nil && !client.IsClosed() {
		if err := client.Leave(); err != nil {
			errs = append(errs, fmt.Errorf("send leave: %w", err))
		}
	}
	if mc != nil {
		mc.Close()
	}
	c.remotes.StopAll()
	c.logger.Info().Msg("left conference")
	return errors.Join(errs...)
}

func (c *conference) onTransportClosed(err error) {
	if err == nil {
		err = ErrTransportClosed
	} else {
		err = fmt.Errorf("%w: %w", ErrTransportClosed, err)
	}
	c.fail(err)
	if mc := c.mediaConn(); mc != nil {
		mc.Close()
	}
}
