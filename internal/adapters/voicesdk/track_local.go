package voicesdk

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateDisposed
)

// localTrack is a published (or publishable) capture track. It owns src:
// disposing the track releases the device.
type localTrack struct {
	id       string
	kind     core.TrackType
	deviceID string
	src      core.LiveTrack
	state    atomic.Int32 // Zero by default (TrackStateOk)

	mu      sync.Mutex
	owner   *conference
	sender  *webrtc.RTPSender
	element core.MediaElement
}

func newLocalTrack(kind core.TrackType, deviceID string, src core.LiveTrack) *localTrack {
	return &localTrack{
		id:       src.ID(),
		kind:     kind,
		deviceID: deviceID,
		src:      src,
	}
}

func (t *localTrack) ID() string           { return t.id }
func (t *localTrack) Type() core.TrackType { return t.kind }
func (t *localTrack) IsLocal() bool        { return true }
func (t *localTrack) State() TrackState    { return TrackState(t.state.Load()) }

// Attach shows the track in el. Local media is not looped back.
func (t *localTrack) Attach(el core.MediaElement) error {
	if t.State() == TrackStateDisposed {
		return ErrTrackDisposed
	}
	el.Bind(t.id, true)
	t.mu.Lock()
	t.element = el
	t.mu.Unlock()
	return nil
}

func (t *localTrack) bind(owner *conference, sender *webrtc.RTPSender) error {
	if t.State() == TrackStateDisposed {
		return ErrTrackDisposed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owner = owner
	t.sender = sender
	return nil
}

// detach disposes the track without touching the peer connection, for when
// the whole conference goes away.
func (t *localTrack) detach() {
	if TrackState(t.state.Swap(int32(TrackStateDisposed))) == TrackStateDisposed {
		return
	}
	t.mu.Lock()
	t.owner, t.sender, t.element = nil, nil, nil
	t.mu.Unlock()
	t.release()
}

func (t *localTrack) release() {
	if err := t.src.Close(); err != nil {
		log.Warn().Err(err).Str("module", "voicesdk").Str("track", t.id).Msg("close capture")
	}
}

// Dispose unpublishes the track. A second call reports ErrTrackDisposed.
func (t *localTrack) Dispose(ctx context.Context) error {
	if TrackState(t.state.Swap(int32(TrackStateDisposed))) == TrackStateDisposed {
		return ErrTrackDisposed
	}
	t.mu.Lock()
	owner, sender := t.owner, t.sender
	t.owner, t.sender, t.element = nil, nil, nil
	t.mu.Unlock()
	defer t.release()

	if owner == nil {
		return nil
	}
	return owner.unpublish(ctx, t, sender)
}
