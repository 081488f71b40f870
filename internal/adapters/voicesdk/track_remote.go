package voicesdk

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// remoteTrack reads a received track and fans packets out to every
// attached element.
type remoteTrack struct {
	src  *webrtc.TrackRemote
	id   string
	kind core.TrackType

	mu    sync.RWMutex
	sinks map[string]core.MediaElement

	cancel context.CancelFunc
}

func newRemoteTrack(src *webrtc.TrackRemote) *remoteTrack {
	kind := core.TrackAudio
	if src.Kind() == webrtc.RTPCodecTypeVideo {
		kind = core.TrackVideo
	}
	return &remoteTrack{
		src:   src,
		id:    fmt.Sprintf("%s-%d", src.ID(), src.SSRC()),
		kind:  kind,
		sinks: make(map[string]core.MediaElement),
	}
}

func (r *remoteTrack) ID() string           { return r.id }
func (r *remoteTrack) Type() core.TrackType { return r.kind }
func (r *remoteTrack) IsLocal() bool        { return false }

func (r *remoteTrack) Attach(el core.MediaElement) error {
	el.Bind(r.id, false)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[el.ElementID()] = el
	return nil
}

// Dispose detaches every element; the receiver keeps draining.
func (r *remoteTrack) Dispose(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.sinks)
	return nil
}

// loop reads RTP packets from the source track and forwards them to all sinks.
func (r *remoteTrack) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("remote track ctx done")
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("remote track ended")
			return
		}
		r.forward(pkt)
	}
}

func (r *remoteTrack) forward(pkt *rtp.Packet) {
	r.mu.RLock()
	snapshot := maps.Clone(r.sinks)
	r.mu.RUnlock()

	for _, sink := range snapshot {
		sink.WritePacket(pkt)
	}
}
