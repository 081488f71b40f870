package voicesdk

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type remoteSet struct {
	mu     sync.RWMutex
	tracks map[string]*remoteTrack
}

func newRemoteSet() *remoteSet {
	return &remoteSet{tracks: make(map[string]*remoteTrack)}
}

func (s *remoteSet) Add(rt *remoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.tracks[rt.id]; ok && old.cancel != nil {
		old.cancel()
	}
	s.tracks[rt.id] = rt
}

// Start runs the read loop; onEnded fires once the source stops.
func (s *remoteSet) Start(ctx context.Context, rt *remoteTrack, onEnded func()) {
	logger := log.With().
		Str("module", "voicesdk.remote").
		Str("track", rt.id).
		Logger()

	trackCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	rt.cancel = cancel
	s.mu.Unlock()

	go func() {
		defer cancel()
		rt.loop(trackCtx, &logger)
		s.remove(rt)
		if onEnded != nil {
			onEnded()
		}
	}()
}

func (s *remoteSet) remove(rt *remoteTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.tracks[rt.id]; ok && cur == rt {
		delete(s.tracks, rt.id)
	}
}

func (s *remoteSet) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rt := range s.tracks {
		if rt.cancel != nil {
			rt.cancel()
		}
		delete(s.tracks, id)
	}
}
