package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/rtp"
)

type EventName string

const (
	ConnectionEstablished EventName = "CONNECTION_ESTABLISHED"
	ConnectionFailed      EventName = "CONNECTION_FAILED"

	ConferenceJoined EventName = "CONFERENCE_JOINED"
	ConferenceFailed EventName = "CONFERENCE_FAILED"
	ConferenceError  EventName = "CONFERENCE_ERROR"

	TrackAdded   EventName = "TRACK_ADDED"
	TrackRemoved EventName = "TRACK_REMOVED"
)

// Event is the payload every listener receives. Err is set for the
// failure events, Track for the track events.
type Event struct {
	Name  EventName
	Err   error
	Track Track
}

type Listener func(Event)

// ListenerID identifies one registration; funcs are not comparable in Go.
type ListenerID uint64

// EventSource is implemented by connections and conferences.
type EventSource interface {
	AddEventListener(name EventName, l Listener) ListenerID
	RemoveEventListener(name EventName, id ListenerID)
}

type TrackType string

const (
	TrackAudio TrackType = "audio"
	TrackVideo TrackType = "video"
)

// MediaSink receives RTP from an attached remote track.
type MediaSink interface {
	WritePacket(pkt *rtp.Packet)
}

// MediaElement is a rendered <audio>/<video> slot on the page.
type MediaElement interface {
	MediaSink
	ElementID() string
	Kind() TrackType
	// Bind records which track feeds the element.
	Bind(trackID string, local bool)
}

// Track is an opaque SDK media handle.
type Track interface {
	ID() string
	Type() TrackType
	IsLocal() bool
	Attach(el MediaElement) error
	Dispose(ctx context.Context) error
}

type ConnectionOptions struct {
	Hosts      domain.Hosts
	ServiceURL string
}

type ConferenceOptions struct {
	P2PEnabled bool
}

type LocalTrackOptions struct {
	Devices        []TrackType
	CameraDeviceID string
	MicDeviceID    string
	Resolution     string
}

type Connection interface {
	EventSource
	// Connect starts establishing; the outcome is reported via events.
	Connect()
	Disconnect(ctx context.Context) error
	InitConference(roomID string, opts ConferenceOptions) (Conference, error)
}

type Conference interface {
	EventSource
	// Join starts joining; the outcome is reported via events.
	Join()
	Leave(ctx context.Context) error
	AddTrack(ctx context.Context, t Track) error
	LocalTracks() []Track
}

// SDK is the embedded real-time communication library.
type SDK interface {
	NewConnection(appID, token string, opts ConnectionOptions) (Connection, error)
	CreateLocalTracks(ctx context.Context, opts LocalTrackOptions) ([]Track, error)
}
