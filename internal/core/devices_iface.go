package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// RawDevice is one entry of a device enumeration.
type RawDevice struct {
	DeviceID string
	Label    string
	Kind     string
}

type CaptureConstraints struct {
	Audio bool
	Video bool
}

func (c CaptureConstraints) Empty() bool { return !c.Audio && !c.Video }

// CaptureStream is a granted capture; Stop releases the hardware.
type CaptureStream interface {
	Stop()
}

type MediaDevices interface {
	EnumerateDevices(ctx context.Context) ([]RawDevice, error)
	GetUserMedia(ctx context.Context, c CaptureConstraints) (CaptureStream, error)
}

// TrackRequest asks for one live capture. An empty DeviceID means the
// platform default; Resolution is the ideal video height.
type TrackRequest struct {
	Kind       TrackType
	DeviceID   string
	Resolution string
}

// LiveTrack is a running capture that a peer connection can publish.
// Close releases the device.
type LiveTrack interface {
	webrtc.TrackLocal
	Close() error
}

type TrackCapturer interface {
	CaptureTrack(ctx context.Context, req TrackRequest) (LiveTrack, error)
}

// KVStore is durable string storage.
type KVStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string) error
}
