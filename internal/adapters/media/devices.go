// Package media exposes pion/mediadevices as core.MediaDevices.
package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownDevice = errors.New("no such capture device")
	ErrNoTrack       = errors.New("capture returned no track of the requested kind")
)

// Devices uses whatever drivers the binary registered.
type Devices struct {
	enumerate func() []mediadevices.MediaDeviceInfo
	capture   func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
	open      func(mediadevices.MediaStreamConstraints) ([]core.LiveTrack, error)
	codecs    *mediadevices.CodecSelector
}

// NewDevices builds the bridge. codecs encodes published captures; it must
// match what the peer connection's media engine negotiates.
func NewDevices(codecs *mediadevices.CodecSelector) *Devices {
	return &Devices{
		enumerate: mediadevices.EnumerateDevices,
		capture:   mediadevices.GetUserMedia,
		open:      openTracks,
		codecs:    codecs,
	}
}

func openTracks(c mediadevices.MediaStreamConstraints) ([]core.LiveTrack, error) {
	stream, err := mediadevices.GetUserMedia(c)
	if err != nil {
		return nil, err
	}
	tracks := stream.GetTracks()
	out := make([]core.LiveTrack, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, t)
	}
	return out, nil
}

func kindOf(t mediadevices.MediaDeviceType) string {
	switch t {
	case mediadevices.VideoInput:
		return domain.KindVideoInput
	case mediadevices.AudioInput:
		return domain.KindAudioInput
	case mediadevices.AudioOutput:
		return domain.KindAudioOutput
	default:
		return ""
	}
}

func (d *Devices) EnumerateDevices(ctx context.Context) ([]core.RawDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos := d.enumerate()
	out := make([]core.RawDevice, 0, len(infos))
	for _, info := range infos {
		out = append(out, core.RawDevice{
			DeviceID: info.DeviceID,
			Label:    info.Label,
			Kind:     kindOf(info.Kind),
		})
	}
	log.Debug().Str("module", "media").Int("devices", len(out)).Msg("enumerated")
	return out, nil
}

func (d *Devices) GetUserMedia(ctx context.Context, c core.CaptureConstraints) (core.CaptureStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var constraints mediadevices.MediaStreamConstraints
	if c.Audio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}
	if c.Video {
		constraints.Video = func(*mediadevices.MediaTrackConstraints) {}
	}
	stream, err := d.capture(constraints)
	if err != nil {
		return nil, err
	}
	return &captureStream{stream: stream}, nil
}

func mediaKind(t core.TrackType) mediadevices.MediaDeviceType {
	if t == core.TrackAudio {
		return mediadevices.AudioInput
	}
	return mediadevices.VideoInput
}

// CaptureTrack opens req.DeviceID for publishing. A non-empty id must name
// an enumerated input of the requested kind.
func (d *Devices) CaptureTrack(ctx context.Context, req core.TrackRequest) (core.LiveTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.DeviceID != "" && !d.known(req.DeviceID, mediaKind(req.Kind)) {
		return nil, fmt.Errorf("%w: %s %q", ErrUnknownDevice, req.Kind, req.DeviceID)
	}

	height := 0
	if req.Resolution != "" {
		h, err := strconv.Atoi(req.Resolution)
		if err != nil {
			log.Warn().Str("module", "media").Str("resolution", req.Resolution).Msg("ignoring bad resolution")
		} else {
			height = h
		}
	}

	apply := func(c *mediadevices.MediaTrackConstraints) {
		if req.DeviceID != "" {
			c.DeviceID = prop.StringExact(req.DeviceID)
		}
		if req.Kind == core.TrackVideo && height > 0 {
			c.Height = prop.Int(height)
		}
	}
	constraints := mediadevices.MediaStreamConstraints{Codec: d.codecs}
	if req.Kind == core.TrackAudio {
		constraints.Audio = apply
	} else {
		constraints.Video = apply
	}

	tracks, err := d.open(constraints)
	if err != nil {
		return nil, fmt.Errorf("capture %s %q: %w", req.Kind, req.DeviceID, err)
	}
	var picked core.LiveTrack
	for _, t := range tracks {
		if picked == nil && t.Kind().String() == string(req.Kind) {
			picked = t
			continue
		}
		_ = t.Close()
	}
	if picked == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoTrack, req.Kind)
	}
	log.Debug().Str("module", "media").Str("kind", string(req.Kind)).Str("device", req.DeviceID).Str("track", picked.ID()).Msg("capture opened")
	return picked, nil
}

func (d *Devices) known(id string, kind mediadevices.MediaDeviceType) bool {
	for _, info := range d.enumerate() {
		if info.DeviceID == id && info.Kind == kind {
			return true
		}
	}
	return false
}

type captureStream struct {
	stream mediadevices.MediaStream
}

func (s *captureStream) Stop() {
	for _, t := range s.stream.GetTracks() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Str("module", "media").Str("track", t.ID()).Msg("stop capture track")
		}
	}
}
