// Package voicesdk is the embedded real-time SDK: connections and conferences
// over the Voice signaling protocol, with media handled by pion/webrtc.
package voicesdk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/dkeye/Meet/internal/adapters/rtc"
	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrBadServiceURL           = errors.New("service url must be ws:// or wss://")
	ErrNotConnected            = errors.New("connection not established")
	ErrConferenceActive        = errors.New("conference already active on connection")
	ErrClosedBeforeEstablished = errors.New("signaling closed before establishment")
	ErrNotJoined               = errors.New("conference not joined")
	ErrForeignTrack            = errors.New("track was not created by this sdk")
	ErrTrackDisposed           = errors.New("track already disposed")
	ErrServer                  = errors.New("server error")
	ErrTransportClosed         = errors.New("signaling transport closed")
)

type InitOptions struct {
	DisableAudioLevels        bool
	DisableThirdPartyRequests bool
	// LogLevel caps pion's internal logging.
	LogLevel   string
	ICEServers []string
	PingPeriod time.Duration
	ReadLimit  int64
}

// DefaultInitOptions mirrors what the demo client always passed.
func DefaultInitOptions() InitOptions {
	return InitOptions{
		DisableAudioLevels:        true,
		DisableThirdPartyRequests: true,
		LogLevel:                  "error",
		PingPeriod:                54 * time.Second,
		ReadLimit:                 32768,
	}
}

type SDK struct {
	api      *webrtc.API
	ice      webrtc.Configuration
	opts     InitOptions
	capturer core.TrackCapturer
}

// New builds the SDK. capturer opens the devices that local tracks publish.
func New(opts InitOptions, capturer core.TrackCapturer) (*SDK, error) {
	api, err := rtc.NewAPI(rtc.ParseLogLevel(opts.LogLevel), !opts.DisableAudioLevels)
	if err != nil {
		return nil, fmt.Errorf("init webrtc: %w", err)
	}

	ice := webrtc.Configuration{}
	switch {
	case len(opts.ICEServers) > 0:
		ice.ICEServers = []webrtc.ICEServer{{URLs: opts.ICEServers}}
	case !opts.DisableThirdPartyRequests:
		ice = rtc.DefaultWebRTCConfig()
	}

	log.Info().
		Str("module", "voicesdk").
		Bool("audio_levels", !opts.DisableAudioLevels).
		Int("ice_servers", len(ice.ICEServers)).
		Str("log_level", opts.LogLevel).
		Msg("sdk initialised")
	return &SDK{api: api, ice: ice, opts: opts, capturer: capturer}, nil
}

func (s *SDK) NewConnection(appID, token string, opts core.ConnectionOptions) (core.Connection, error) {
	u, err := url.Parse(opts.ServiceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadServiceURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: %q", ErrBadServiceURL, opts.ServiceURL)
	}
	return newConnection(s, appID, token, opts), nil
}

// CreateLocalTracks captures one track per requested kind from the chosen
// camera and microphone. Empty kinds are skipped. On failure every track
// already opened is released.
func (s *SDK) CreateLocalTracks(ctx context.Context, opts core.LocalTrackOptions) ([]core.Track, error) {
	out := make([]core.Track, 0, len(opts.Devices))
	fail := func(err error) ([]core.Track, error) {
		for _, t := range out {
			t.(*localTrack).detach()
		}
		return nil, err
	}
	for _, kind := range opts.Devices {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		var deviceID string
		switch kind {
		case core.TrackAudio:
			deviceID = opts.MicDeviceID
		case core.TrackVideo:
			deviceID = opts.CameraDeviceID
		default:
			continue
		}
		src, err := s.capturer.CaptureTrack(ctx, core.TrackRequest{
			Kind:       kind,
			DeviceID:   deviceID,
			Resolution: opts.Resolution,
		})
		if err != nil {
			return fail(fmt.Errorf("create %s track: %w", kind, err))
		}
		t := newLocalTrack(kind, deviceID, src)
		log.Info().
			Str("module", "voicesdk").
			Str("track", t.id).
			Str("kind", string(kind)).
			Str("device", deviceID).
			Msg("local track created")
		out = append(out, t)
	}
	return out, nil
}
