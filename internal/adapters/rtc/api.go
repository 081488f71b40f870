package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// ParseLogLevel maps config strings onto pion levels; unknown means error.
func ParseLogLevel(s string) logging.LogLevel {
	switch strings.ToLower(s) {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "info":
		return logging.LogLevelInfo
	case "warn", "warning":
		return logging.LogLevelWarn
	default:
		return logging.LogLevelError
	}
}

const audioLevelURI = "urn:ietf:params:rtp-hdrext:ssrc-audio-level"

// NewAPI builds a webrtc.API with default codecs and interceptors and pion's
// own logging capped at level.
func NewAPI(level logging.LogLevel, audioLevels bool) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	if audioLevels {
		ext := webrtc.RTPHeaderExtensionCapability{URI: audioLevelURI}
		if err := m.RegisterHeaderExtension(ext, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("register audio level extension: %w", err)
		}
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = level

	se := webrtc.SettingEngine{LoggerFactory: lf}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}
