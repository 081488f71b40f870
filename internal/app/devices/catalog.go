// Package devices builds the classified device catalog and keeps the
// per-type device preference.
package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrDeviceAccess = errors.New("device access failed")

// Classify buckets raw devices, keeping enumeration order per bucket.
func Classify(raw []core.RawDevice) domain.Catalog {
	c := domain.NewCatalog()
	for _, d := range raw {
		t := domain.TypeOfKind(d.Kind)
		c.Add(domain.Device{
			DeviceID: d.DeviceID,
			Label:    d.Label,
			Kind:     d.Kind,
			Type:     t,
		})
	}
	return c
}

// ConstraintsFor asks for every input kind that is present.
func ConstraintsFor(raw []core.RawDevice) core.CaptureConstraints {
	var c core.CaptureConstraints
	for _, d := range raw {
		switch {
		case strings.HasPrefix(d.Kind, domain.KindAudioInput):
			c.Audio = true
		case strings.HasPrefix(d.Kind, domain.KindVideoInput):
			c.Video = true
		}
	}
	return c
}

// BuildCatalog enumerates twice around a transient capture, since labels are
// only filled in once capture was granted. The capture is always stopped.
func BuildCatalog(ctx context.Context, md core.MediaDevices) (domain.Catalog, error) {
	logger := log.With().Str("module", "devices").Logger()

	raw, err := md.EnumerateDevices(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("enumerate devices")
		return domain.Catalog{}, fmt.Errorf("%w: enumerate: %w", ErrDeviceAccess, err)
	}

	// With no inputs there is nothing to unlock; a receive-only catalog is
	// returned rather than failing an empty capture request.
	constraints := ConstraintsFor(raw)
	if constraints.Empty() {
		logger.Warn().Int("devices", len(raw)).Msg("no input devices, skipping capture")
		return Classify(raw), nil
	}

	stream, err := md.GetUserMedia(ctx, constraints)
	if err != nil {
		logger.Error().Err(err).Msg("capture permission")
		return domain.Catalog{}, fmt.Errorf("%w: capture: %w", ErrDeviceAccess, err)
	}
	defer stream.Stop()

	labeled, err := md.EnumerateDevices(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("enumerate labeled devices")
		return domain.Catalog{}, fmt.Errorf("%w: enumerate: %w", ErrDeviceAccess, err)
	}

	c := Classify(labeled)
	logger.Info().
		Int("video", len(c.Video)).
		Int("audio", len(c.Audio)).
		Int("speaker", len(c.Speaker)).
		Msg("device catalog built")
	return c, nil
}
