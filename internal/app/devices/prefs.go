package devices

import (
	"fmt"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
)

// StorageKey is the durable key holding the preferred id for t.
func StorageKey(t domain.DeviceType) string {
	return fmt.Sprintf("saveDeviceId_%s", t)
}

type Preferences struct {
	store core.KVStore
}

func NewPreferences(store core.KVStore) *Preferences {
	return &Preferences{store: store}
}

// FindDefault picks, in order: the saved device, the platform default,
// the first device. It reports false only for an empty list.
func (p *Preferences) FindDefault(list []domain.Device, t domain.DeviceType) (domain.Device, bool) {
	if saved, ok := p.store.Get(StorageKey(t)); ok && saved != "" {
		for _, d := range list {
			if d.DeviceID == saved {
				return d, true
			}
		}
	}
	for _, d := range list {
		if d.DeviceID == domain.DefaultDeviceID {
			return d, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return domain.Device{}, false
}

// SaveID stores id for t; an empty id clears the preference.
func (p *Preferences) SaveID(id string, t domain.DeviceType) error {
	key := StorageKey(t)
	if id == "" {
		if err := p.store.Remove(key); err != nil {
			return fmt.Errorf("remove %s: %w", key, err)
		}
		log.Debug().Str("module", "devices").Str("type", string(t)).Msg("device preference cleared")
		return nil
	}
	if err := p.store.Set(key, id); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	log.Debug().Str("module", "devices").Str("type", string(t)).Str("device", id).Msg("device preference saved")
	return nil
}
