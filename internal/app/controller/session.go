package controller

import (
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
)

// Session is everything one page visit accumulates. It is owned by the
// controller loop and never shared.
type Session struct {
	Config   domain.SessionConfig
	Selected domain.SelectedDevices
	Catalog  *domain.Catalog

	conn      core.Connection
	conf      core.Conference
	streaming bool
	remote    map[string]struct{}
	listeners []registration
}

type registration struct {
	name core.EventName
	id   core.ListenerID
}

// NewSession starts from cfg and an already known device choice.
func NewSession(cfg domain.SessionConfig, selected domain.SelectedDevices) *Session {
	return &Session{
		Config:   cfg,
		Selected: selected,
		remote:   make(map[string]struct{}),
	}
}

func (s *Session) Joined() bool { return s.conf != nil }

// Status is a read-only view of the session for the HTTP layer.
type Status struct {
	Room      string                 `json:"room,omitempty"`
	Joined    bool                   `json:"joined"`
	Streaming bool                   `json:"streaming"`
	Selected  domain.SelectedDevices `json:"selected"`
	Catalog   *domain.Catalog        `json:"catalog,omitempty"`
	Remote    int                    `json:"remoteTracks"`
}

func (s *Session) status() Status {
	st := Status{
		Room:      s.Config.RoomID,
		Joined:    s.Joined(),
		Streaming: s.streaming,
		Selected:  s.Selected,
		Remote:    len(s.remote),
	}
	if s.Catalog != nil {
		cp := *s.Catalog
		st.Catalog = &cp
	}
	return st
}

func bucket(c *domain.Catalog, t domain.DeviceType) []domain.Device {
	switch t {
	case domain.DeviceAudio:
		return c.Audio
	case domain.DeviceVideo:
		return c.Video
	default:
		return c.Speaker
	}
}
