// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrRoomIDEmpty = errors.New("room id empty")
	ErrDomainEmpty = errors.New("domain empty")
)

// SessionConfig is what the connection adapter needs to reach a conference.
// Read-only once built.
type SessionConfig struct {
	Domain string
	AppID  string
	Token  string
	RoomID string
}

// NewSessionConfig avoids ad-hoc literals in the controller.
func NewSessionConfig(domain, appID, token string) (SessionConfig, error) {
	if domain == "" {
		return SessionConfig{}, ErrDomainEmpty
	}
	return SessionConfig{Domain: domain, AppID: appID, Token: token}, nil
}

// WithRoom returns a copy bound to roomID.
func (c SessionConfig) WithRoom(roomID string) (SessionConfig, error) {
	if len(roomID) == 0 {
		return c, ErrRoomIDEmpty
	}
	c.RoomID = roomID
	return c, nil
}

// Hosts mirrors the XMPP-style host triple conferencing servers expect.
type Hosts struct {
	Domain string `json:"domain"`
	MUC    string `json:"muc"`
	Focus  string `json:"focus"`
}

func (c SessionConfig) Hosts() Hosts {
	return Hosts{
		Domain: c.Domain,
		MUC:    "conference." + c.Domain,
		Focus:  "focus." + c.Domain,
	}
}

const DefaultServiceURLTemplate = "wss://{domain}/api/ws/signal?room={roomId}"

// ServiceURL expands tmpl (or the default one) with the domain and room.
func (c SessionConfig) ServiceURL(tmpl string) string {
	if tmpl == "" {
		tmpl = DefaultServiceURLTemplate
	}
	r := strings.NewReplacer("{domain}", c.Domain, "{roomId}", url.QueryEscape(c.RoomID))
	return r.Replace(tmpl)
}

func (c SessionConfig) String() string {
	return fmt.Sprintf("%s/%s", c.Domain, c.RoomID)
}
