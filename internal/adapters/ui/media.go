package ui

import (
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/pion/rtp"
)

// MediaStats is what the page shows for a rendered track.
type MediaStats struct {
	TrackID     string `json:"trackId,omitempty"`
	Local       bool   `json:"local"`
	Packets     uint64 `json:"packets"`
	Bytes       uint64 `json:"bytes"`
	LastSeq     uint16 `json:"lastSeq"`
	LastTS      uint32 `json:"lastTimestamp"`
	PayloadType uint8  `json:"payloadType"`
}

type mediaElement struct {
	id      string
	kind    core.TrackType
	onBound func()

	mu    sync.Mutex
	stats MediaStats
}

func newMediaElement(id string, kind core.TrackType, onBound func()) *mediaElement {
	return &mediaElement{id: id, kind: kind, onBound: onBound}
}

func (m *mediaElement) ElementID() string    { return m.id }
func (m *mediaElement) Kind() core.TrackType { return m.kind }

func (m *mediaElement) Bind(trackID string, local bool) {
	m.mu.Lock()
	m.stats.TrackID = trackID
	m.stats.Local = local
	m.mu.Unlock()
	if m.onBound != nil {
		m.onBound()
	}
}

func (m *mediaElement) WritePacket(pkt *rtp.Packet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Packets++
	m.stats.Bytes += uint64(len(pkt.Payload))
	m.stats.LastSeq = pkt.SequenceNumber
	m.stats.LastTS = pkt.Timestamp
	m.stats.PayloadType = pkt.PayloadType
}

func (m *mediaElement) Stats() MediaStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
