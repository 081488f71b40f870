// Package ui keeps the demo page as a tree of id-keyed elements and pushes
// snapshots to every connected browser.
package ui

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateID    = errors.New("element id already in use")
	ErrUnknownElement = errors.New("unknown element")
	ErrNotContainer   = errors.New("element cannot hold children")
	ErrNotSelect      = errors.New("element is not a select")
)

// Fixed element ids of the page.
const (
	Welcome        = "welcome"
	Room           = "room"
	RoomNameInput  = "room_name_input"
	BtnRoomName    = "btn_room_name"
	BtnStart       = "start"
	BtnStop        = "stop"
	MediaContainer = "media_container"
	SelectAudio    = "select_audio"
	SelectVideo    = "select_video"
	LocalVideo     = "local_video"
)

type Element struct {
	ID       string        `json:"id"`
	Tag      string        `json:"tag"`
	Visible  bool          `json:"visible"`
	Children []string      `json:"children,omitempty"`
	Options  []core.Option `json:"options,omitempty"`
	Media    *MediaStats   `json:"media,omitempty"`
}

type Snapshot struct {
	Version  uint64     `json:"version"`
	Elements []*Element `json:"elements"`
}

// Publisher receives a snapshot after each mutation.
type Publisher interface {
	Publish(s Snapshot)
}

type Page struct {
	mu       sync.RWMutex
	elements map[string]*Element
	order    []string
	media    map[string]*mediaElement
	version  uint64

	pub Publisher
}

// NewPage builds the fixed layout: the welcome form visible, the room hidden.
func NewPage(pub Publisher) *Page {
	p := &Page{
		elements: make(map[string]*Element),
		media:    make(map[string]*mediaElement),
		pub:      pub,
	}
	for _, e := range []*Element{
		{ID: Welcome, Tag: "div", Visible: true, Children: []string{RoomNameInput, BtnRoomName}},
		{ID: RoomNameInput, Tag: "input", Visible: true},
		{ID: BtnRoomName, Tag: "button", Visible: true},
		{ID: Room, Tag: "div", Children: []string{BtnStart, BtnStop, SelectAudio, SelectVideo, MediaContainer}},
		{ID: BtnStart, Tag: "button", Visible: true},
		{ID: BtnStop, Tag: "button"},
		{ID: SelectAudio, Tag: "select", Visible: true},
		{ID: SelectVideo, Tag: "select", Visible: true},
		{ID: MediaContainer, Tag: "div", Visible: true},
	} {
		p.elements[e.ID] = e
		p.order = append(p.order, e.ID)
	}
	return p
}

func (p *Page) setVisible(id string, v bool) error {
	p.mu.Lock()
	e, ok := p.elements[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	e.Visible = v
	p.version++
	p.mu.Unlock()
	p.publish()
	return nil
}

func (p *Page) Show(id string) error { return p.setVisible(id, true) }
func (p *Page) Hide(id string) error { return p.setVisible(id, false) }

func (p *Page) AppendOptions(selectID string, opts []core.Option) error {
	p.mu.Lock()
	e, ok := p.elements[selectID]
	switch {
	case !ok:
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownElement, selectID)
	case e.Tag != "select":
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotSelect, selectID)
	}
	e.Options = append(e.Options, opts...)
	p.version++
	p.mu.Unlock()
	p.publish()
	return nil
}

func (p *Page) ClearOptions(selectID string) error {
	p.mu.Lock()
	e, ok := p.elements[selectID]
	switch {
	case !ok:
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownElement, selectID)
	case e.Tag != "select":
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotSelect, selectID)
	}
	e.Options = nil
	p.version++
	p.mu.Unlock()
	p.publish()
	return nil
}

// AppendMedia adds an <audio> or <video> child to containerID.
func (p *Page) AppendMedia(containerID, id string, kind core.TrackType) (core.MediaElement, error) {
	p.mu.Lock()
	parent, ok := p.elements[containerID]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownElement, containerID)
	}
	if parent.Tag != "div" {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotContainer, containerID)
	}
	if _, dup := p.elements[id]; dup {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}

	tag := "video"
	if kind == core.TrackAudio {
		tag = "audio"
	}
	me := newMediaElement(id, kind, p.touch)
	p.elements[id] = &Element{ID: id, Tag: tag, Visible: true}
	p.media[id] = me
	p.order = append(p.order, id)
	parent.Children = append(parent.Children, id)
	p.version++
	p.mu.Unlock()

	log.Debug().Str("module", "ui").Str("id", id).Str("tag", tag).Msg("media element appended")
	p.publish()
	return me, nil
}

// RemoveElement drops id and its references; unknown ids are ignored.
func (p *Page) RemoveElement(id string) {
	p.mu.Lock()
	if _, ok := p.elements[id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.elements, id)
	delete(p.media, id)
	p.order = slices.DeleteFunc(p.order, func(s string) bool { return s == id })
	for _, e := range p.elements {
		e.Children = slices.DeleteFunc(e.Children, func(s string) bool { return s == id })
	}
	p.version++
	p.mu.Unlock()

	log.Debug().Str("module", "ui").Str("id", id).Msg("element removed")
	p.publish()
}

// Has reports whether id is on the page.
func (p *Page) Has(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.elements[id]
	return ok
}

// Element returns a copy of id.
func (p *Page) Element(id string) (Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.elements[id]
	if !ok {
		return Element{}, false
	}
	return p.copyElement(e), true
}

func (p *Page) copyElement(e *Element) Element {
	cp := *e
	cp.Children = slices.Clone(e.Children)
	cp.Options = slices.Clone(e.Options)
	if me, ok := p.media[e.ID]; ok {
		stats := me.Stats()
		cp.Media = &stats
	}
	return cp
}

func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{Version: p.version, Elements: make([]*Element, 0, len(p.order))}
	for _, id := range p.order {
		cp := p.copyElement(p.elements[id])
		s.Elements = append(s.Elements, &cp)
	}
	return s
}

// touch is called by media elements when their binding changes.
func (p *Page) touch() {
	p.mu.Lock()
	p.version++
	p.mu.Unlock()
	p.publish()
}

func (p *Page) publish() {
	if p.pub == nil {
		return
	}
	p.pub.Publish(p.Snapshot())
}
