package events

import (
	"sync"

	"github.com/dkeye/Meet/internal/core"
)

// Emitter is a threadsafe core.EventSource. Listeners run outside the lock,
// so they may add or remove listeners themselves.
type Emitter struct {
	mu        sync.RWMutex
	nextID    core.ListenerID
	listeners map[core.EventName]map[core.ListenerID]core.Listener
}

func NewEmitter() *Emitter {
	return &Emitter{
		listeners: make(map[core.EventName]map[core.ListenerID]core.Listener),
	}
}

func (e *Emitter) AddEventListener(name core.EventName, l core.Listener) core.ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	byID, ok := e.listeners[name]
	if !ok {
		byID = make(map[core.ListenerID]core.Listener)
		e.listeners[name] = byID
	}
	byID[id] = l
	return id
}

func (e *Emitter) RemoveEventListener(name core.EventName, id core.ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if byID, ok := e.listeners[name]; ok {
		delete(byID, id)
		if len(byID) == 0 {
			delete(e.listeners, name)
		}
	}
}

// Count reports how many listeners are registered for name.
func (e *Emitter) Count(name core.EventName) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

// Emit delivers ev to a snapshot of the current listeners.
func (e *Emitter) Emit(ev core.Event) int {
	e.mu.RLock()
	snapshot := make([]core.Listener, 0, len(e.listeners[ev.Name]))
	for _, l := range e.listeners[ev.Name] {
		snapshot = append(snapshot, l)
	}
	e.mu.RUnlock()

	for _, l := range snapshot {
		l(ev)
	}
	return len(snapshot)
}
