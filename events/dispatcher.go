package events

import (
	"sync"

	"github.com/b0bbywan/go-desktop-portal/logger"
)

type Handler func(Event)

type subscription struct {
	id  uint64
	typ string
	fn  Handler
}

// Dispatcher delivers events to in-process handlers synchronously and to
// channel subscribers without blocking. Handlers run in subscription order
// on the dispatching goroutine and must be idempotent.
type Dispatcher struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    []subscription
	clients map[chan Event]Filter
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		clients: make(map[chan Event]Filter),
	}
}

// Subscribe registers fn for events of typ. The returned func removes it.
func (d *Dispatcher) Subscribe(typ string, fn Handler) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscription{id: id, typ: typ, fn: fn})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s.id == id {
				d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeChan returns a buffered channel receiving the events that pass
// filter. Slow readers lose events.
func (d *Dispatcher) SubscribeChan(filter Filter) chan Event {
	ch := make(chan Event, 32)
	d.mu.Lock()
	d.clients[ch] = filter
	d.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel subscriber and closes its channel.
func (d *Dispatcher) Unsubscribe(ch chan Event) {
	d.mu.Lock()
	_, ok := d.clients[ch]
	delete(d.clients, ch)
	d.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (d *Dispatcher) Dispatch(e Event) {
	d.mu.RLock()
	var handlers []Handler
	for _, s := range d.subs {
		if s.typ == e.Type {
			handlers = append(handlers, s.fn)
		}
	}
	for ch, filter := range d.clients {
		if filter != nil && !filter(e) {
			continue
		}
		select {
		case ch <- e:
		default:
			logger.Warn("[events] subscriber channel full, dropping %s event", e.Type)
		}
	}
	d.mu.RUnlock()

	for _, fn := range handlers {
		fn(e)
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for ch := range d.clients {
		close(ch)
	}
	d.clients = make(map[chan Event]Filter)
	d.subs = nil
}
