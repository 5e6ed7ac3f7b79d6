package session

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/events"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
)

type storeItem[T any] struct {
	sender string
	value  T
}

// Store keeps one portal's state per session handle. Entries go away with
// their session.
type Store[T any] struct {
	mu    sync.Mutex
	items map[dbus.ObjectPath]storeItem[T]
	unsub func()
}

func NewStore[T any](ev *events.Dispatcher) *Store[T] {
	st := &Store[T]{items: make(map[dbus.ObjectPath]storeItem[T])}
	st.unsub = ev.Subscribe(events.TypeSessionClosed, func(e events.Event) {
		if data, ok := e.Data.(events.ObjectEvent); ok {
			st.Delete(dbus.ObjectPath(data.Path))
		}
	})
	return st
}

func (st *Store[T]) Put(s *Session, v T) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.items[s.Path()] = storeItem[T]{sender: s.Sender(), value: v}
}

// Get returns the value for handle. A nil app skips the ownership check.
func (st *Store[T]) Get(handle dbus.ObjectPath, app *appinfo.AppInfo) (T, *dbus.Error) {
	st.mu.Lock()
	item, ok := st.items[handle]
	st.mu.Unlock()

	var zero T
	if !ok {
		return zero, idbus.AccessDenied("Invalid session")
	}
	if app != nil && app.Sender() != item.sender {
		return zero, idbus.AccessDenied("Invalid session")
	}
	return item.value, nil
}

func (st *Store[T]) Delete(handle dbus.ObjectPath) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.items, handle)
}

func (st *Store[T]) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.items)
}

// Close detaches the store from session events.
func (st *Store[T]) Close() {
	if st.unsub != nil {
		st.unsub()
	}
}
