package appinfo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

// Source produces a fresh AppInfo for a bus peer.
type Source interface {
	Identify(ctx context.Context, sender string) (*AppInfo, error)
}

var (
	ErrAlreadyAssociated = errors.New("connection already associated with an application id")
	ErrSandboxed         = errors.New("only unsandboxed applications can register")
)

// RegisterError wraps a failed host registration.
type RegisterError struct {
	Sender string
	AppID  string
	Err    error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("cannot register %s as %q: %v", e.Sender, e.AppID, e.Err)
}

func (e *RegisterError) Unwrap() error { return e.Err }

func (e *RegisterError) DBusError() *dbus.Error {
	switch {
	case errors.Is(e.Err, ErrSandboxed):
		return idbus.NotAllowed("Only unsandboxed applications can register")
	case errors.Is(e.Err, ErrAlreadyAssociated):
		return idbus.Failed("Connection already associated with an application ID")
	}
	var ierr *IdentifyError
	if errors.As(e.Err, &ierr) {
		return ierr.DBusError()
	}
	return idbus.InvalidArgument("Invalid application ID")
}

type entry struct {
	// mu serialises identification of one sender.
	mu      sync.Mutex
	info    atomic.Pointer[AppInfo]
	removed atomic.Bool
}

// Registry caches one AppInfo per unique bus name.
type Registry struct {
	src Source

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(src Source) *Registry {
	return &Registry{
		src:     src,
		entries: make(map[string]*entry),
	}
}

func (r *Registry) getOrInsert(sender string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[sender]
	if !ok {
		e = &entry{}
		r.entries[sender] = e
	}
	return e
}

func (r *Registry) remove(sender string, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[sender] == e {
		delete(r.entries, sender)
	}
	e.removed.Store(true)
}

// EnsureForSender returns the cached AppInfo of sender, identifying it on
// first use. Concurrent calls for the same sender share one result.
func (r *Registry) EnsureForSender(ctx context.Context, sender string) (*AppInfo, error) {
	for {
		e := r.getOrInsert(sender)
		if info := e.info.Load(); info != nil {
			return info, nil
		}

		e.mu.Lock()
		if e.removed.Load() {
			// deleted while we waited
			e.mu.Unlock()
			continue
		}
		if info := e.info.Load(); info != nil {
			e.mu.Unlock()
			return info, nil
		}

		info, err := r.src.Identify(ctx, sender)
		if err != nil {
			r.remove(sender, e)
			e.mu.Unlock()
			logger.Warn("[appinfo] %v", err)
			return nil, err
		}
		e.info.Store(info)
		e.mu.Unlock()
		return info, nil
	}
}

// Lookup returns the AppInfo of sender without identifying it.
func (r *Registry) Lookup(sender string) (*AppInfo, bool) {
	r.mu.Lock()
	e, ok := r.entries[sender]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	info := e.info.Load()
	return info, info != nil
}

// Delete forgets sender. It is safe to call for unknown senders.
func (r *Registry) Delete(sender string) {
	r.mu.Lock()
	e, ok := r.entries[sender]
	delete(r.entries, sender)
	r.mu.Unlock()

	if ok {
		e.removed.Store(true)
		logger.Debug("[appinfo] forgot %s", sender)
	}
}

// RegisterHost assigns appID to an unsandboxed sender that has not issued
// any other portal call yet.
func (r *Registry) RegisterHost(ctx context.Context, sender, appID string) (*AppInfo, error) {
	if !IsValidAppID(appID) {
		return nil, &RegisterError{Sender: sender, AppID: appID, Err: errors.New("invalid application id")}
	}

	r.mu.Lock()
	if _, exists := r.entries[sender]; exists {
		r.mu.Unlock()
		return nil, &RegisterError{Sender: sender, AppID: appID, Err: ErrAlreadyAssociated}
	}
	e := &entry{}
	e.mu.Lock()
	r.entries[sender] = e
	r.mu.Unlock()
	defer e.mu.Unlock()

	info, err := r.src.Identify(ctx, sender)
	if err == nil && !info.IsHost() {
		err = ErrSandboxed
	}
	if err != nil {
		r.remove(sender, e)
		return nil, &RegisterError{Sender: sender, AppID: appID, Err: err}
	}

	info.id = appID
	info.registered = true
	e.info.Store(info)
	logger.Info("[appinfo] %s registered as %s", sender, appID)
	return info, nil
}

// List returns the identified peers sorted by sender.
func (r *Registry) List() []*AppInfo {
	r.mu.Lock()
	out := make([]*AppInfo, 0, len(r.entries))
	for _, e := range r.entries {
		if info := e.info.Load(); info != nil {
			out = append(out, info)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].sender < out[j].sender })
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IsValidAppID checks the application id grammar, which is that of a
// well-known bus name.
func IsValidAppID(id string) bool {
	return !strings.HasPrefix(id, ":") && idbus.IsBusName(id)
}
