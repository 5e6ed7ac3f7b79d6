// Package permission reads and writes user consent kept by the permission
// store, plus short lived per-connection choices.
package permission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/cache"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

type Permission int

const (
	Unset Permission = iota
	No
	Yes
	Ask
)

func (p Permission) String() string {
	switch p {
	case No:
		return "no"
	case Yes:
		return "yes"
	case Ask:
		return "ask"
	}
	return "unset"
}

// Parse maps a stored value to a Permission. Unknown values are Unset.
func Parse(s string) Permission {
	switch strings.TrimSpace(s) {
	case "no":
		return No
	case "yes":
		return Yes
	case "ask":
		return Ask
	}
	return Unset
}

const (
	methodLookup           = idbus.PERMISSION_STORE_IFACE + ".Lookup"
	methodSetPermission    = idbus.PERMISSION_STORE_IFACE + ".SetPermission"
	methodDeletePermission = idbus.PERMISSION_STORE_IFACE + ".DeletePermission"
)

// StoreError wraps a failed permission store call.
type StoreError struct {
	Op    string
	Table string
	ID    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("permission store %s %s/%s: %v", e.Op, e.Table, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

type transientKey struct {
	sender string
	key    string
}

// Store is a synchronous client of the permission store.
type Store struct {
	obj     idbus.Caller
	timeout time.Duration

	transient *cache.Cache[transientKey, any]
}

func New(conn idbus.Conn, timeout time.Duration) *Store {
	return NewWithCaller(conn.Proxy(idbus.PERMISSION_STORE_BUS_NAME, idbus.PERMISSION_STORE_PATH), timeout)
}

func NewWithCaller(obj idbus.Caller, timeout time.Duration) *Store {
	return &Store{
		obj:       obj,
		timeout:   timeout,
		transient: cache.New[transientKey, any](0),
	}
}

// Lookup returns the raw values stored for appID, or nil when the row or
// the app has none.
func (s *Store) Lookup(ctx context.Context, table, id, appID string) ([]string, error) {
	var (
		perms map[string][]string
		data  dbus.Variant
	)
	call := idbus.Call(ctx, s.obj, s.timeout, methodLookup, table, id)
	if call.Err != nil {
		if idbus.IsErrorName(call.Err, idbus.ERROR_NOT_FOUND) {
			return nil, nil
		}
		return nil, &StoreError{Op: "lookup", Table: table, ID: id, Err: call.Err}
	}
	if err := call.Store(&perms, &data); err != nil {
		return nil, &StoreError{Op: "lookup", Table: table, ID: id, Err: err}
	}
	return perms[appID], nil
}

// Get returns the tri-state permission of appID. Host apps without an id
// have no stored permissions.
func (s *Store) Get(ctx context.Context, table, id, appID string) (Permission, error) {
	if appID == "" {
		return Unset, nil
	}
	values, err := s.Lookup(ctx, table, id, appID)
	if err != nil {
		return Unset, err
	}
	if len(values) == 0 {
		return Unset, nil
	}
	p := Parse(values[0])
	logger.Debug("[permission] %s/%s for %s: %s", table, id, appID, p)
	return p, nil
}

// Set stores p for appID. Setting Unset deletes the row entry.
func (s *Store) Set(ctx context.Context, table, id, appID string, p Permission) error {
	if p == Unset {
		return s.Delete(ctx, table, id, appID)
	}
	return s.SetValues(ctx, table, id, appID, []string{p.String()})
}

// SetValues stores raw values for appID, creating the table if needed.
func (s *Store) SetValues(ctx context.Context, table, id, appID string, values []string) error {
	call := idbus.Call(ctx, s.obj, s.timeout, methodSetPermission, table, true, id, appID, values)
	if call.Err != nil {
		return &StoreError{Op: "set", Table: table, ID: id, Err: call.Err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, table, id, appID string) error {
	call := idbus.Call(ctx, s.obj, s.timeout, methodDeletePermission, table, id, appID)
	if call.Err != nil && !idbus.IsErrorName(call.Err, idbus.ERROR_NOT_FOUND) {
		return &StoreError{Op: "delete", Table: table, ID: id, Err: call.Err}
	}
	return nil
}

// SetTransient remembers data for the lifetime of sender's connection.
func (s *Store) SetTransient(sender, key string, data any) {
	s.transient.Set(transientKey{sender, key}, data)
}

func (s *Store) Transient(sender, key string) (any, bool) {
	return s.transient.Get(transientKey{sender, key})
}

func (s *Store) DeleteTransient(sender, key string) {
	s.transient.Delete(transientKey{sender, key})
}

// ForgetSender drops every transient entry of sender and returns how many
// were removed.
func (s *Store) ForgetSender(sender string) int {
	return s.transient.DeleteFunc(func(k transientKey) bool { return k.sender == sender })
}
