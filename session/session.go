// Package session implements the long lived Session objects shared by a
// caller and a backend across many portal calls.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/events"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/request"
)

const (
	HandleTokenKey = "session_handle_token"

	signalClosed = idbus.SESSION_IFACE + ".Closed"
	implClose    = idbus.IMPL_SESSION_IFACE + ".Close"
)

type CloseReason int

const (
	// ClosedByCaller: the owner called Close.
	ClosedByCaller CloseReason = iota
	// ClosedByBackend: the impl session emitted Closed.
	ClosedByBackend
	ClosedByDisconnect
	// ClosedByPortal: portal code ended the session.
	ClosedByPortal
	ClosedByShutdown
	// ClosedByFailure: setup failed before the caller got the handle.
	ClosedByFailure
)

func (r CloseReason) String() string {
	switch r {
	case ClosedByCaller:
		return "closed"
	case ClosedByBackend:
		return "backend"
	case ClosedByDisconnect:
		return "disconnected"
	case ClosedByPortal:
		return "portal"
	case ClosedByFailure:
		return "failed"
	}
	return "shutdown"
}

// Payload carries per-portal session state.
type Payload interface {
	OnClose()
}

var introspectNode = introspect.Node{
	Interfaces: []introspect.Interface{
		introspect.IntrospectData,
		{
			Name:    idbus.SESSION_IFACE,
			Methods: []introspect.Method{{Name: "Close"}},
			Signals: []introspect.Signal{{
				Name: "Closed",
				Args: []introspect.Arg{{Name: "details", Type: "a{sv}"}},
			}},
			Properties: []introspect.Property{{Name: "version", Type: "u", Access: "read"}},
		},
	},
}

type Session struct {
	m       *Manager
	path    dbus.ObjectPath
	app     *appinfo.AppInfo
	portal  string
	created time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	impl     idbus.Caller
	implDest string
	payload  Payload
}

func (s *Session) Path() dbus.ObjectPath    { return s.path }
func (s *Session) Sender() string           { return s.app.Sender() }
func (s *Session) App() *appinfo.AppInfo    { return s.app }
func (s *Session) Portal() string           { return s.portal }
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// SetImpl binds the backend session at the same path on dest.
func (s *Session) SetImpl(dest string) idbus.Caller {
	impl := s.m.conn.Proxy(dest, s.path)
	s.mu.Lock()
	s.impl, s.implDest = impl, dest
	s.mu.Unlock()
	return impl
}

func (s *Session) Impl() idbus.Caller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impl
}

// Backend returns the bus name of the backend the session is bound to.
func (s *Session) Backend() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.implDest
}

func (s *Session) SetPayload(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
}

func (s *Session) Payload() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// Close ends the session. Only the first call has an effect.
func (s *Session) Close(ctx context.Context, reason CloseReason) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	impl, payload := s.impl, s.payload
	s.mu.Unlock()

	s.cancel()
	s.m.remove(s)

	switch reason {
	case ClosedByBackend, ClosedByPortal:
		if err := s.m.conn.EmitTo(s.Sender(), s.path, signalClosed, map[string]dbus.Variant{}); err != nil {
			logger.Warn("[session] cannot emit Closed on %s: %v", s.path, err)
		}
	}

	if impl != nil && reason != ClosedByBackend {
		closeImpl := func(ctx context.Context) {
			if call := idbus.Call(ctx, impl, s.m.timeout, implClose); call.Err != nil {
				logger.Debug("[session] backend close of %s failed: %s", s.path, idbus.ErrorName(call.Err))
			}
		}
		if reason == ClosedByCaller || reason == ClosedByPortal {
			closeImpl(ctx)
		} else {
			go closeImpl(context.Background())
		}
	}

	if payload != nil {
		payload.OnClose()
	}
	logger.Debug("[session] %s closed: %s", s.path, reason)
	s.m.dispatch(events.TypeSessionClosed, s, reason.String())
}

func (s *Session) handleClose(msg dbus.Message) *dbus.Error {
	if idbus.Sender(msg) != s.Sender() {
		return idbus.AccessDenied("Portal operation not allowed")
	}
	s.Close(s.m.ctx, ClosedByCaller)
	return nil
}

func (s *Session) version() (dbus.Variant, *dbus.Error) {
	return dbus.MakeVariant(uint32(1)), nil
}

// Info is the serialisable view of a Session.
type Info struct {
	Path    string    `json:"path"`
	Sender  string    `json:"sender"`
	AppID   string    `json:"app_id,omitempty"`
	Portal  string    `json:"portal"`
	Backend string    `json:"backend,omitempty"`
	Created time.Time `json:"created"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		Path:    string(s.path),
		Sender:  s.Sender(),
		AppID:   s.app.ID(),
		Portal:  s.portal,
		Backend: s.implDest,
		Created: s.created,
	}
}

type Manager struct {
	ctx     context.Context
	conn    idbus.Conn
	claims  request.Claimer
	events  *events.Dispatcher
	timeout time.Duration

	mu       sync.Mutex
	sessions map[dbus.ObjectPath]*Session
}

func NewManager(ctx context.Context, conn idbus.Conn, claims request.Claimer, ev *events.Dispatcher, timeout time.Duration) *Manager {
	return &Manager{
		ctx:      ctx,
		conn:     conn,
		claims:   claims,
		events:   ev,
		timeout:  timeout,
		sessions: make(map[dbus.ObjectPath]*Session),
	}
}

// Create exports a new Session for app on behalf of the portal
// interface portal. The token comes from session_handle_token.
func (m *Manager) Create(app *appinfo.AppInfo, opts map[string]dbus.Variant, portal string) (*Session, error) {
	token, err := request.Token(opts, HandleTokenKey)
	if err != nil {
		return nil, err
	}

	path := request.AllocatePath(m.claims, idbus.SESSION_PATH, app.Sender(), token)
	s := &Session{
		m:       m,
		path:    path,
		app:     app,
		portal:  portal,
		created: time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(m.ctx)

	if err := m.conn.ExportMethodTable(map[string]interface{}{"Close": s.handleClose}, path, idbus.SESSION_IFACE); err != nil {
		s.cancel()
		m.claims.Unclaim(string(path))
		return nil, idbus.Failed("Could not export session")
	}
	props := map[string]interface{}{
		"Get": func(iface, prop string) (dbus.Variant, *dbus.Error) {
			if iface != idbus.SESSION_IFACE || prop != "version" {
				return dbus.Variant{}, dbus.NewError(idbus.ERROR_UNKNOWN_PROPERTY, []interface{}{prop})
			}
			return s.version()
		},
		"GetAll": func(iface string) (map[string]dbus.Variant, *dbus.Error) {
			if iface != idbus.SESSION_IFACE {
				return map[string]dbus.Variant{}, nil
			}
			v, _ := s.version()
			return map[string]dbus.Variant{"version": v}, nil
		},
	}
	if err := m.conn.ExportMethodTable(props, path, idbus.DBUS_PROP_IFACE); err != nil {
		logger.Warn("[session] cannot export properties for %s: %v", path, err)
	}
	node := introspectNode
	node.Name = string(path)
	if err := m.conn.Export(introspect.NewIntrospectable(&node), path, idbus.INTROSPECTABLE); err != nil {
		logger.Warn("[session] cannot export introspection data for %s: %v", path, err)
	}

	m.mu.Lock()
	if m.claims.Departed(app.Sender()) {
		m.mu.Unlock()
		s.cancel()
		m.unexport(path)
		m.claims.Unclaim(string(path))
		return nil, &request.DepartedError{Sender: app.Sender()}
	}
	m.sessions[path] = s
	m.mu.Unlock()

	logger.Debug("[session] created %s for %s", path, app)
	m.dispatch(events.TypeSessionCreated, s, "")
	return s, nil
}

func (m *Manager) unexport(path dbus.ObjectPath) {
	for _, iface := range []string{idbus.SESSION_IFACE, idbus.DBUS_PROP_IFACE, idbus.INTROSPECTABLE} {
		if err := m.conn.Export(nil, path, iface); err != nil {
			logger.Warn("[session] cannot unexport %s on %s: %v", iface, path, err)
		}
	}
}

func (m *Manager) remove(s *Session) {
	m.unexport(s.path)
	m.mu.Lock()
	delete(m.sessions, s.path)
	m.mu.Unlock()
	m.claims.Unclaim(string(s.path))
}

func (m *Manager) dispatch(typ string, s *Session, reason string) {
	if m.events == nil {
		return
	}
	m.events.Dispatch(events.Event{Type: typ, Data: events.ObjectEvent{
		Path:   string(s.path),
		Sender: s.Sender(),
		AppID:  s.app.ID(),
		Reason: reason,
	}})
}

// Get returns the live Session at path without an ownership check.
func (m *Manager) Get(path dbus.ObjectPath) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[path]
	return s, ok
}

// Lookup returns the open Session at path if sender owns it.
func (m *Manager) Lookup(path dbus.ObjectPath, sender string) (*Session, *dbus.Error) {
	s, ok := m.Get(path)
	if !ok || s.Closed() || s.Sender() != sender {
		return nil, idbus.AccessDenied("Invalid session")
	}
	return s, nil
}

// CloseFromBackend handles an impl Closed signal for path.
func (m *Manager) CloseFromBackend(path dbus.ObjectPath) bool {
	s, ok := m.Get(path)
	if !ok {
		return false
	}
	s.Close(m.ctx, ClosedByBackend)
	return true
}

func (m *Manager) snapshot(match func(*Session) bool) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Session
	for _, s := range m.sessions {
		if match == nil || match(s) {
			out = append(out, s)
		}
	}
	return out
}

// CloseForSender closes the sessions of a vanished peer.
func (m *Manager) CloseForSender(sender string) int {
	sessions := m.snapshot(func(s *Session) bool { return s.Sender() == sender })
	for _, s := range sessions {
		s.Close(m.ctx, ClosedByDisconnect)
	}
	return len(sessions)
}

func (m *Manager) CloseAll() {
	for _, s := range m.snapshot(nil) {
		s.Close(m.ctx, ClosedByShutdown)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) List() []Info {
	sessions := m.snapshot(nil)
	out := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
