// Package request implements the per-call Request objects returned by
// interactive portal methods.
package request

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/events"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

const (
	signalResponse = idbus.REQUEST_IFACE + ".Response"
	implClose      = idbus.IMPL_REQUEST_IFACE + ".Close"
)

// ErrNotPending is returned when responding to a Request that already
// responded or was closed.
var ErrNotPending = errors.New("request is no longer pending")

type State int

const (
	Pending State = iota
	Responded
	Closed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Responded:
		return "responded"
	}
	return "closed"
}

var introspectNode = introspect.Node{
	Interfaces: []introspect.Interface{
		introspect.IntrospectData,
		{
			Name:    idbus.REQUEST_IFACE,
			Methods: []introspect.Method{{Name: "Close"}},
			Signals: []introspect.Signal{{
				Name: "Response",
				Args: []introspect.Arg{
					{Name: "response", Type: "u"},
					{Name: "results", Type: "a{sv}"},
				},
			}},
		},
	},
}

// Request is bound to the sender that created it and answers exactly once.
type Request struct {
	m       *Manager
	path    dbus.ObjectPath
	app     *appinfo.AppInfo
	created time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	impl     idbus.Caller
	implDest string
	onClose  []func()
}

func (r *Request) Path() dbus.ObjectPath    { return r.path }
func (r *Request) Sender() string           { return r.app.Sender() }
func (r *Request) App() *appinfo.AppInfo    { return r.app }
func (r *Request) Context() context.Context { return r.ctx }

func (r *Request) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetImpl binds the backend side Request living at the same path on dest.
func (r *Request) SetImpl(dest string) idbus.Caller {
	impl := r.m.conn.Proxy(dest, r.path)
	r.mu.Lock()
	r.impl, r.implDest = impl, dest
	r.mu.Unlock()
	return impl
}

// OnClose registers fn to run once the Request is torn down, whatever the
// reason.
func (r *Request) OnClose(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onClose = append(r.onClose, fn)
}

// terminate moves a pending Request to state. It reports false when the
// Request was already finished.
func (r *Request) terminate(state State) (idbus.Caller, []func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Pending {
		return nil, nil, false
	}
	r.state = state
	hooks := r.onClose
	r.onClose = nil
	return r.impl, hooks, true
}

// Respond sends Response to the owning sender and tears the Request down.
func (r *Request) Respond(code uint32, results map[string]dbus.Variant) error {
	_, hooks, ok := r.terminate(Responded)
	if !ok {
		logger.Debug("[request] discarding late response for %s", r.path)
		return ErrNotPending
	}
	if results == nil {
		results = map[string]dbus.Variant{}
	}

	err := r.m.conn.EmitTo(r.Sender(), r.path, signalResponse, code, results)
	if err != nil {
		logger.Warn("[request] cannot emit response on %s: %v", r.path, err)
	}
	r.m.finish(r, hooks, responseReason(code))
	return err
}

// Close is the caller initiated close. The backend side is closed and
// awaited; its failure does not keep the Request alive.
func (r *Request) Close(ctx context.Context) {
	impl, hooks, ok := r.terminate(Closed)
	if !ok {
		return
	}
	r.m.finish(r, hooks, "closed")
	if impl != nil {
		if call := idbus.Call(ctx, impl, r.m.timeout, implClose); call.Err != nil {
			logger.Warn("[request] backend close of %s failed: %s", r.path, idbus.ErrorName(call.Err))
		}
	}
}

// abandon closes the Request without waiting for the backend.
func (r *Request) abandon(reason string) {
	impl, hooks, ok := r.terminate(Closed)
	if !ok {
		return
	}
	r.m.finish(r, hooks, reason)
	if impl != nil {
		go func() {
			if call := idbus.Call(context.Background(), impl, r.m.timeout, implClose); call.Err != nil {
				logger.Debug("[request] backend close of %s failed: %s", r.path, idbus.ErrorName(call.Err))
			}
		}()
	}
}

// Discard drops a Request whose method call failed before it could be
// answered. No Response is sent.
func (r *Request) Discard() {
	r.abandon("failed")
}

func (r *Request) handleClose(msg dbus.Message) *dbus.Error {
	if idbus.Sender(msg) != r.Sender() {
		return idbus.AccessDenied("Portal operation not allowed")
	}
	r.Close(r.m.ctx)
	return nil
}

func responseReason(code uint32) string {
	switch code {
	case idbus.RESPONSE_SUCCESS:
		return "success"
	case idbus.RESPONSE_CANCELLED:
		return "cancelled"
	}
	return "other"
}

// Info is the serialisable view of a Request.
type Info struct {
	Path    string    `json:"path"`
	Sender  string    `json:"sender"`
	AppID   string    `json:"app_id,omitempty"`
	Backend string    `json:"backend,omitempty"`
	State   string    `json:"state"`
	Created time.Time `json:"created"`
}

func (r *Request) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		Path:    string(r.path),
		Sender:  r.Sender(),
		AppID:   r.app.ID(),
		Backend: r.implDest,
		State:   r.state.String(),
		Created: r.created,
	}
}

// Manager creates Requests and tracks the live ones.
type Manager struct {
	ctx     context.Context
	conn    idbus.Conn
	claims  Claimer
	events  *events.Dispatcher
	timeout time.Duration

	mu       sync.Mutex
	requests map[dbus.ObjectPath]*Request
}

// NewManager returns a Manager whose Requests are cancelled with ctx.
// timeout bounds backend Close calls; zero leaves them unbounded.
func NewManager(ctx context.Context, conn idbus.Conn, claims Claimer, ev *events.Dispatcher, timeout time.Duration) *Manager {
	return &Manager{
		ctx:      ctx,
		conn:     conn,
		claims:   claims,
		events:   ev,
		timeout:  timeout,
		requests: make(map[dbus.ObjectPath]*Request),
	}
}

// Create exports a new Request for app. The token comes from the
// handle_token option.
func (m *Manager) Create(app *appinfo.AppInfo, opts map[string]dbus.Variant) (*Request, error) {
	token, err := Token(opts, HandleTokenKey)
	if err != nil {
		return nil, err
	}

	path := AllocatePath(m.claims, idbus.REQUEST_PATH, app.Sender(), token)
	r := &Request{
		m:       m,
		path:    path,
		app:     app,
		created: time.Now(),
	}
	r.ctx, r.cancel = context.WithCancel(m.ctx)

	if err := m.conn.ExportMethodTable(map[string]interface{}{"Close": r.handleClose}, path, idbus.REQUEST_IFACE); err != nil {
		r.cancel()
		m.claims.Unclaim(string(path))
		return nil, idbus.Failed("Could not export request")
	}
	node := introspectNode
	node.Name = string(path)
	if err := m.conn.Export(introspect.NewIntrospectable(&node), path, idbus.INTROSPECTABLE); err != nil {
		logger.Warn("[request] cannot export introspection data for %s: %v", path, err)
	}

	// CloseForSender snapshots under m.mu after the departure is recorded
	m.mu.Lock()
	if m.claims.Departed(app.Sender()) {
		m.mu.Unlock()
		r.cancel()
		m.unexport(path)
		m.claims.Unclaim(string(path))
		return nil, &DepartedError{Sender: app.Sender()}
	}
	m.requests[path] = r
	m.mu.Unlock()

	logger.Debug("[request] created %s for %s", path, app)
	m.dispatch(events.TypeRequestCreated, r, "")
	return r, nil
}

func (m *Manager) unexport(path dbus.ObjectPath) {
	for _, iface := range []string{idbus.REQUEST_IFACE, idbus.INTROSPECTABLE} {
		if err := m.conn.Export(nil, path, iface); err != nil {
			logger.Warn("[request] cannot unexport %s on %s: %v", iface, path, err)
		}
	}
}

func (m *Manager) finish(r *Request, hooks []func(), reason string) {
	r.cancel()
	m.unexport(r.path)

	m.mu.Lock()
	delete(m.requests, r.path)
	m.mu.Unlock()
	m.claims.Unclaim(string(r.path))

	for _, fn := range hooks {
		fn()
	}
	logger.Debug("[request] %s finished: %s", r.path, reason)
	m.dispatch(events.TypeRequestClosed, r, reason)
}

func (m *Manager) dispatch(typ string, r *Request, reason string) {
	if m.events == nil {
		return
	}
	m.events.Dispatch(events.Event{Type: typ, Data: events.ObjectEvent{
		Path:   string(r.path),
		Sender: r.Sender(),
		AppID:  r.app.ID(),
		Reason: reason,
	}})
}

// Lookup returns the live Request at path.
func (m *Manager) Lookup(path dbus.ObjectPath) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[path]
	return r, ok
}

func (m *Manager) snapshot(match func(*Request) bool) []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.requests {
		if match == nil || match(r) {
			out = append(out, r)
		}
	}
	return out
}

// CloseForSender closes every Request owned by sender without waiting for
// the backends. It returns how many were closed.
func (m *Manager) CloseForSender(sender string) int {
	reqs := m.snapshot(func(r *Request) bool { return r.Sender() == sender })
	for _, r := range reqs {
		r.abandon("disconnected")
	}
	return len(reqs)
}

// CloseAll abandons every live Request.
func (m *Manager) CloseAll() {
	for _, r := range m.snapshot(nil) {
		r.abandon("shutdown")
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// List returns the live Requests sorted by path.
func (m *Manager) List() []Info {
	reqs := m.snapshot(nil)
	out := make([]Info, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
