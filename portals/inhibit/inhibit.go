// Package inhibit implements org.freedesktop.portal.Inhibit: blocking
// logout, suspend or idle, and monitoring the session state.
package inhibit

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/broker"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/options"
	"github.com/b0bbywan/go-desktop-portal/permission"
	"github.com/b0bbywan/go-desktop-portal/request"
	"github.com/b0bbywan/go-desktop-portal/session"
)

const (
	Interface = idbus.PORTAL_PREFIX + "Inhibit"

	implIface            = idbus.IMPL_PORTAL_PREFIX + "Inhibit"
	implInhibit          = implIface + ".Inhibit"
	implCreateMonitor    = implIface + ".CreateMonitor"
	implQueryEndResponse = implIface + ".QueryEndResponse"
	implStateChanged     = implIface + ".StateChanged"
	signalStateChanged   = Interface + ".StateChanged"

	permissionTable = "inhibit"
	permissionID    = "inhibit"
)

// Inhibit flags
const (
	FlagLogout     uint32 = 1 << 0
	FlagUserSwitch uint32 = 1 << 1
	FlagSuspend    uint32 = 1 << 2
	FlagIdle       uint32 = 1 << 3

	allFlags = FlagLogout | FlagUserSwitch | FlagSuspend | FlagIdle
)

var inhibitOptions = []options.Key{
	{Key: "reason", Type: "s"},
}

// monitor is the payload of a CreateMonitor session.
type monitor struct {
	appID string
}

func (m *monitor) OnClose() {
	logger.Debug("[inhibit] monitor for %q closed", m.appID)
}

type Portal struct {
	b        *broker.Broker
	impl     string
	monitors *session.Store[*monitor]
}

// New returns nil when no backend implements the interface.
func New(b *broker.Broker) *Portal {
	impl := b.Impl(Interface)
	if impl == nil {
		return nil
	}
	logger.Debug("[inhibit] using backend %s", impl.DBusName)
	p := &Portal{
		b:        b,
		impl:     impl.DBusName,
		monitors: session.NewStore[*monitor](b.Events),
	}
	if err := b.OnImplSignal(implStateChanged, p.stateChanged); err != nil {
		logger.Warn("[inhibit] cannot watch %s: %v", implStateChanged, err)
	}
	return p
}

func (p *Portal) Interface() string { return Interface }
func (p *Portal) Version() uint32   { return 3 }

func (p *Portal) Methods() map[string]broker.HandlerFunc {
	return map[string]broker.HandlerFunc{
		"Inhibit":          p.inhibit,
		"CreateMonitor":    p.createMonitor,
		"QueryEndResponse": p.queryEndResponse,
	}
}

func (p *Portal) inhibit(inv *broker.Invocation) ([]interface{}, error) {
	window, _ := inv.Args[0].(string)
	flags, _ := inv.Args[1].(uint32)
	if flags&^allFlags != 0 {
		return nil, idbus.InvalidArgument("Invalid flags")
	}
	opts, err := options.Filter(inv.Options(), inhibitOptions)
	if err != nil {
		return nil, err
	}

	perm, err := p.b.Permissions.Get(inv.Ctx, permissionTable, permissionID, inv.App.ID())
	if err != nil {
		logger.Warn("[inhibit] permission lookup for %s failed: %v", inv.App, err)
	}
	if perm == permission.No {
		return nil, idbus.NotAllowed("Inhibiting is not allowed")
	}

	req := inv.Request
	req.SetImpl(p.impl)
	go p.startInhibit(req, inv.App.ID(), window, flags, opts)
	return nil, nil
}

// startInhibit asks the backend to inhibit. On success the Request stays
// exported and stands for the inhibition until the caller closes it.
func (p *Portal) startInhibit(req *request.Request, appID, window string, flags uint32, opts map[string]dbus.Variant) {
	call := p.b.CallImpl(req.Context(), p.impl, implInhibit, req.Path(), appID, window, flags, opts)
	if call.Err == nil {
		logger.Debug("[inhibit] %s inhibits %#x", req.Path(), flags)
		return
	}
	if req.State() != request.Pending {
		return
	}
	logger.Warn("[inhibit] backend call failed: %v", call.Err)
	if err := req.Respond(idbus.RESPONSE_OTHER, nil); err == nil {
		p.b.Metrics.Response(idbus.RESPONSE_OTHER)
	}
}

func (p *Portal) createMonitor(inv *broker.Invocation) ([]interface{}, error) {
	window, _ := inv.Args[0].(string)

	s, err := p.b.Sessions.Create(inv.App, inv.Options(), Interface)
	if err != nil {
		return nil, err
	}
	s.SetImpl(p.impl)
	m := &monitor{appID: inv.App.ID()}
	s.SetPayload(m)
	p.monitors.Put(s, m)

	req := inv.Request
	req.SetImpl(p.impl)
	req.OnClose(func() {
		// the caller gave up before learning the session handle
		if req.State() == request.Closed {
			s.Close(context.Background(), session.ClosedByFailure)
		}
	})
	go p.startMonitor(req, s, inv.App.ID(), window)
	return nil, nil
}

func (p *Portal) startMonitor(req *request.Request, s *session.Session, appID, window string) {
	var code uint32
	call := p.b.CallImpl(req.Context(), p.impl, implCreateMonitor, req.Path(), s.Path(), appID, window)
	if req.State() != request.Pending {
		return
	}
	if call.Err != nil {
		logger.Warn("[inhibit] backend call failed: %v", call.Err)
		code = idbus.RESPONSE_OTHER
	} else if err := call.Store(&code); err != nil {
		logger.Warn("[inhibit] invalid CreateMonitor reply: %v", err)
		code = idbus.RESPONSE_OTHER
	}

	results := map[string]dbus.Variant{}
	if code == idbus.RESPONSE_SUCCESS {
		results["session_handle"] = dbus.MakeVariant(string(s.Path()))
	} else {
		s.Close(context.Background(), session.ClosedByFailure)
	}
	if err := req.Respond(code, results); err == nil {
		p.b.Metrics.Response(code)
	}
}

func (p *Portal) queryEndResponse(inv *broker.Invocation) ([]interface{}, error) {
	handle, _ := inv.Args[0].(dbus.ObjectPath)
	if _, derr := p.monitors.Get(handle, inv.App); derr != nil {
		return nil, derr
	}
	s, derr := p.b.Sessions.Lookup(handle, inv.Sender)
	if derr != nil {
		return nil, derr
	}
	call := p.b.CallImpl(inv.Ctx, s.Backend(), implQueryEndResponse, handle)
	if call.Err != nil {
		logger.Warn("[inhibit] QueryEndResponse failed: %v", call.Err)
		return nil, idbus.Failed("QueryEndResponse failed")
	}
	return []interface{}{}, nil
}

// stateChanged relays the backend's session state to the monitor owner.
func (p *Portal) stateChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	handle, _ := sig.Body[0].(dbus.ObjectPath)
	state, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	s, found := p.b.Sessions.Get(handle)
	if !found || s.Closed() || s.Portal() != Interface {
		return
	}
	if !p.b.FromBackend(sig.Sender, s.Backend()) {
		logger.Warn("[inhibit] ignoring StateChanged for %s from %s", handle, sig.Sender)
		return
	}
	if err := p.b.Conn().EmitTo(s.Sender(), idbus.DESKTOP_PATH, signalStateChanged, handle, state); err != nil {
		logger.Warn("[inhibit] cannot relay state of %s: %v", handle, err)
	}
}

// Close detaches the portal from session events.
func (p *Portal) Close() {
	p.monitors.Close()
}
