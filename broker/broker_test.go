package broker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/config"
	"github.com/b0bbywan/go-desktop-portal/events"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/internal/dbustest"
	"github.com/b0bbywan/go-desktop-portal/portalconfig"
)

const (
	backendName   = "org.freedesktop.impl.portal.desktop.test"
	backendUnique = ":1.50"
	emailIface    = "org.freedesktop.portal.Email"
	implCompose   = "org.freedesktop.impl.portal.Email.ComposeEmail"
	implReqClose  = idbus.IMPL_REQUEST_IFACE + ".Close"
	implSessClose = idbus.IMPL_SESSION_IFACE + ".Close"
	testPortalDef = `[portal]
DBusName=org.freedesktop.impl.portal.desktop.test
Interfaces=org.freedesktop.impl.portal.Email;org.freedesktop.impl.portal.FileChooser;org.freedesktop.impl.portal.Inhibit
`
)

type fakeSource struct {
	calls  atomic.Int32
	reject map[string]bool
}

func (f *fakeSource) Identify(_ context.Context, sender string) (*appinfo.AppInfo, error) {
	f.calls.Add(1)
	if f.reject[sender] {
		return nil, errors.New("no such process")
	}
	return appinfo.NewHost(sender, ""), nil
}

type testPortal struct {
	iface   string
	version uint32
	methods map[string]HandlerFunc
}

func (p *testPortal) Interface() string               { return p.iface }
func (p *testPortal) Version() uint32                 { return p.version }
func (p *testPortal) Methods() map[string]HandlerFunc { return p.methods }

// backend scripts the test backend's replies to ComposeEmail.
type backend struct {
	mu    sync.Mutex
	reply func(ctx context.Context, c dbustest.Call) *dbus.Call
}

func (be *backend) set(fn func(ctx context.Context, c dbustest.Call) *dbus.Call) {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.reply = fn
}

func (be *backend) handle(ctx context.Context, c dbustest.Call) *dbus.Call {
	if c.Method != implCompose {
		return dbustest.Reply()
	}
	be.mu.Lock()
	fn := be.reply
	be.mu.Unlock()
	return fn(ctx, c)
}

func succeed(context.Context, dbustest.Call) *dbus.Call {
	return dbustest.Reply(uint32(0), map[string]dbus.Variant{})
}

func block(ctx context.Context, _ dbustest.Call) *dbus.Call {
	<-ctx.Done()
	return &dbus.Call{Err: ctx.Err()}
}

type harness struct {
	conn    *dbustest.Conn
	b       *Broker
	src     *fakeSource
	backend *backend
}

func newHarness(t *testing.T, conf string) *harness {
	t.Helper()
	root := t.TempDir()
	origData, origConf := config.DATADIR, config.SYSCONFDIR
	config.DATADIR = filepath.Join(root, "usr", "share")
	config.SYSCONFDIR = filepath.Join(root, "etc")
	t.Cleanup(func() { config.DATADIR, config.SYSCONFDIR = origData, origConf })

	portalDir := filepath.Join(root, "portals")
	require.NoError(t, os.MkdirAll(portalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(portalDir, "test.portal"), []byte(testPortalDef), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(portalDir, "portals.conf"), []byte(conf), 0o644))

	resolver := portalconfig.New(config.Dirs{
		PortalDir:  portalDir,
		ConfigHome: filepath.Join(root, "home", ".config"),
	})

	h := &harness{
		conn:    dbustest.New(),
		src:     &fakeSource{reject: map[string]bool{}},
		backend: &backend{reply: succeed},
	}
	h.conn.Handle(backendName, h.backend.handle)
	h.conn.Handle(idbus.DBUS_INTERFACE, func(_ context.Context, c dbustest.Call) *dbus.Call {
		if c.Method == idbus.BUS_GET_NAME_OWNER && c.Args[0] == backendName {
			return dbustest.Reply(backendUnique)
		}
		return dbustest.ErrorReply("org.freedesktop.DBus.Error.NameHasNoOwner", "no owner")
	})

	b, err := New(context.Background(), Options{Conn: h.conn, Resolver: resolver, Apps: h.src})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	h.b = b
	return h
}

func (h *harness) exportEmail(t *testing.T) {
	t.Helper()
	p := &testPortal{iface: emailIface, version: 4, methods: map[string]HandlerFunc{
		"ComposeEmail": func(inv *Invocation) ([]interface{}, error) {
			h.b.Forward(inv.Request, backendName, implCompose, inv.App.ID(), inv.Args[0], inv.Options())
			return nil, nil
		},
	}}
	require.NoError(t, h.b.Export(p, 0))
}

func (h *harness) compose(t *testing.T, sender, token string) dbus.ObjectPath {
	t.Helper()
	out, derr := h.conn.Invoke(sender, idbus.DESKTOP_PATH, emailIface, "ComposeEmail", "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(token),
	})
	require.Nil(t, derr)
	require.Len(t, out, 1)
	return out[0].(dbus.ObjectPath)
}

func (h *harness) responses(path dbus.ObjectPath) []dbustest.Emitted {
	var out []dbustest.Emitted
	for _, e := range h.conn.EmittedNamed(idbus.REQUEST_IFACE + ".Response") {
		if e.Path == path {
			out = append(out, e)
		}
	}
	return out
}

func TestBasicRequest(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)

	path := h.compose(t, ":1.7", "abc")
	assert.Equal(t, dbus.ObjectPath("/org/freedesktop/portal/desktop/request/1_7/abc"), path)

	require.True(t, dbustest.Eventually(func() bool { return len(h.responses(path)) == 1 }, time.Second))
	resp := h.responses(path)[0]
	assert.Equal(t, ":1.7", resp.Dest)
	assert.Equal(t, []interface{}{uint32(0), map[string]dbus.Variant{}}, resp.Body)

	require.True(t, dbustest.Eventually(func() bool { return h.b.claims.Len() == 0 }, time.Second))
	assert.False(t, h.conn.Exported(path, idbus.REQUEST_IFACE))

	calls := h.conn.CallsTo(implCompose)
	require.Len(t, calls, 1)
	assert.Equal(t, path, calls[0].Args[0])
	assert.Equal(t, dbus.ObjectPath(idbus.DESKTOP_PATH), calls[0].Path)
}

func TestRequestExistsBeforeReply(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.backend.set(block)

	var seen bool
	p := &testPortal{iface: emailIface, version: 4, methods: map[string]HandlerFunc{
		"ComposeEmail": func(inv *Invocation) ([]interface{}, error) {
			seen = h.conn.Exported(inv.Request.Path(), idbus.REQUEST_IFACE)
			h.b.Forward(inv.Request, backendName, implCompose, "", inv.Args[0], inv.Options())
			return nil, nil
		},
	}}
	require.NoError(t, h.b.Export(p, 0))
	h.compose(t, ":1.7", "x")
	assert.True(t, seen)
}

func TestCallerClose(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.backend.set(block)

	path := h.compose(t, ":1.7", "abc")
	require.True(t, h.conn.Exported(path, idbus.REQUEST_IFACE))

	_, derr := h.conn.Invoke(":1.8", path, idbus.REQUEST_IFACE, "Close")
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_ACCESS_DENIED, derr.Name)

	_, derr = h.conn.Invoke(":1.7", path, idbus.REQUEST_IFACE, "Close")
	require.Nil(t, derr)

	assert.False(t, h.conn.Exported(path, idbus.REQUEST_IFACE))
	closes := h.conn.CallsTo(implReqClose)
	require.Len(t, closes, 1)
	assert.Equal(t, path, closes[0].Path)
	assert.Equal(t, backendName, closes[0].Dest)

	// the blocked backend call is cancelled and its answer dropped
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.responses(path))
	assert.Equal(t, 0, h.b.claims.Len())
}

func TestDisconnectCascade(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.backend.set(block)
	require.NoError(t, h.b.Start())

	reqPath := h.compose(t, ":1.9", "r")
	app, ok := h.b.Apps.Lookup(":1.9")
	require.True(t, ok)
	var sessions []dbus.ObjectPath
	for _, token := range []string{"a", "b"} {
		s, err := h.b.Sessions.Create(app, map[string]dbus.Variant{
			"session_handle_token": dbus.MakeVariant(token),
		}, "org.freedesktop.portal.Inhibit")
		require.NoError(t, err)
		s.SetImpl(backendName)
		sessions = append(sessions, s.Path())
	}

	gone := make(chan string, 4)
	h.b.Events.Subscribe(events.TypePeerDisconnected, func(e events.Event) {
		gone <- e.Data.(events.PeerDisconnected).Sender
	})

	// a well-known name changing owner is not a disconnect
	h.conn.Deliver(&dbus.Signal{
		Sender: idbus.DBUS_INTERFACE,
		Path:   idbus.DBUS_PATH,
		Name:   signalNameOwnerChanged,
		Body:   []interface{}{"org.example.Service", ":1.9", ""},
	})
	h.conn.Deliver(&dbus.Signal{
		Sender: idbus.DBUS_INTERFACE,
		Path:   idbus.DBUS_PATH,
		Name:   signalNameOwnerChanged,
		Body:   []interface{}{":1.9", ":1.9", ""},
	})

	select {
	case sender := <-gone:
		assert.Equal(t, ":1.9", sender)
	case <-time.After(time.Second):
		t.Fatal("no disconnect event")
	}
	assert.Equal(t, 0, h.b.Requests.Len())
	assert.Equal(t, 0, h.b.Sessions.Len())
	assert.False(t, h.conn.Exported(reqPath, idbus.REQUEST_IFACE))
	for _, p := range sessions {
		assert.False(t, h.conn.Exported(p, idbus.SESSION_IFACE))
	}
	assert.Equal(t, 0, h.b.claims.Len())
	_, ok = h.b.Apps.Lookup(":1.9")
	assert.False(t, ok)
	assert.Empty(t, gone)

	assert.True(t, dbustest.Eventually(func() bool {
		return len(h.conn.CallsTo(implReqClose))+len(h.conn.CallsTo(implSessClose)) == 3
	}, time.Second))
	assert.Empty(t, h.responses(reqPath))
}

func TestConfigResolution(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\norg.freedesktop.portal.FileChooser=none\n")
	assert.Nil(t, h.b.Impl("org.freedesktop.portal.FileChooser"))
	require.NotNil(t, h.b.Impl(emailIface))
	assert.Equal(t, backendName, h.b.Impl(emailIface).DBusName)
	assert.Empty(t, h.b.Helpers())
	state, err := h.b.LockdownState(context.Background())
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestTokenCollisionAcrossSenders(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	release := make(chan struct{})
	h.backend.set(func(ctx context.Context, c dbustest.Call) *dbus.Call {
		<-release
		return succeed(ctx, c)
	})

	p1 := h.compose(t, ":1.1", "t")
	p2 := h.compose(t, ":1.2", "t")
	assert.Equal(t, dbus.ObjectPath(idbus.REQUEST_PATH+"/1_1/t"), p1)
	assert.Equal(t, dbus.ObjectPath(idbus.REQUEST_PATH+"/1_2/t"), p2)
	assert.Equal(t, 2, h.b.Requests.Len())
	close(release)

	require.True(t, dbustest.Eventually(func() bool {
		return len(h.responses(p1)) == 1 && len(h.responses(p2)) == 1
	}, time.Second))
	assert.Equal(t, ":1.1", h.responses(p1)[0].Dest)
	assert.Equal(t, ":1.2", h.responses(p2)[0].Dest)
}

func TestBackendErrorRespondsOther(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.backend.set(func(context.Context, dbustest.Call) *dbus.Call {
		return dbustest.ErrorReply("org.example.Secret", "/home/user/secret path")
	})

	path := h.compose(t, ":1.7", "abc")
	require.True(t, dbustest.Eventually(func() bool { return len(h.responses(path)) == 1 }, time.Second))
	assert.Equal(t, []interface{}{idbus.RESPONSE_OTHER, map[string]dbus.Variant{}}, h.responses(path)[0].Body)
}

func TestBadFDIndexRespondsOther(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.backend.set(func(context.Context, dbustest.Call) *dbus.Call {
		return dbustest.Reply(uint32(0), map[string]dbus.Variant{"fd": dbus.MakeVariant(dbus.UnixFDIndex(4))})
	})

	path := h.compose(t, ":1.7", "abc")
	require.True(t, dbustest.Eventually(func() bool { return len(h.responses(path)) == 1 }, time.Second))
	assert.Equal(t, idbus.RESPONSE_OTHER, h.responses(path)[0].Body[0])
}

func TestAuthorisationFailure(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.src.reject[":1.66"] = true

	_, derr := h.conn.Invoke(":1.66", idbus.DESKTOP_PATH, emailIface, "ComposeEmail", "", map[string]dbus.Variant{})
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_ACCESS_DENIED, derr.Name)
	assert.Equal(t, 0, h.b.Requests.Len())
	assert.Empty(t, h.conn.CallsTo(implCompose))
}

func TestInvalidTokenRejected(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)

	_, derr := h.conn.Invoke(":1.7", idbus.DESKTOP_PATH, emailIface, "ComposeEmail", "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(strings.Repeat("a", 65)),
	})
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_INVALID_ARGUMENT, derr.Name)
	assert.Equal(t, 0, h.b.claims.Len())
}

func TestHandlerErrorDiscardsRequest(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	p := &testPortal{iface: emailIface, version: 4, methods: map[string]HandlerFunc{
		"ComposeEmail": func(inv *Invocation) ([]interface{}, error) {
			return nil, idbus.NotAllowed("Emails are disabled")
		},
	}}
	require.NoError(t, h.b.Export(p, 0))

	_, derr := h.conn.Invoke(":1.7", idbus.DESKTOP_PATH, emailIface, "ComposeEmail", "", map[string]dbus.Variant{})
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_NOT_ALLOWED, derr.Name)
	assert.Equal(t, 0, h.b.Requests.Len())
	assert.Equal(t, 0, h.b.claims.Len())
}

func TestHostPortalSkipsAuthorisation(t *testing.T) {
	h := newHarness(t, "")
	var app *appinfo.AppInfo
	p := &testPortal{iface: "org.freedesktop.host.portal.Registry", version: 1, methods: map[string]HandlerFunc{
		"Register": func(inv *Invocation) ([]interface{}, error) {
			app = inv.App
			return []interface{}{}, nil
		},
	}}
	require.NoError(t, h.b.Export(p, HostPortal))

	_, derr := h.conn.Invoke(":1.7", idbus.DESKTOP_PATH, p.iface, "Register", "org.example.App", map[string]dbus.Variant{})
	require.Nil(t, derr)
	assert.Nil(t, app)
	assert.Equal(t, int32(0), h.src.calls.Load())
}

func TestExportChecksMethodTable(t *testing.T) {
	h := newHarness(t, "")

	missing := &testPortal{iface: "org.freedesktop.portal.Inhibit", version: 3, methods: map[string]HandlerFunc{
		"Inhibit": func(*Invocation) ([]interface{}, error) { return nil, nil },
	}}
	assert.Error(t, h.b.Export(missing, 0))

	extra := &testPortal{iface: emailIface, version: 4, methods: map[string]HandlerFunc{
		"ComposeEmail": func(*Invocation) ([]interface{}, error) { return nil, nil },
		"SendFax":      func(*Invocation) ([]interface{}, error) { return nil, nil },
	}}
	assert.Error(t, h.b.Export(extra, 0))

	unknown := &testPortal{iface: "org.freedesktop.portal.Teleport", version: 1}
	assert.Error(t, h.b.Export(unknown, 0))

	h.exportEmail(t)
	assert.Error(t, h.b.Export(&testPortal{iface: emailIface, version: 4, methods: map[string]HandlerFunc{
		"ComposeEmail": func(*Invocation) ([]interface{}, error) { return nil, nil },
	}}, 0), "exported twice")
}

func TestIntrospectionAndVersion(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)

	intro, ok := h.conn.Exports(idbus.DESKTOP_PATH, idbus.INTROSPECTABLE).(introspect.Introspectable)
	require.True(t, ok)
	xml := string(intro)
	assert.Contains(t, xml, `<interface name="org.freedesktop.portal.Email">`)
	assert.Contains(t, xml, `<method name="ComposeEmail">`)
	assert.Contains(t, xml, `type="a{sv}" direction="in"`)
	assert.Contains(t, xml, `<property name="version" type="u" access="read">`)

	out, derr := h.conn.Invoke(":1.7", idbus.DESKTOP_PATH, idbus.DBUS_PROP_IFACE, "Get", emailIface, "version")
	require.Nil(t, derr)
	assert.Equal(t, uint32(4), out[0].(dbus.Variant).Value())

	_, derr = h.conn.Invoke(":1.7", idbus.DESKTOP_PATH, idbus.DBUS_PROP_IFACE, "Get", "org.freedesktop.portal.Camera", "version")
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_UNKNOWN_PROPERTY, derr.Name)

	_, derr = h.conn.Invoke(":1.7", idbus.DESKTOP_PATH, idbus.DBUS_PROP_IFACE, "Set", emailIface, "version", dbus.MakeVariant(uint32(9)))
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_PROPERTY_READONLY, derr.Name)

	list := h.b.Portals()
	require.Len(t, list, 1)
	assert.Equal(t, PortalInfo{Interface: emailIface, Version: 4, Backend: backendName, Methods: []string{"ComposeEmail"}}, list[0])
}

func TestBackendSessionClosed(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	require.NoError(t, h.b.Start())

	app := appinfo.NewHost(":1.4", "")
	s, err := h.b.Sessions.Create(app, map[string]dbus.Variant{}, "org.freedesktop.portal.Inhibit")
	require.NoError(t, err)
	s.SetImpl(backendName)

	// a stranger cannot close it
	h.conn.Deliver(&dbus.Signal{Sender: ":1.99", Path: s.Path(), Name: signalImplClosed})
	time.Sleep(20 * time.Millisecond)
	assert.False(t, s.Closed())

	h.conn.Deliver(&dbus.Signal{Sender: backendUnique, Path: s.Path(), Name: signalImplClosed})
	require.True(t, dbustest.Eventually(s.Closed, time.Second))
	closed := h.conn.EmittedNamed(idbus.SESSION_IFACE + ".Closed")
	require.Len(t, closed, 1)
	assert.Equal(t, ":1.4", closed[0].Dest)
}

func TestImplSignalsAndNameLost(t *testing.T) {
	h := newHarness(t, "")
	got := make(chan *dbus.Signal, 1)
	require.NoError(t, h.b.OnImplSignal("org.freedesktop.impl.portal.Settings.SettingChanged", func(sig *dbus.Signal) {
		got <- sig
	}))
	require.NoError(t, h.b.Start())

	h.conn.Deliver(&dbus.Signal{
		Sender: backendUnique,
		Path:   idbus.DESKTOP_PATH,
		Name:   "org.freedesktop.impl.portal.Settings.SettingChanged",
		Body:   []interface{}{"org.example", "key", dbus.MakeVariant(1)},
	})
	select {
	case sig := <-got:
		assert.Equal(t, backendUnique, sig.Sender)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}

	h.conn.Deliver(&dbus.Signal{Sender: idbus.DBUS_INTERFACE, Name: signalNameLost, Body: []interface{}{"org.example.Other"}})
	h.conn.Deliver(&dbus.Signal{Sender: idbus.DBUS_INTERFACE, Name: signalNameLost, Body: []interface{}{idbus.PORTAL_BUS_NAME}})
	select {
	case <-h.b.NameLost():
	case <-time.After(time.Second):
		t.Fatal("name loss not reported")
	}
	assert.NotEmpty(t, h.conn.Matches())
}

func TestFromBackend(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.b.Start())

	assert.True(t, h.b.FromBackend(backendUnique, backendName))
	assert.True(t, h.b.FromBackend(backendName, backendName))
	assert.False(t, h.b.FromBackend(":1.3", backendName))
	assert.False(t, h.b.FromBackend(":1.3", "org.example.Gone"))
	assert.False(t, h.b.FromBackend("", backendName))
}

func TestBackendOwnerTracking(t *testing.T) {
	h := newHarness(t, "")
	require.NoError(t, h.b.Start())
	lookups := len(h.conn.CallsTo(idbus.BUS_GET_NAME_OWNER))

	ownerChanged := func(sender, name, oldOwner, newOwner string) {
		h.conn.Deliver(&dbus.Signal{
			Sender: sender,
			Path:   idbus.DBUS_PATH,
			Name:   signalNameOwnerChanged,
			Body:   []interface{}{name, oldOwner, newOwner},
		})
	}

	// the backend restarts on a new connection
	ownerChanged(idbus.DBUS_INTERFACE, backendName, backendUnique, "")
	require.True(t, dbustest.Eventually(func() bool { return !h.b.FromBackend(backendUnique, backendName) }, time.Second))
	ownerChanged(idbus.DBUS_INTERFACE, backendName, "", ":1.77")
	require.True(t, dbustest.Eventually(func() bool { return h.b.FromBackend(":1.77", backendName) }, time.Second))

	// only the bus daemon reports owners, other names are not tracked
	ownerChanged(":1.66", backendName, ":1.77", ":1.66")
	ownerChanged(idbus.DBUS_INTERFACE, "org.example.Other", "", ":1.5")
	time.Sleep(20 * time.Millisecond)
	assert.True(t, h.b.FromBackend(":1.77", backendName))
	assert.False(t, h.b.FromBackend(":1.66", backendName))
	assert.False(t, h.b.FromBackend(":1.5", "org.example.Other"))

	// answering from the cache never calls the bus
	assert.Len(t, h.conn.CallsTo(idbus.BUS_GET_NAME_OWNER), lookups)
}

func TestBusSignalsFromPeersIgnored(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.backend.set(block)
	require.NoError(t, h.b.Start())

	reqPath := h.compose(t, ":1.9", "r")
	gone := make(chan string, 1)
	h.b.Events.Subscribe(events.TypePeerDisconnected, func(e events.Event) {
		gone <- e.Data.(events.PeerDisconnected).Sender
	})

	h.conn.Deliver(&dbus.Signal{
		Sender: ":1.66",
		Path:   idbus.DBUS_PATH,
		Name:   signalNameOwnerChanged,
		Body:   []interface{}{":1.9", ":1.9", ""},
	})
	h.conn.Deliver(&dbus.Signal{Sender: ":1.66", Name: signalNameLost, Body: []interface{}{idbus.PORTAL_BUS_NAME}})

	select {
	case <-h.b.NameLost():
		t.Fatal("name loss accepted from a peer")
	case sender := <-gone:
		t.Fatalf("disconnect of %s accepted from a peer", sender)
	case <-time.After(50 * time.Millisecond):
	}
	assert.True(t, h.conn.Exported(reqPath, idbus.REQUEST_IFACE))
	assert.Equal(t, 1, h.b.Requests.Len())
	_, ok := h.b.Apps.Lookup(":1.9")
	assert.True(t, ok)

	matches := h.conn.Matches()
	require.NotEmpty(t, matches)
	assert.Len(t, matches[0], 4)
}

func TestCallAfterDisconnect(t *testing.T) {
	h := newHarness(t, "[preferred]\ndefault=test\n")
	h.exportEmail(t)
	h.backend.set(block)

	h.compose(t, ":1.9", "a")
	app, ok := h.b.Apps.Lookup(":1.9")
	require.True(t, ok)

	// the disconnect is handled while a call from :1.9 is between
	// authorisation and object creation
	h.b.Events.Dispatch(events.Event{
		Type: events.TypePeerDisconnected,
		Data: events.PeerDisconnected{Sender: ":1.9"},
	})
	_, err := h.b.Sessions.Create(app, map[string]dbus.Variant{}, "org.freedesktop.portal.Inhibit")
	assert.Equal(t, idbus.ERROR_ACCESS_DENIED, idbus.ToDBusError(err).Name)
	_, err = h.b.Requests.Create(app, map[string]dbus.Variant{})
	assert.Equal(t, idbus.ERROR_ACCESS_DENIED, idbus.ToDBusError(err).Name)

	// a new call is refused even though the caller can be identified again
	_, derr := h.conn.Invoke(":1.9", idbus.DESKTOP_PATH, emailIface, "ComposeEmail", "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant("b"),
	})
	require.NotNil(t, derr)
	assert.Equal(t, idbus.ERROR_ACCESS_DENIED, derr.Name)

	assert.Equal(t, 0, h.b.Requests.Len())
	assert.Equal(t, 0, h.b.Sessions.Len())
	assert.Equal(t, 0, h.b.claims.Len())
	_, ok = h.b.Apps.Lookup(":1.9")
	assert.False(t, ok)

	h.compose(t, ":1.8", "a")
}

func TestCancelled(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context", context.Canceled, true},
		{"wrapped context", fmt.Errorf("call: %w", context.Canceled), true},
		{"portal cancelled", idbus.Cancelled("gone"), true},
		{"failed", idbus.Failed("boom"), false},
		{"timeout", &idbus.TimeoutError{Method: "m"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cancelled(tt.err))
		})
	}
}

func TestInvocationOptions(t *testing.T) {
	opts := map[string]dbus.Variant{"a": dbus.MakeVariant(1)}
	inv := &Invocation{Args: []interface{}{"", opts}}
	inv.info.OptionArgIndex = 1
	assert.Equal(t, opts, inv.Options())

	inv.info.OptionArgIndex = -1
	assert.Empty(t, inv.Options())
	inv.info.OptionArgIndex = 5
	assert.Empty(t, inv.Options())
}
