// Package portaltest runs portals against an in-memory bus, with
// scriptable backends, a permission store and caller identities.
package portaltest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/config"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/internal/dbustest"
	"github.com/b0bbywan/go-desktop-portal/portalconfig"
)

// Backend describes a portal backend installed for the test. Interfaces
// are short names like "Email".
type Backend struct {
	Name       string
	Unique     string
	Interfaces []string
}

// Test is the default backend, registered under "test".
var Test = Backend{Name: "org.freedesktop.impl.portal.desktop.test", Unique: ":1.50"}

// With returns a copy of be implementing ifaces.
func (be Backend) With(ifaces ...string) Backend {
	be.Interfaces = ifaces
	return be
}

func (be Backend) source() string {
	return be.Name[strings.LastIndex(be.Name, ".")+1:]
}

func (be Backend) portalFile() string {
	impls := make([]string, len(be.Interfaces))
	for i, iface := range be.Interfaces {
		impls[i] = idbus.IMPL_PORTAL_PREFIX + iface
	}
	return "[portal]\nDBusName=" + be.Name + "\nInterfaces=" + strings.Join(impls, ";") + "\n"
}

type Harness struct {
	Conn   *dbustest.Conn
	Broker *broker.Broker

	mu       sync.Mutex
	ids      map[string]string
	perms    map[string]map[string][]string
	handlers map[string]dbustest.HandlerFunc
}

// New starts a broker whose portals.conf prefers the given backends, in
// order. The broker is closed with the test.
func New(t testing.TB, backends ...Backend) *Harness {
	t.Helper()
	root := t.TempDir()
	origData, origConf := config.DATADIR, config.SYSCONFDIR
	config.DATADIR = filepath.Join(root, "usr", "share")
	config.SYSCONFDIR = filepath.Join(root, "etc")
	t.Cleanup(func() { config.DATADIR, config.SYSCONFDIR = origData, origConf })

	h := &Harness{
		Conn:     dbustest.New(),
		ids:      make(map[string]string),
		perms:    make(map[string]map[string][]string),
		handlers: make(map[string]dbustest.HandlerFunc),
	}

	portalDir := filepath.Join(root, "portals")
	require.NoError(t, os.MkdirAll(portalDir, 0o755))
	sources := make([]string, len(backends))
	owners := make(map[string]string, len(backends))
	for i, be := range backends {
		sources[i] = be.source()
		owners[be.Name] = be.Unique
		file := filepath.Join(portalDir, be.source()+".portal")
		require.NoError(t, os.WriteFile(file, []byte(be.portalFile()), 0o644))
		h.Conn.Handle(be.Name, h.route(be.Name))
	}
	conf := "[preferred]\ndefault=" + strings.Join(sources, ";") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(portalDir, "portals.conf"), []byte(conf), 0o644))

	h.Conn.Handle(idbus.DBUS_INTERFACE, func(_ context.Context, c dbustest.Call) *dbus.Call {
		if c.Method == idbus.BUS_GET_NAME_OWNER {
			if owner, ok := owners[c.Args[0].(string)]; ok {
				return dbustest.Reply(owner)
			}
		}
		return dbustest.ErrorReply("org.freedesktop.DBus.Error.NameHasNoOwner", "no owner")
	})
	h.Conn.Handle(idbus.PERMISSION_STORE_BUS_NAME, h.permissionStore)
	h.Conn.Handle(idbus.DOCUMENTS_BUS_NAME, func(context.Context, dbustest.Call) *dbus.Call {
		return dbustest.ErrorReply("org.freedesktop.DBus.Error.ServiceUnknown", "no document store")
	})

	resolver := portalconfig.New(config.Dirs{
		PortalDir:  portalDir,
		ConfigHome: filepath.Join(root, "home", ".config"),
	})
	b, err := broker.New(context.Background(), broker.Options{
		Conn:     h.Conn,
		Resolver: resolver,
		Apps:     sourceFunc(h.identify),
		Timeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(b.Close)
	h.Broker = b
	return h
}

type sourceFunc func(ctx context.Context, sender string) (*appinfo.AppInfo, error)

func (f sourceFunc) Identify(ctx context.Context, sender string) (*appinfo.AppInfo, error) {
	return f(ctx, sender)
}

func (h *Harness) identify(_ context.Context, sender string) (*appinfo.AppInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return appinfo.NewHost(sender, h.ids[sender]), nil
}

// SetAppID makes sender identify as the host app id.
func (h *Harness) SetAppID(sender, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids[sender] = id
}

// SetPermission stores values for appID in table/id.
func (h *Harness) SetPermission(table, id, appID string, values ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	row, ok := h.perms[table+"/"+id]
	if !ok {
		row = make(map[string][]string)
		h.perms[table+"/"+id] = row
	}
	row[appID] = values
}

func (h *Harness) permissionStore(_ context.Context, c dbustest.Call) *dbus.Call {
	if c.Method != idbus.PERMISSION_STORE_IFACE+".Lookup" {
		return dbustest.Reply()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	row, ok := h.perms[c.Args[0].(string)+"/"+c.Args[1].(string)]
	if !ok {
		return dbustest.ErrorReply(idbus.ERROR_NOT_FOUND, "no entry")
	}
	copied := make(map[string][]string, len(row))
	for k, v := range row {
		copied[k] = v
	}
	return dbustest.Reply(copied, dbus.MakeVariant(byte(0)))
}

// On scripts the reply of backend dest to method. Unscripted methods
// succeed with an empty reply.
func (h *Harness) On(dest, method string, fn dbustest.HandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[dest+" "+method] = fn
}

func (h *Harness) route(dest string) dbustest.HandlerFunc {
	return func(ctx context.Context, c dbustest.Call) *dbus.Call {
		h.mu.Lock()
		fn, ok := h.handlers[dest+" "+c.Method]
		h.mu.Unlock()
		if !ok {
			return dbustest.Reply()
		}
		return fn(ctx, c)
	}
}

// Call invokes a portal method on the desktop object as sender.
func (h *Harness) Call(sender, iface, method string, args ...interface{}) ([]interface{}, *dbus.Error) {
	return h.Conn.Invoke(sender, idbus.DESKTOP_PATH, iface, method, args...)
}

// Response waits for the Response signal of the Request at path.
func (h *Harness) Response(t testing.TB, path dbus.ObjectPath) (uint32, map[string]dbus.Variant) {
	t.Helper()
	var resp dbustest.Emitted
	require.True(t, dbustest.Eventually(func() bool {
		for _, e := range h.Conn.EmittedNamed(idbus.REQUEST_IFACE + ".Response") {
			if e.Path == path {
				resp = e
				return true
			}
		}
		return false
	}, 2*time.Second), "no response on %s", path)
	return resp.Body[0].(uint32), resp.Body[1].(map[string]dbus.Variant)
}

// Responded reports whether a Response was emitted on path.
func (h *Harness) Responded(path dbus.ObjectPath) bool {
	for _, e := range h.Conn.EmittedNamed(idbus.REQUEST_IFACE + ".Response") {
		if e.Path == path {
			return true
		}
	}
	return false
}

// Token builds the options of a call carrying handle_token.
func Token(token string) map[string]dbus.Variant {
	return map[string]dbus.Variant{"handle_token": dbus.MakeVariant(token)}
}
