package settings

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/internal/dbustest"
	"github.com/b0bbywan/go-desktop-portal/internal/portaltest"
)

var other = portaltest.Backend{Name: "org.freedesktop.impl.portal.desktop.other", Unique: ":1.60"}

type values map[string]map[string]dbus.Variant

// serve answers ReadAll and Read from vals.
func serve(h *portaltest.Harness, dest string, vals values) {
	h.On(dest, implReadAll, func(context.Context, dbustest.Call) *dbus.Call {
		return dbustest.Reply(map[string]map[string]dbus.Variant(vals))
	})
	h.On(dest, implRead, func(_ context.Context, c dbustest.Call) *dbus.Call {
		ns, key := c.Args[0].(string), c.Args[1].(string)
		if v, ok := vals[ns][key]; ok {
			return dbustest.Reply(v)
		}
		return dbustest.ErrorReply(idbus.ERROR_NOT_FOUND, "Requested setting not found")
	})
}

func setup(t *testing.T) *portaltest.Harness {
	t.Helper()
	h := portaltest.New(t, portaltest.Test.With("Settings"), other.With("Settings"))
	serve(h, portaltest.Test.Name, values{
		"org.freedesktop.appearance": {
			"color-scheme": dbus.MakeVariant(uint32(1)),
		},
		"org.gnome.desktop.interface": {
			"font-name": dbus.MakeVariant("Cantarell 11"),
		},
	})
	serve(h, other.Name, values{
		"org.freedesktop.appearance": {
			"color-scheme": dbus.MakeVariant(uint32(2)),
			"accent-color": dbus.MakeVariant([]interface{}{0.1, 0.2, 0.3}),
		},
		"org.kde.kdeglobals": {
			"ColorScheme": dbus.MakeVariant("Breeze"),
		},
	})
	p := New(h.Broker)
	require.NotNil(t, p)
	require.NoError(t, h.Broker.Export(p, 0))
	return h
}

func TestNewWithoutBackend(t *testing.T) {
	h := portaltest.New(t, portaltest.Test.With("Email"))
	assert.Nil(t, New(h.Broker))
}

func TestReadAll(t *testing.T) {
	h := setup(t)
	out, derr := h.Call(":1.7", Interface, "ReadAll", []string{"org.freedesktop.*"})
	require.Nil(t, derr)

	got := out[0].(map[string]map[string]dbus.Variant)
	require.Contains(t, got, "org.freedesktop.appearance")
	// the first backend wins on conflicts
	assert.Equal(t, uint32(1), got["org.freedesktop.appearance"]["color-scheme"].Value())
	assert.Contains(t, got["org.freedesktop.appearance"], "accent-color")
	assert.Equal(t, "Breeze", got["org.kde.kdeglobals"]["ColorScheme"].Value())
	assert.Equal(t, "Cantarell 11", got["org.gnome.desktop.interface"]["font-name"].Value())

	calls := h.Conn.CallsTo(implReadAll)
	require.Len(t, calls, 2)
	assert.Equal(t, portaltest.Test.Name, calls[0].Dest)
	assert.Equal(t, other.Name, calls[1].Dest)
	assert.Equal(t, []string{"org.freedesktop.*"}, calls[0].Args[0])
}

func TestReadAllSkipsFailingBackend(t *testing.T) {
	h := setup(t)
	h.On(portaltest.Test.Name, implReadAll, func(context.Context, dbustest.Call) *dbus.Call {
		return dbustest.ErrorReply(idbus.ERROR_FAILED, "broken")
	})
	out, derr := h.Call(":1.7", Interface, "ReadAll", []string{})
	require.Nil(t, derr)
	got := out[0].(map[string]map[string]dbus.Variant)
	assert.Equal(t, uint32(2), got["org.freedesktop.appearance"]["color-scheme"].Value())
	assert.NotContains(t, got, "org.gnome.desktop.interface")
}

func TestMerge(t *testing.T) {
	dst := values{"a": {"x": dbus.MakeVariant(1)}}
	merge(dst, values{
		"a": {"x": dbus.MakeVariant(2), "y": dbus.MakeVariant(3)},
		"b": {"z": dbus.MakeVariant(4)},
	})
	assert.Equal(t, values{
		"a": {"x": dbus.MakeVariant(1), "y": dbus.MakeVariant(3)},
		"b": {"z": dbus.MakeVariant(4)},
	}, dst)
}

func TestReadOne(t *testing.T) {
	tests := []struct {
		ns, key string
		want    interface{}
	}{
		{"org.freedesktop.appearance", "color-scheme", uint32(1)},
		{"org.kde.kdeglobals", "ColorScheme", "Breeze"},
		{"org.gnome.desktop.interface", "font-name", "Cantarell 11"},
	}
	h := setup(t)
	for _, tt := range tests {
		t.Run(tt.ns+"/"+tt.key, func(t *testing.T) {
			out, derr := h.Call(":1.7", Interface, "ReadOne", tt.ns, tt.key)
			require.Nil(t, derr)
			assert.Equal(t, tt.want, out[0].(dbus.Variant).Value())

			out, derr = h.Call(":1.7", Interface, "Read", tt.ns, tt.key)
			require.Nil(t, derr)
			inner, ok := out[0].(dbus.Variant).Value().(dbus.Variant)
			require.True(t, ok, "Read boxes the value twice")
			assert.Equal(t, tt.want, inner.Value())
		})
	}
}

func TestReadNotFound(t *testing.T) {
	h := setup(t)
	for _, method := range []string{"Read", "ReadOne"} {
		_, derr := h.Call(":1.7", Interface, method, "org.example", "missing")
		require.NotNil(t, derr)
		assert.Equal(t, idbus.ERROR_NOT_FOUND, derr.Name)
		assert.Equal(t, "Requested setting not found", derr.Body[0])
	}
}

func TestSettingChanged(t *testing.T) {
	h := setup(t)
	require.NoError(t, h.Broker.Start())

	send := func(sender string, value interface{}) {
		h.Conn.Deliver(&dbus.Signal{
			Sender: sender,
			Path:   idbus.DESKTOP_PATH,
			Name:   implSettingChanged,
			Body:   []interface{}{"org.freedesktop.appearance", "color-scheme", dbus.MakeVariant(value)},
		})
	}
	send(":1.99", uint32(0))
	send(other.Unique, uint32(2))

	require.True(t, dbustest.Eventually(func() bool { return len(h.Conn.EmittedNamed(signalChanged)) > 0 }, time.Second))
	time.Sleep(20 * time.Millisecond)
	changed := h.Conn.EmittedNamed(signalChanged)
	require.Len(t, changed, 1)
	assert.Empty(t, changed[0].Dest)
	assert.Equal(t, dbus.ObjectPath(idbus.DESKTOP_PATH), changed[0].Path)
	assert.Equal(t, []interface{}{"org.freedesktop.appearance", "color-scheme", dbus.MakeVariant(uint32(2))}, changed[0].Body)
}
