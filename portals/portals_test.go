package portals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/internal/portaltest"
)

func exported(h *portaltest.Harness) []string {
	var out []string
	for _, p := range h.Broker.Portals() {
		out = append(out, p.Interface)
	}
	return out
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name   string
		ifaces []string
		want   []string
	}{
		{
			name:   "all backends",
			ifaces: []string{"Email", "Inhibit", "Settings"},
			want: []string{
				"org.freedesktop.host.portal.Registry",
				"org.freedesktop.portal.Email",
				"org.freedesktop.portal.Inhibit",
				"org.freedesktop.portal.Settings",
			},
		},
		{
			name:   "email only",
			ifaces: []string{"Email"},
			want: []string{
				"org.freedesktop.host.portal.Registry",
				"org.freedesktop.portal.Email",
			},
		},
		{
			name:   "no backend",
			ifaces: []string{"FileChooser"},
			want:   []string{"org.freedesktop.host.portal.Registry"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := portaltest.New(t, portaltest.Test.With(tt.ifaces...))
			require.NoError(t, Register(h.Broker))
			assert.Equal(t, tt.want, exported(h))
			for _, iface := range tt.want {
				assert.True(t, h.Conn.Exported(idbus.DESKTOP_PATH, iface), iface)
			}
		})
	}
}

func TestRegisterTwice(t *testing.T) {
	h := portaltest.New(t, portaltest.Test.With("Email"))
	require.NoError(t, Register(h.Broker))
	assert.Error(t, Register(h.Broker))
}
