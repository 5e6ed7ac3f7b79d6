package portalconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b0bbywan/go-desktop-portal/config"
)

const (
	gtkPortal = `[portal]
DBusName=org.freedesktop.impl.portal.desktop.gtk
Interfaces=org.freedesktop.impl.portal.FileChooser;org.freedesktop.impl.portal.Email;org.freedesktop.impl.portal.Settings;
UseIn=gnome
`
	gnomePortal = `[portal]
DBusName=org.freedesktop.impl.portal.desktop.gnome
Interfaces=org.freedesktop.impl.portal.FileChooser;org.freedesktop.impl.portal.Settings;org.freedesktop.impl.portal.Inhibit
UseIn=gnome
`
	kdePortal = `[portal]
DBusName=org.freedesktop.impl.portal.desktop.kde
Interfaces=org.freedesktop.impl.portal.FileChooser;org.freedesktop.impl.portal.Settings
UseIn=KDE
`
)

type fixture struct {
	dirs config.Dirs
	root string
}

func newFixture(t *testing.T, desktop string) *fixture {
	t.Helper()
	root := t.TempDir()

	origData, origConf := config.DATADIR, config.SYSCONFDIR
	config.DATADIR = filepath.Join(root, "usr", "share")
	config.SYSCONFDIR = filepath.Join(root, "etc")
	t.Cleanup(func() {
		config.DATADIR, config.SYSCONFDIR = origData, origConf
	})

	return &fixture{
		root: root,
		dirs: config.Dirs{
			CurrentDesktop: desktop,
			ConfigHome:     filepath.Join(root, "home", ".config"),
			ConfigDirs:     []string{filepath.Join(root, "etc", "xdg")},
			DataHome:       filepath.Join(root, "home", ".local", "share"),
			DataDirs:       []string{filepath.Join(root, "usr", "local", "share")},
		},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) portal(t *testing.T, name, content string) {
	writeFile(t, filepath.Join(config.DATADIR, subdir, "portals", name+".portal"), content)
}

func (f *fixture) userConf(t *testing.T, name, content string) {
	writeFile(t, filepath.Join(f.dirs.ConfigHome, subdir, name), content)
}

func sources(impls []*PortalImpl) []string {
	out := make([]string, 0, len(impls))
	for _, impl := range impls {
		out = append(out, impl.Source)
	}
	return out
}

func TestDesktopNames(t *testing.T) {
	tests := map[string][]string{
		"GNOME":             {"gnome"},
		"ubuntu:GNOME":      {"ubuntu", "gnome"},
		"KDE::x-Cinnamon_2": {"kde", "x-cinnamon_2"},
		"bad/name:ok":       {"ok"},
		"":                  nil,
		"with space:Sway":   {"sway"},
	}
	for in, want := range tests {
		assert.Equal(t, want, DesktopNames(in), in)
	}
}

func TestParsePortalFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		ok      bool
	}{
		{"valid", gtkPortal, true},
		{"missing name", "[portal]\nInterfaces=org.freedesktop.impl.portal.Email\n", false},
		{"bad bus name", "[portal]\nDBusName=org\nInterfaces=org.freedesktop.impl.portal.Email\n", false},
		{"wrong prefix", "[portal]\nDBusName=org.example.Impl\nInterfaces=org.example.Email\n", false},
		{"missing interfaces", "[portal]\nDBusName=org.example.Impl\n", false},
		{"no group", "DBusName=org.example.Impl\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "x.portal")
			writeFile(t, path, tt.content)
			impl, err := parsePortalFile(path)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "x", impl.Source)
			assert.Equal(t, GtkFallback, impl.DBusName)
			assert.Equal(t, []string{
				"org.freedesktop.impl.portal.FileChooser",
				"org.freedesktop.impl.portal.Email",
				"org.freedesktop.impl.portal.Settings",
			}, impl.Interfaces)
			assert.Equal(t, []string{"gnome"}, impl.UseIn)
			assert.True(t, impl.SupportsInterface("org.freedesktop.portal.Email"))
			assert.True(t, impl.SupportsInterface("org.freedesktop.impl.portal.Email"))
			assert.False(t, impl.SupportsInterface("org.freedesktop.portal.Inhibit"))
		})
	}
}

func TestDiscoverySkipsDuplicatesAndSorts(t *testing.T) {
	f := newFixture(t, "KDE")
	f.portal(t, "gtk", gtkPortal)
	f.portal(t, "gnome", gnomePortal)
	f.portal(t, "kde", kdePortal)
	f.portal(t, "broken", "[portal]\nDBusName=nope\n")
	// A user-level copy shadows the system one.
	writeFile(t, filepath.Join(f.dirs.DataHome, subdir, "portals", "gnome.portal"),
		"[portal]\nDBusName=org.example.UserGnome\nInterfaces=org.freedesktop.impl.portal.Email\n")

	r := New(f.dirs)
	assert.Equal(t, []string{"kde", "gnome", "gtk"}, sources(r.Impls()))

	for _, impl := range r.Impls() {
		if impl.Source == "gnome" {
			assert.Equal(t, "org.example.UserGnome", impl.DBusName)
		}
	}
}

func TestPortalDirOverridesSearchPath(t *testing.T) {
	f := newFixture(t, "")
	f.portal(t, "gtk", gtkPortal)
	f.dirs.PortalDir = filepath.Join(f.root, "override")
	writeFile(t, filepath.Join(f.dirs.PortalDir, "kde.portal"), kdePortal)

	r := New(f.dirs)
	assert.Equal(t, []string{"kde"}, sources(r.Impls()))
}

func TestMissingPortalDir(t *testing.T) {
	f := newFixture(t, "GNOME")
	r := New(f.dirs)
	assert.Empty(t, r.Impls())
	assert.Nil(t, r.FindImpl("org.freedesktop.portal.Email"))
	assert.Nil(t, r.Config())
}

func TestFindImpl(t *testing.T) {
	tests := []struct {
		name    string
		desktop string
		conf    string
		iface   string
		want    string
	}{
		{
			name:  "explicit none",
			conf:  "[preferred]\norg.freedesktop.portal.FileChooser=none\n",
			iface: "org.freedesktop.portal.FileChooser",
			want:  "",
		},
		{
			name:  "default none",
			conf:  "[preferred]\ndefault=none\n",
			iface: "org.freedesktop.impl.portal.Settings",
			want:  "",
		},
		{
			name:  "interface entry overrides default none",
			conf:  "[preferred]\ndefault=none\norg.freedesktop.impl.portal.Settings=kde\n",
			iface: "org.freedesktop.impl.portal.Settings",
			want:  "kde",
		},
		{
			name:  "explicit list skips unknown and unsupported",
			conf:  "[preferred]\norg.freedesktop.impl.portal.Email=missing;kde;gtk\n",
			iface: "org.freedesktop.portal.Email",
			want:  "gtk",
		},
		{
			name:  "default list",
			conf:  "[preferred]\ndefault=gnome;gtk\n",
			iface: "org.freedesktop.portal.FileChooser",
			want:  "gnome",
		},
		{
			name:  "star picks first supporting",
			conf:  "[preferred]\ndefault=*\n",
			iface: "org.freedesktop.portal.Inhibit",
			want:  "gnome",
		},
		{
			name:    "legacy UseIn",
			desktop: "KDE",
			iface:   "org.freedesktop.portal.FileChooser",
			want:    "kde",
		},
		{
			name:  "gtk fallback",
			iface: "org.freedesktop.portal.Email",
			want:  "gtk",
		},
		{
			name:  "nothing",
			iface: "org.freedesktop.portal.Wallpaper",
			want:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.desktop)
			f.portal(t, "gtk", gtkPortal)
			f.portal(t, "gnome", gnomePortal)
			f.portal(t, "kde", kdePortal)
			if tt.conf != "" {
				f.userConf(t, "portals.conf", tt.conf)
			}
			r := New(f.dirs)

			impl := r.FindImpl(tt.iface)
			if tt.want == "" {
				assert.Nil(t, impl)
				return
			}
			require.NotNil(t, impl)
			assert.Equal(t, tt.want, impl.Source)

			// resolution is deterministic
			assert.Same(t, impl, r.FindImpl(tt.iface))
		})
	}
}

func TestDesktopSpecificConfigWins(t *testing.T) {
	f := newFixture(t, "ubuntu:GNOME")
	f.portal(t, "gtk", gtkPortal)
	f.portal(t, "gnome", gnomePortal)
	f.userConf(t, "portals.conf", "[preferred]\ndefault=gtk\n")
	f.userConf(t, "gnome-portals.conf", "[preferred]\ndefault=gnome\n")

	r := New(f.dirs)
	require.NotNil(t, r.Config())
	assert.Equal(t, "gnome-portals.conf", filepath.Base(r.Config().Path))
	assert.Equal(t, "gnome", r.FindImpl("org.freedesktop.portal.FileChooser").Source)
}

func TestConfigSearchOrder(t *testing.T) {
	f := newFixture(t, "")
	f.portal(t, "gtk", gtkPortal)
	f.portal(t, "gnome", gnomePortal)
	writeFile(t, filepath.Join(config.SYSCONFDIR, subdir, "portals.conf"), "[preferred]\ndefault=gnome\n")
	writeFile(t, filepath.Join(f.dirs.ConfigDirs[0], subdir, "portals.conf"), "[preferred]\ndefault=gtk\n")

	r := New(f.dirs)
	assert.Equal(t, "gtk", r.FindImpl("org.freedesktop.portal.FileChooser").Source)
}

func TestFindAllImpls(t *testing.T) {
	f := newFixture(t, "GNOME")
	f.portal(t, "gtk", gtkPortal)
	f.portal(t, "gnome", gnomePortal)
	f.portal(t, "kde", kdePortal)
	f.userConf(t, "portals.conf", "[preferred]\norg.freedesktop.impl.portal.Settings=kde;*\n")

	r := New(f.dirs)
	assert.Equal(t, []string{"kde", "gnome", "gtk"}, sources(r.FindAllImpls("org.freedesktop.portal.Settings")))
	assert.False(t, r.PrefersNone("org.freedesktop.portal.Wallpaper"))
}

func TestFindAllImplsLegacyAndNone(t *testing.T) {
	f := newFixture(t, "GNOME")
	f.portal(t, "gtk", gtkPortal)
	f.portal(t, "gnome", gnomePortal)
	r := New(f.dirs)
	assert.Equal(t, []string{"gnome", "gtk"}, sources(r.FindAllImpls("org.freedesktop.portal.Settings")))

	f.userConf(t, "portals.conf", "[preferred]\ndefault=none\n")
	r.Reload()
	assert.Empty(t, r.FindAllImpls("org.freedesktop.portal.Settings"))
	assert.True(t, r.PrefersNone("org.freedesktop.portal.Settings"))
}

func TestWatcherReloadsConfig(t *testing.T) {
	origDelay := reloadDelay
	reloadDelay = 10 * time.Millisecond
	defer func() { reloadDelay = origDelay }()

	f := newFixture(t, "")
	f.portal(t, "gtk", gtkPortal)
	f.portal(t, "gnome", gnomePortal)
	f.userConf(t, "portals.conf", "[preferred]\ndefault=gtk\n")

	r := New(f.dirs)
	require.Equal(t, "gtk", r.FindImpl("org.freedesktop.portal.FileChooser").Source)

	reloaded := make(chan struct{}, 10)
	w, err := r.Watch(func() { reloaded <- struct{}{} })
	require.NoError(t, err)
	defer func() { assert.NoError(t, w.Stop()) }()

	f.userConf(t, "portals.conf", "[preferred]\ndefault=gnome\n")

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
	assert.Equal(t, "gnome", r.FindImpl("org.freedesktop.portal.FileChooser").Source)
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, isConfigFile("/x/portals.conf"))
	assert.True(t, isConfigFile("/x/gnome-portals.conf"))
	assert.False(t, isConfigFile("/x/portals.conf.swp"))
	assert.False(t, isConfigFile("/x/gtk.portal"))
}
