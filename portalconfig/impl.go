package portalconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mvo5/goconfigparser"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

const portalGroup = "portal"

// PortalImpl is a backend descriptor read from a .portal file.
type PortalImpl struct {
	Source     string   `json:"source"`
	DBusName   string   `json:"dbus_name"`
	Interfaces []string `json:"interfaces"`
	UseIn      []string `json:"use_in,omitempty"`
}

// SupportsInterface reports whether the backend implements iface, given
// either as a portal or an impl interface name.
func (p *PortalImpl) SupportsInterface(iface string) bool {
	iface = ImplInterface(iface)
	for _, i := range p.Interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

func (p *PortalImpl) usedIn(desktop string) bool {
	for _, d := range p.UseIn {
		if strings.EqualFold(d, desktop) {
			return true
		}
	}
	return false
}

// ImplInterface maps org.freedesktop.portal.X to org.freedesktop.impl.portal.X.
// Other names are returned unchanged.
func ImplInterface(iface string) string {
	if strings.HasPrefix(iface, idbus.PORTAL_PREFIX) {
		return idbus.IMPL_PORTAL_PREFIX + strings.TrimPrefix(iface, idbus.PORTAL_PREFIX)
	}
	return iface
}

// ConfigError reports an unusable configuration file.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// splitList parses a semicolon separated keyfile list.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parsePortalFile(path string) (*PortalImpl, error) {
	cfg := goconfigparser.New()
	if err := cfg.ReadFile(path); err != nil {
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}

	name, err := cfg.Get(portalGroup, "DBusName")
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "missing DBusName"}
	}
	name = strings.TrimSpace(name)
	if !idbus.IsBusName(name) || strings.HasPrefix(name, ":") {
		return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("invalid DBusName %q", name)}
	}

	rawIfaces, err := cfg.Get(portalGroup, "Interfaces")
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "missing Interfaces"}
	}
	ifaces := splitList(rawIfaces)
	for _, iface := range ifaces {
		if !idbus.IsInterfaceName(iface) || !strings.HasPrefix(iface, idbus.IMPL_PORTAL_PREFIX) {
			return nil, &ConfigError{Path: path, Reason: fmt.Sprintf("invalid interface %q", iface)}
		}
	}

	impl := &PortalImpl{
		Source:     strings.TrimSuffix(filepath.Base(path), ".portal"),
		DBusName:   name,
		Interfaces: ifaces,
	}
	if useIn, err := cfg.Get(portalGroup, "UseIn"); err == nil {
		impl.UseIn = splitList(useIn)
	}
	return impl, nil
}

// loadImpls reads every .portal file from dirs. A source seen in an
// earlier directory shadows later ones.
func loadImpls(dirs []string) []*PortalImpl {
	seen := map[string]bool{}
	var impls []*PortalImpl

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("[portalconfig] cannot read %s: %v", dir, err)
			}
			continue
		}
		logger.Debug("[portalconfig] searching for .portal files in %s", dir)

		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".portal") {
				continue
			}
			source := strings.TrimSuffix(entry.Name(), ".portal")
			if seen[source] {
				logger.Debug("[portalconfig] skipping duplicate source %s in %s", source, dir)
				continue
			}
			impl, err := parsePortalFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				logger.Warn("[portalconfig] error loading %v", err)
				continue
			}
			seen[source] = true
			logger.Debug("[portalconfig] found portal %s (%s) for %s",
				impl.Source, impl.DBusName, strings.Join(impl.Interfaces, ", "))
			impls = append(impls, impl)
		}
	}
	return impls
}

// sortImpls orders impls by the first current desktop listed in their
// UseIn, then by source name.
func sortImpls(impls []*PortalImpl, desktops []string) {
	rank := func(p *PortalImpl) int {
		for i, d := range desktops {
			if p.usedIn(d) {
				return i
			}
		}
		return len(desktops)
	}
	sort.SliceStable(impls, func(i, j int) bool {
		ri, rj := rank(impls[i]), rank(impls[j])
		if ri != rj {
			return ri < rj
		}
		return impls[i].Source < impls[j].Source
	})
}
