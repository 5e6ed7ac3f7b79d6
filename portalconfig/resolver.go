package portalconfig

import (
	"sync"

	"github.com/b0bbywan/go-desktop-portal/config"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

// GtkFallback is the backend used when nothing else is configured.
const GtkFallback = "org.freedesktop.impl.portal.desktop.gtk"

// Resolver holds the discovered backends and the active preferences.
type Resolver struct {
	dirs     config.Dirs
	desktops []string
	impls    []*PortalImpl

	mu     sync.RWMutex
	config *PortalConfig
}

// New discovers .portal files and loads portals.conf for the environment
// described by dirs.
func New(dirs config.Dirs) *Resolver {
	desktops := DesktopNames(dirs.CurrentDesktop)
	impls := loadImpls(portalDirs(dirs))
	sortImpls(impls, desktops)

	r := &Resolver{
		dirs:     dirs,
		desktops: desktops,
		impls:    impls,
	}
	r.config = loadConfig(configDirs(dirs), desktops)
	logger.Info("[portalconfig] %d backends found, desktops: %v", len(impls), desktops)
	return r
}

// Reload re-reads portals.conf. The set of backends is not rescanned.
func (r *Resolver) Reload() {
	pc := loadConfig(configDirs(r.dirs), r.desktops)
	r.mu.Lock()
	r.config = pc
	r.mu.Unlock()
	logger.Info("[portalconfig] configuration reloaded")
}

// Desktops returns the current desktop names, in preference order.
func (r *Resolver) Desktops() []string {
	return append([]string(nil), r.desktops...)
}

// Impls returns every discovered backend, in resolution order.
func (r *Resolver) Impls() []*PortalImpl {
	return append([]*PortalImpl(nil), r.impls...)
}

// Config returns the active portals.conf, or nil when none was found.
func (r *Resolver) Config() *PortalConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

func (r *Resolver) bySource(source string) *PortalImpl {
	for _, impl := range r.impls {
		if impl.Source == source {
			return impl
		}
	}
	return nil
}

// PrefersNone reports whether the configuration disables iface.
func (r *Resolver) PrefersNone(iface string) bool {
	return prefersNone(r.Config(), ImplInterface(iface))
}

func prefersNone(pc *PortalConfig, iface string) bool {
	if pc == nil {
		return false
	}
	if pref := pc.preference(iface); pref != nil {
		return contains(pref.Impls, noImpl)
	}
	return contains(pc.Default, noImpl)
}

// matching expands a preference list into the backends it selects.
func (r *Resolver) matching(list []string, iface string) []*PortalImpl {
	var out []*PortalImpl
	for _, name := range list {
		if name == anyImpl {
			for _, impl := range r.impls {
				if impl.SupportsInterface(iface) {
					out = append(out, impl)
				}
			}
			continue
		}
		impl := r.bySource(name)
		switch {
		case impl == nil:
			logger.Info("[portalconfig] requested backend %s not found for %s", name, iface)
		case !impl.SupportsInterface(iface):
			logger.Info("[portalconfig] requested backend %s does not support %s", name, iface)
		default:
			out = append(out, impl)
		}
	}
	return out
}

func (r *Resolver) preferred(pc *PortalConfig, iface string) []*PortalImpl {
	if pc == nil {
		return nil
	}
	if pref := pc.preference(iface); pref != nil {
		if impls := r.matching(pref.Impls, iface); len(impls) > 0 {
			return impls
		}
	}
	return r.matching(pc.Default, iface)
}

func (r *Resolver) legacy(iface string) []*PortalImpl {
	var out []*PortalImpl
	for _, desktop := range r.desktops {
		for _, impl := range r.impls {
			if impl.usedIn(desktop) && impl.SupportsInterface(iface) {
				out = append(out, impl)
			}
		}
	}
	return out
}

func (r *Resolver) gtk(iface string) *PortalImpl {
	for _, impl := range r.impls {
		if impl.DBusName == GtkFallback && impl.SupportsInterface(iface) {
			return impl
		}
	}
	return nil
}

// FindImpl returns the backend serving iface, or nil. iface may be given
// as a portal or an impl interface name.
func (r *Resolver) FindImpl(iface string) *PortalImpl {
	iface = ImplInterface(iface)
	pc := r.Config()

	if prefersNone(pc, iface) {
		logger.Debug("[portalconfig] %s disabled by configuration", iface)
		return nil
	}
	if impls := r.preferred(pc, iface); len(impls) > 0 {
		logger.Debug("[portalconfig] using %s for %s (config)", impls[0].Source, iface)
		return impls[0]
	}
	if impls := r.legacy(iface); len(impls) > 0 {
		logger.Warn("[portalconfig] choosing %s for %s via the deprecated UseIn key", impls[0].Source, iface)
		logger.Warn("[portalconfig] the preferred method to match portal implementations to desktop environments is to use the portals.conf(5) configuration file")
		return impls[0]
	}
	if impl := r.gtk(iface); impl != nil {
		logger.Info("[portalconfig] falling back to %s for %s", impl.Source, iface)
		return impl
	}
	logger.Debug("[portalconfig] no backend found for %s", iface)
	return nil
}

// FindAllImpls returns every backend selected for iface, deduplicated, in
// preference order.
func (r *Resolver) FindAllImpls(iface string) []*PortalImpl {
	iface = ImplInterface(iface)
	pc := r.Config()

	if prefersNone(pc, iface) {
		return nil
	}
	impls := r.preferred(pc, iface)
	if len(impls) == 0 {
		impls = r.legacy(iface)
	}
	if len(impls) == 0 {
		if impl := r.gtk(iface); impl != nil {
			impls = []*PortalImpl{impl}
		}
	}
	return dedup(impls)
}

func dedup(impls []*PortalImpl) []*PortalImpl {
	seen := map[*PortalImpl]bool{}
	out := impls[:0:0]
	for _, impl := range impls {
		if !seen[impl] {
			seen[impl] = true
			out = append(out, impl)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
