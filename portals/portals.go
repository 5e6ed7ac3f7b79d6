// Package portals wires the frontend portals onto a broker.
package portals

import (
	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/portals/email"
	"github.com/b0bbywan/go-desktop-portal/portals/inhibit"
	"github.com/b0bbywan/go-desktop-portal/portals/registry"
	"github.com/b0bbywan/go-desktop-portal/portals/settings"
)

// Register exports every portal that has a backend. Portals without one
// are skipped.
func Register(b *broker.Broker) error {
	if err := b.Export(registry.New(b), broker.HostPortal); err != nil {
		return err
	}

	// New returns a nil pointer without a backend, checked before it
	// turns into a non-nil interface.
	var ports []broker.Portal
	if p := email.New(b); p != nil {
		ports = append(ports, p)
	} else {
		skipped(email.Interface)
	}
	if p := inhibit.New(b); p != nil {
		ports = append(ports, p)
	} else {
		skipped(inhibit.Interface)
	}
	if p := settings.New(b); p != nil {
		ports = append(ports, p)
	} else {
		skipped(settings.Interface)
	}

	for _, p := range ports {
		if err := b.Export(p, 0); err != nil {
			return err
		}
	}
	return nil
}

func skipped(iface string) {
	logger.Info("[portals] no backend for %s, skipping", iface)
}
