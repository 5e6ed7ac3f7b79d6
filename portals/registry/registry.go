// Package registry implements org.freedesktop.host.portal.Registry, which
// lets unsandboxed applications tell the broker who they are.
package registry

import (
	"github.com/b0bbywan/go-desktop-portal/broker"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

const Interface = idbus.HOST_PORTAL_PREFIX + "Registry"

type Portal struct {
	b *broker.Broker
}

func New(b *broker.Broker) *Portal {
	return &Portal{b: b}
}

func (p *Portal) Interface() string { return Interface }
func (p *Portal) Version() uint32   { return 1 }

func (p *Portal) Methods() map[string]broker.HandlerFunc {
	return map[string]broker.HandlerFunc{
		"Register": p.register,
	}
}

// register runs without the authorise hook: the caller identity must not
// be frozen before the app id is known.
func (p *Portal) register(inv *broker.Invocation) ([]interface{}, error) {
	appID, _ := inv.Args[0].(string)
	app, err := p.b.Apps.RegisterHost(inv.Ctx, inv.Sender, appID)
	if err != nil {
		logger.Info("[registry] %s could not register as %q: %v", inv.Sender, appID, err)
		return nil, err
	}
	logger.Debug("[registry] %s registered as %s", inv.Sender, app.ID())
	return []interface{}{}, nil
}
