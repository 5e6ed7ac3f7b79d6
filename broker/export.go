package broker

import (
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/b0bbywan/go-desktop-portal/documents"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/methodinfo"
	"github.com/b0bbywan/go-desktop-portal/request"
)

// Export publishes p at the desktop path. Unless flags has HostPortal,
// every call goes through the authorise hook first.
func (b *Broker) Export(p Portal, flags ExportFlags) error {
	iface := p.Interface()
	infos := methodinfo.ForInterface(iface)
	handlers := p.Methods()

	if len(infos) == 0 {
		return fmt.Errorf("broker: unknown interface %s", iface)
	}
	for _, mi := range infos {
		if _, ok := handlers[mi.Method]; !ok {
			return fmt.Errorf("broker: %s.%s has no handler", iface, mi.Method)
		}
	}
	if len(handlers) != len(infos) {
		for name := range handlers {
			if _, ok := methodinfo.Find(iface, name); !ok {
				return fmt.Errorf("broker: %s.%s is not a known method", iface, name)
			}
		}
	}

	table := make(map[string]interface{}, len(infos))
	for _, mi := range infos {
		fn, err := idbus.MakeMethod(mi.InSignature, mi.OutSignature, b.method(mi, handlers[mi.Method], flags))
		if err != nil {
			return fmt.Errorf("broker: %s.%s: %w", iface, mi.Method, err)
		}
		table[mi.Method] = fn
	}

	b.mu.Lock()
	if _, dup := b.portals[iface]; dup {
		b.mu.Unlock()
		return fmt.Errorf("broker: %s already exported", iface)
	}
	if err := b.conn.ExportMethodTable(table, idbus.DESKTOP_PATH, iface); err != nil {
		b.mu.Unlock()
		return err
	}
	b.portals[iface] = &exported{portal: p, flags: flags, methods: infos}
	node := b.introspectionLocked()
	b.mu.Unlock()

	if err := b.conn.Export(introspect.NewIntrospectable(node), idbus.DESKTOP_PATH, idbus.INTROSPECTABLE); err != nil {
		logger.Warn("[broker] cannot export introspection data: %v", err)
	}
	logger.Info("[broker] exported %s v%d", iface, p.Version())
	return nil
}

// method wraps h into the uniform handler every exported method uses.
func (b *Broker) method(mi methodinfo.MethodInfo, h HandlerFunc, flags ExportFlags) idbus.MethodHandler {
	return func(msg dbus.Message, args []interface{}) ([]interface{}, *dbus.Error) {
		inv := &Invocation{
			Ctx:       b.ctx,
			Sender:    idbus.Sender(msg),
			Interface: mi.Interface,
			Method:    mi.Method,
			Args:      args,
			Message:   msg,
			info:      mi,
		}
		defer func() {
			if !inv.keepFDs {
				documents.CloseFDs(documents.CollectFDs(args...))
			}
		}()
		b.Metrics.Call(mi.Interface, mi.Method)

		if flags&HostPortal == 0 {
			if derr := b.authorize(inv); derr != nil {
				return nil, derr
			}
		}

		out, err := h(inv)
		if err != nil {
			if inv.Request != nil {
				inv.Request.Discard()
			}
			derr := idbus.ToDBusError(err)
			logger.Debug("[broker] %s.%s from %s failed: %s", mi.Interface, mi.Method, inv.Sender, derr.Name)
			return nil, derr
		}
		if out == nil && inv.Request != nil {
			out = []interface{}{inv.Request.Path()}
		}
		return out, nil
	}
}

// authorize identifies the caller and, for methods answering through a
// Request, creates it before the method runs.
func (b *Broker) authorize(inv *Invocation) *dbus.Error {
	app, err := b.Apps.EnsureForSender(inv.Ctx, inv.Sender)
	if err == nil && b.claims.Departed(inv.Sender) {
		// identified after the disconnect was handled
		b.Apps.Delete(inv.Sender)
		err = &request.DepartedError{Sender: inv.Sender}
	}
	if err != nil {
		b.Metrics.Denied(inv.Interface)
		logger.Warn("[broker] rejecting %s.%s from %s: %v", inv.Interface, inv.Method, inv.Sender, err)
		return idbus.AccessDenied("Portal operation not allowed")
	}
	inv.App = app

	if inv.info.UsesRequest {
		req, err := b.Requests.Create(app, inv.Options())
		if err != nil {
			return idbus.ToDBusError(err)
		}
		inv.Request = req
	}
	return nil
}

func argsFor(sig, direction string) []introspect.Arg {
	types, err := idbus.SplitSignature(sig)
	if err != nil {
		return nil
	}
	out := make([]introspect.Arg, len(types))
	for i, t := range types {
		out[i] = introspect.Arg{Name: fmt.Sprintf("arg_%d", i), Type: t, Direction: direction}
	}
	return out
}

func (b *Broker) introspectionLocked() *introspect.Node {
	names := make([]string, 0, len(b.portals))
	for name := range b.portals {
		names = append(names, name)
	}
	sort.Strings(names)

	node := &introspect.Node{
		Name:       idbus.DESKTOP_PATH,
		Interfaces: []introspect.Interface{introspect.IntrospectData, prop.IntrospectData},
	}
	for _, name := range names {
		iface := introspect.Interface{
			Name:       name,
			Properties: []introspect.Property{{Name: "version", Type: "u", Access: "read"}},
		}
		for _, mi := range b.portals[name].methods {
			iface.Methods = append(iface.Methods, introspect.Method{
				Name: mi.Method,
				Args: append(argsFor(mi.InSignature, "in"), argsFor(mi.OutSignature, "out")...),
			})
		}
		node.Interfaces = append(node.Interfaces, iface)
	}
	return node
}

func (b *Broker) version(iface string) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.portals[iface]
	if !ok {
		return 0, false
	}
	return e.portal.Version(), true
}

// exportProperties serves the read only version property of every
// exported portal.
func (b *Broker) exportProperties() error {
	table := map[string]interface{}{
		"Get": func(iface, name string) (dbus.Variant, *dbus.Error) {
			v, ok := b.version(iface)
			if !ok || name != "version" {
				return dbus.Variant{}, dbus.NewError(idbus.ERROR_UNKNOWN_PROPERTY, []interface{}{name})
			}
			return dbus.MakeVariant(v), nil
		},
		"GetAll": func(iface string) (map[string]dbus.Variant, *dbus.Error) {
			v, ok := b.version(iface)
			if !ok {
				return map[string]dbus.Variant{}, nil
			}
			return map[string]dbus.Variant{"version": dbus.MakeVariant(v)}, nil
		},
		"Set": func(iface, name string, _ dbus.Variant) *dbus.Error {
			return dbus.NewError(idbus.ERROR_PROPERTY_READONLY, []interface{}{name})
		},
	}
	return b.conn.ExportMethodTable(table, idbus.DESKTOP_PATH, idbus.DBUS_PROP_IFACE)
}
