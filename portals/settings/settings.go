// Package settings implements org.freedesktop.portal.Settings. Values
// come from every configured backend, the first one knowing a key wins.
package settings

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/broker"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/portalconfig"
)

const (
	Interface = idbus.PORTAL_PREFIX + "Settings"

	implIface          = idbus.IMPL_PORTAL_PREFIX + "Settings"
	implReadAll        = implIface + ".ReadAll"
	implRead           = implIface + ".Read"
	implSettingChanged = implIface + ".SettingChanged"
	signalChanged      = Interface + ".SettingChanged"
)

type Portal struct {
	b *broker.Broker
}

// New returns nil when no backend implements the interface.
func New(b *broker.Broker) *Portal {
	if len(b.Resolver.FindAllImpls(Interface)) == 0 {
		return nil
	}
	p := &Portal{b: b}
	if err := b.OnImplSignal(implSettingChanged, p.settingChanged); err != nil {
		logger.Warn("[settings] cannot watch %s: %v", implSettingChanged, err)
	}
	return p
}

func (p *Portal) Interface() string { return Interface }
func (p *Portal) Version() uint32   { return 2 }

func (p *Portal) Methods() map[string]broker.HandlerFunc {
	return map[string]broker.HandlerFunc{
		"ReadAll": p.readAll,
		"Read":    p.read,
		"ReadOne": p.readOne,
	}
}

// impls is evaluated per call so a reloaded portals.conf applies.
func (p *Portal) impls() []*portalconfig.PortalImpl {
	return p.b.Resolver.FindAllImpls(Interface)
}

func (p *Portal) readAll(inv *broker.Invocation) ([]interface{}, error) {
	namespaces, _ := inv.Args[0].([]string)
	if namespaces == nil {
		namespaces = []string{}
	}

	merged := map[string]map[string]dbus.Variant{}
	for _, impl := range p.impls() {
		var values map[string]map[string]dbus.Variant
		call := p.b.CallImpl(inv.Ctx, impl.DBusName, implReadAll, namespaces)
		if call.Err != nil {
			logger.Warn("[settings] ReadAll on %s failed: %v", impl.DBusName, call.Err)
			continue
		}
		if err := call.Store(&values); err != nil {
			logger.Warn("[settings] invalid ReadAll reply from %s: %v", impl.DBusName, err)
			continue
		}
		merge(merged, values)
	}
	return []interface{}{merged}, nil
}

// merge adds the keys of src that dst does not have yet.
func merge(dst, src map[string]map[string]dbus.Variant) {
	for ns, keys := range src {
		have, ok := dst[ns]
		if !ok {
			have = make(map[string]dbus.Variant, len(keys))
			dst[ns] = have
		}
		for k, v := range keys {
			if _, dup := have[k]; !dup {
				have[k] = v
			}
		}
	}
}

// lookup asks each backend in turn for namespace/key.
func (p *Portal) lookup(ctx context.Context, namespace, key string) (dbus.Variant, error) {
	for _, impl := range p.impls() {
		var value dbus.Variant
		call := p.b.CallImpl(ctx, impl.DBusName, implRead, namespace, key)
		if call.Err != nil {
			if !idbus.IsErrorName(call.Err, idbus.ERROR_NOT_FOUND) {
				logger.Warn("[settings] Read on %s failed: %v", impl.DBusName, call.Err)
			}
			continue
		}
		if err := call.Store(&value); err != nil {
			logger.Warn("[settings] invalid Read reply from %s: %v", impl.DBusName, err)
			continue
		}
		return value, nil
	}
	return dbus.Variant{}, idbus.NotFound("Requested setting not found")
}

// read is the deprecated variant, its value is boxed twice.
func (p *Portal) read(inv *broker.Invocation) ([]interface{}, error) {
	namespace, _ := inv.Args[0].(string)
	key, _ := inv.Args[1].(string)
	value, err := p.lookup(inv.Ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	return []interface{}{dbus.MakeVariant(value)}, nil
}

func (p *Portal) readOne(inv *broker.Invocation) ([]interface{}, error) {
	namespace, _ := inv.Args[0].(string)
	key, _ := inv.Args[1].(string)
	value, err := p.lookup(inv.Ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	return []interface{}{value}, nil
}

func (p *Portal) settingChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	namespace, _ := sig.Body[0].(string)
	key, _ := sig.Body[1].(string)
	value, ok := sig.Body[2].(dbus.Variant)
	if !ok {
		return
	}

	trusted := false
	for _, impl := range p.impls() {
		if p.b.FromBackend(sig.Sender, impl.DBusName) {
			trusted = true
			break
		}
	}
	if !trusted {
		logger.Debug("[settings] ignoring SettingChanged from %s", sig.Sender)
		return
	}
	if err := p.b.Conn().Emit(idbus.DESKTOP_PATH, signalChanged, namespace, key, value); err != nil {
		logger.Warn("[settings] cannot emit SettingChanged: %v", err)
	}
}
