package broker

import (
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/events"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

const (
	signalNameOwnerChanged = idbus.DBUS_INTERFACE + "." + idbus.SIGNAL_NAME_OWNER_CHANGED
	signalNameLost         = idbus.DBUS_INTERFACE + "." + idbus.SIGNAL_NAME_LOST
	signalImplClosed       = idbus.IMPL_SESSION_IFACE + ".Closed"
)

func splitMember(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// OnImplSignal runs fn for every signal name (interface.Member) emitted
// by a backend. fn runs on the signal loop and must not block; use
// FromBackend to check the sender.
func (b *Broker) OnImplSignal(name string, fn func(*dbus.Signal)) error {
	b.sigMu.Lock()
	_, known := b.implSignals[name]
	b.implSignals[name] = append(b.implSignals[name], fn)
	started := b.started
	b.sigMu.Unlock()

	if started && !known {
		return b.addMatch(name)
	}
	return nil
}

func (b *Broker) addMatch(name string) error {
	iface, member := splitMember(name)
	return b.conn.AddMatchSignal(dbus.WithMatchInterface(iface), dbus.WithMatchMember(member))
}

// Start subscribes to the bus signals the broker reacts to and starts
// the signal loop.
func (b *Broker) Start() error {
	err := b.conn.AddMatchSignal(
		dbus.WithMatchSender(idbus.DBUS_INTERFACE),
		dbus.WithMatchObjectPath(idbus.DBUS_PATH),
		dbus.WithMatchInterface(idbus.DBUS_INTERFACE),
		dbus.WithMatchMember(idbus.SIGNAL_NAME_OWNER_CHANGED),
	)
	if err != nil {
		return err
	}
	if err := b.addMatch(signalImplClosed); err != nil {
		return err
	}

	if err := b.matchImplSignals(); err != nil {
		return err
	}

	// owner changes queued while priming are applied by the loop
	b.conn.Signal(b.signals)
	b.primeOwners()
	b.tomb.Go(b.loop)
	logger.Info("[broker] listening for bus signals")
	return nil
}

func (b *Broker) matchImplSignals() error {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	for name := range b.implSignals {
		if err := b.addMatch(name); err != nil {
			return err
		}
	}
	b.started = true
	return nil
}

// NameLost is closed once another process takes over the portal name.
func (b *Broker) NameLost() <-chan struct{} {
	return b.nameLost
}

func (b *Broker) loop() error {
	for {
		select {
		case <-b.tomb.Dying():
			return nil
		case sig, ok := <-b.signals:
			if !ok {
				return nil
			}
			b.handleSignal(sig)
		}
	}
}

func (b *Broker) handleSignal(sig *dbus.Signal) {
	switch sig.Name {
	case signalNameOwnerChanged, signalNameLost:
		if sig.Sender != idbus.DBUS_INTERFACE {
			logger.Warn("[broker] ignoring %s sent by %s", sig.Name, sig.Sender)
			return
		}
	}

	switch sig.Name {
	case signalNameOwnerChanged:
		b.handleNameOwnerChanged(sig)
	case signalNameLost:
		if len(sig.Body) > 0 && sig.Body[0] == idbus.PORTAL_BUS_NAME {
			logger.Warn("[broker] lost %s", idbus.PORTAL_BUS_NAME)
			b.lostOnce.Do(func() { close(b.nameLost) })
		}
	case signalImplClosed:
		b.handleImplSessionClosed(sig)
	default:
		b.sigMu.Lock()
		handlers := b.implSignals[sig.Name]
		b.sigMu.Unlock()
		for _, fn := range handlers {
			fn(sig)
		}
	}
}

func (b *Broker) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)
	if !strings.HasPrefix(name, ":") {
		b.setOwner(name, newOwner)
		return
	}
	if newOwner != "" {
		return
	}
	logger.Debug("[broker] peer %s disconnected", name)
	b.Metrics.PeerDisconnected()
	b.Events.Dispatch(events.Event{
		Type: events.TypePeerDisconnected,
		Data: events.PeerDisconnected{Sender: name},
	})
}

func (b *Broker) handleImplSessionClosed(sig *dbus.Signal) {
	s, ok := b.Sessions.Get(sig.Path)
	if !ok {
		return
	}
	if !b.FromBackend(sig.Sender, s.Backend()) {
		logger.Warn("[broker] ignoring Closed for %s from %s", sig.Path, sig.Sender)
		return
	}
	b.Sessions.CloseFromBackend(sig.Path)
}

// primeOwners records the current owner of every known backend name.
func (b *Broker) primeOwners() {
	bus := b.conn.Proxy(idbus.DBUS_INTERFACE, idbus.DBUS_PATH)
	for _, impl := range b.Resolver.Impls() {
		var owner string
		call := idbus.Call(b.ctx, bus, b.timeout, idbus.BUS_GET_NAME_OWNER, impl.DBusName)
		if call.Err != nil || call.Store(&owner) != nil {
			logger.Debug("[broker] %s is not running", impl.DBusName)
			continue
		}
		b.owners.Set(impl.DBusName, owner)
	}
}

// setOwner follows a well-known name moving between connections. Only
// backend names are tracked.
func (b *Broker) setOwner(name, owner string) {
	if !b.isBackend(name) {
		return
	}
	if owner == "" {
		b.owners.Delete(name)
		return
	}
	logger.Debug("[broker] backend %s is now %s", name, owner)
	b.owners.Set(name, owner)
}

func (b *Broker) isBackend(name string) bool {
	for _, impl := range b.Resolver.Impls() {
		if impl.DBusName == name {
			return true
		}
	}
	return false
}

// FromBackend reports whether sender currently owns the backend name
// dest. It never calls the bus.
func (b *Broker) FromBackend(sender, dest string) bool {
	if sender == "" || dest == "" {
		return false
	}
	if sender == dest {
		return true
	}
	owner, ok := b.owners.Get(dest)
	return ok && owner == sender
}

// WatchConfig reloads portals.conf when it changes.
func (b *Broker) WatchConfig() error {
	w, err := b.Resolver.Watch(func() {
		b.Events.Dispatch(events.Event{Type: events.TypeConfigReloaded})
	})
	if err != nil {
		return err
	}
	b.watcher = w
	return nil
}
