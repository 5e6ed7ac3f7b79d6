package events

import "slices"

const (
	TypeServerInfo       = "server.info"
	TypePeerDisconnected = "peer.disconnected"
	TypeAppRegistered    = "app.registered"
	TypeRequestCreated   = "request.created"
	TypeRequestClosed    = "request.closed"
	TypeSessionCreated   = "session.created"
	TypeSessionClosed    = "session.closed"
	TypeConfigReloaded   = "config.reloaded"
)

// ComponentTypes groups event types by the component emitting them.
var ComponentTypes = map[string][]string{
	"peer":    {TypePeerDisconnected, TypeAppRegistered},
	"request": {TypeRequestCreated, TypeRequestClosed},
	"session": {TypeSessionCreated, TypeSessionClosed},
	"config":  {TypeConfigReloaded},
}

type Event struct {
	Type string
	Data any
}

// Filter reports whether an event should be delivered. A nil Filter
// passes everything.
type Filter func(Event) bool

// FilterTypes passes only the given types, or everything when types is empty.
func FilterTypes(types []string) Filter {
	if len(types) == 0 {
		return nil
	}
	return func(e Event) bool { return slices.Contains(types, e.Type) }
}

// FilterComponent passes the types of the named components. Unknown names
// are ignored; nil is returned when nothing is left.
func FilterComponent(names []string) Filter {
	var types []string
	for _, name := range names {
		types = append(types, ComponentTypes[name]...)
	}
	return FilterTypes(types)
}

// NewFilter combines an include and an exclude list.
func NewFilter(include, exclude []string) Filter {
	if len(include) == 0 && len(exclude) == 0 {
		return nil
	}
	return func(e Event) bool {
		if slices.Contains(exclude, e.Type) {
			return false
		}
		return len(include) == 0 || slices.Contains(include, e.Type)
	}
}

// PeerDisconnected is the payload of TypePeerDisconnected.
type PeerDisconnected struct {
	Sender string `json:"sender"`
}

// ObjectEvent is the payload of request and session lifecycle events.
type ObjectEvent struct {
	Path   string `json:"path"`
	Sender string `json:"sender"`
	AppID  string `json:"app_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}
