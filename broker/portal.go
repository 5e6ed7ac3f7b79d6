package broker

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/methodinfo"
	"github.com/b0bbywan/go-desktop-portal/request"
)

type ExportFlags uint

const (
	// HostPortal skips the authorise hook. Only portals that establish the
	// caller identity themselves may use it.
	HostPortal ExportFlags = 1 << iota
)

// HandlerFunc implements one portal method. Returning nil results from a
// method that uses a Request replies with the Request handle.
type HandlerFunc func(inv *Invocation) ([]interface{}, error)

// Portal is a frontend interface exported at the desktop path.
type Portal interface {
	Interface() string
	Version() uint32
	Methods() map[string]HandlerFunc
}

// Invocation is one incoming portal method call.
type Invocation struct {
	Ctx       context.Context
	Sender    string
	Interface string
	Method    string
	Args      []interface{}
	Message   dbus.Message

	// App and Request are set by the authorise hook.
	App     *appinfo.AppInfo
	Request *request.Request

	info    methodinfo.MethodInfo
	keepFDs bool
}

// Options returns the a{sv} options argument, or an empty map when the
// method has none.
func (inv *Invocation) Options() map[string]dbus.Variant {
	idx := inv.info.OptionArgIndex
	if idx < 0 || idx >= len(inv.Args) {
		return map[string]dbus.Variant{}
	}
	opts, _ := inv.Args[idx].(map[string]dbus.Variant)
	if opts == nil {
		return map[string]dbus.Variant{}
	}
	return opts
}

// KeepFDs transfers the fds received with the call to the handler, which
// must then close them. By default they are closed once the handler
// returns.
func (inv *Invocation) KeepFDs() {
	inv.keepFDs = true
}
