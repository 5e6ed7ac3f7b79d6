package broker

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/documents"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/portalconfig"
	"github.com/b0bbywan/go-desktop-portal/request"
)

// Impl returns the backend selected for iface, or nil.
func (b *Broker) Impl(iface string) *portalconfig.PortalImpl {
	return b.Resolver.FindImpl(iface)
}

// Backend returns the desktop object of the backend dest.
func (b *Broker) Backend(dest string) idbus.Caller {
	return b.conn.Proxy(dest, idbus.DESKTOP_PATH)
}

// CallImpl makes a synchronous call to a backend.
func (b *Broker) CallImpl(ctx context.Context, dest, method string, args ...interface{}) *dbus.Call {
	return idbus.Call(ctx, b.Backend(dest), b.timeout, method, args...)
}

// Forward calls method on the backend dest with the Request handle
// prepended to args and answers req with the backend's reply. It returns
// immediately.
func (b *Broker) Forward(req *request.Request, dest, method string, args ...interface{}) {
	req.SetImpl(dest)
	backend := b.Backend(dest)
	go b.forward(req, backend, method, append([]interface{}{req.Path()}, args...))
}

func (b *Broker) forward(req *request.Request, backend idbus.Caller, method string, args []interface{}) {
	call := idbus.Call(req.Context(), backend, b.timeout, method, args...)
	code, results := b.response(method, call)

	fds := documents.CollectFDs(results)
	defer documents.CloseFDs(fds)

	if req.State() != request.Pending {
		logger.Debug("[broker] %s answered after %s was closed", method, req.Path())
		return
	}
	if err := req.Respond(code, results); err == nil {
		b.Metrics.Response(code)
	}
}

// response decodes a backend (u, a{sv}) reply. Any failure becomes the
// "other" response code; remote error details stay in the log.
func (b *Broker) response(method string, call *dbus.Call) (uint32, map[string]dbus.Variant) {
	if call.Err != nil {
		if cancelled(call.Err) {
			logger.Debug("[broker] backend call %s cancelled", method)
		} else {
			logger.Warn("[broker] backend call %s failed: %v", method, call.Err)
		}
		return idbus.RESPONSE_OTHER, nil
	}

	var (
		code    uint32
		results map[string]dbus.Variant
	)
	if err := call.Store(&code, &results); err != nil {
		logger.Warn("[broker] invalid reply to %s: %v", method, err)
		return idbus.RESPONSE_OTHER, nil
	}
	spliced, err := documents.SpliceFDs(results, nil)
	if err != nil {
		logger.Warn("[broker] reply to %s: %v", method, err)
		documents.CloseFDs(documents.CollectFDs(results))
		return idbus.RESPONSE_OTHER, nil
	}
	return code, spliced
}

// cancelled reports errors caused by the caller or backend giving up.
func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || idbus.IsErrorName(err, idbus.ERROR_CANCELLED)
}
