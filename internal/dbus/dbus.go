package dbus

import (
	"context"
	"errors"
	"time"

	"github.com/godbus/dbus/v5"
)

// Call executes method on obj. A positive timeout bounds the call, zero
// leaves it bounded only by ctx.
func Call(ctx context.Context, obj Caller, timeout time.Duration, method string, args ...interface{}) *dbus.Call {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	call := obj.CallWithContext(ctx, method, 0, args...)
	if call.Err != nil && errors.Is(call.Err, context.DeadlineExceeded) {
		call.Err = &TimeoutError{Method: method}
	}
	return call
}

// GetAllProperties retrieves all properties of a D-Bus interface in a single call.
func GetAllProperties(ctx context.Context, obj Caller, timeout time.Duration, iface string) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	call := Call(ctx, obj, timeout, PROP_GET_ALL, iface)
	if call.Err != nil {
		return nil, call.Err
	}
	return props, call.Store(&props)
}

// ExtractBool extracts a bool from a dbus.Variant.
func ExtractBool(v dbus.Variant) (bool, bool) {
	val, ok := v.Value().(bool)
	return val, ok
}

// ExtractUint32 extracts a uint32 from a dbus.Variant.
func ExtractUint32(v dbus.Variant) (uint32, bool) {
	val, ok := v.Value().(uint32)
	return val, ok
}
