package dbus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// TimeoutError is returned when a D-Bus call exceeds its deadline.
type TimeoutError struct {
	Method string
}

func (e *TimeoutError) Error() string {
	if e.Method == "" {
		return "dbus: call timed out"
	}
	return fmt.Sprintf("dbus: call to %s timed out", e.Method)
}

func newError(name, format string, args ...interface{}) *dbus.Error {
	return dbus.NewError(name, []interface{}{fmt.Sprintf(format, args...)})
}

// Failed builds an org.freedesktop.portal.Error.Failed reply.
func Failed(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_FAILED, format, args...)
}

func InvalidArgument(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_INVALID_ARGUMENT, format, args...)
}

func NotFound(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_NOT_FOUND, format, args...)
}

func NotAllowed(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_NOT_ALLOWED, format, args...)
}

func Cancelled(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_CANCELLED, format, args...)
}

func WindowDestroyed(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_WINDOW_DESTROYED, format, args...)
}

func Disabled(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_DISABLED, format, args...)
}

func AccessDenied(format string, args ...interface{}) *dbus.Error {
	return newError(ERROR_ACCESS_DENIED, format, args...)
}

// ErrorName returns the D-Bus error name carried by err, or "" when err is
// not a D-Bus error.
func ErrorName(err error) string {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name
	}
	var pderr *dbus.Error
	if errors.As(err, &pderr) && pderr != nil {
		return pderr.Name
	}
	return ""
}

// IsErrorName reports whether err is a D-Bus error with the given name.
func IsErrorName(err error, name string) bool {
	return err != nil && ErrorName(err) == name
}

// ToDBusError converts an internal error into a D-Bus reply error. Errors
// that already carry a D-Bus name keep it, everything else becomes Failed.
func ToDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	var coded interface{ DBusError() *dbus.Error }
	if errors.As(err, &coded) {
		return coded.DBusError()
	}
	var pderr *dbus.Error
	if errors.As(err, &pderr) && pderr != nil {
		return pderr
	}
	var derr dbus.Error
	if errors.As(err, &derr) {
		return &derr
	}
	return Failed("%s", err.Error())
}
