package dbus

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Caller issues method calls on one remote object.
// dbus.BusObject satisfies it.
type Caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Conn is the subset of a bus connection the broker relies on.
// Tests substitute an in-memory implementation.
type Conn interface {
	ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
	EmitTo(dest string, path dbus.ObjectPath, name string, values ...interface{}) error
	Proxy(dest string, path dbus.ObjectPath) Caller
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	UniqueName() string
}

// BusConn adapts a *dbus.Conn to Conn.
type BusConn struct {
	*dbus.Conn
}

func NewBusConn(conn *dbus.Conn) *BusConn {
	return &BusConn{Conn: conn}
}

func (c *BusConn) Proxy(dest string, path dbus.ObjectPath) Caller {
	return c.Conn.Object(dest, path)
}

func (c *BusConn) UniqueName() string {
	names := c.Conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// EmitTo sends a signal to a single destination instead of broadcasting it.
func (c *BusConn) EmitTo(dest string, path dbus.ObjectPath, name string, values ...interface{}) error {
	msg, err := NewUnicastSignal(dest, path, name, values...)
	if err != nil {
		return err
	}
	return c.Conn.Send(msg, nil).Err
}

// NewUnicastSignal builds a signal message addressed to dest. name is the
// fully qualified member, e.g. org.freedesktop.portal.Request.Response.
func NewUnicastSignal(dest string, path dbus.ObjectPath, name string, values ...interface{}) (*dbus.Message, error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return nil, fmt.Errorf("dbus: invalid signal name %q", name)
	}
	msg := &dbus.Message{
		Type: dbus.TypeSignal,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath:        dbus.MakeVariant(path),
			dbus.FieldInterface:   dbus.MakeVariant(name[:i]),
			dbus.FieldMember:      dbus.MakeVariant(name[i+1:]),
			dbus.FieldDestination: dbus.MakeVariant(dest),
		},
		Body: values,
	}
	if len(values) > 0 {
		msg.Headers[dbus.FieldSignature] = dbus.MakeVariant(dbus.SignatureOf(values...))
	}
	return msg, nil
}

// Sender returns the unique name of the peer that sent msg.
func Sender(msg dbus.Message) string {
	return headerString(msg, dbus.FieldSender)
}

// Member returns the member header of msg.
func Member(msg dbus.Message) string {
	return headerString(msg, dbus.FieldMember)
}

// Interface returns the interface header of msg.
func Interface(msg dbus.Message) string {
	return headerString(msg, dbus.FieldInterface)
}

func headerString(msg dbus.Message, field dbus.HeaderField) string {
	v, ok := msg.Headers[field]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}
