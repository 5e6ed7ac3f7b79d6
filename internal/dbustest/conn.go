// Package dbustest provides an in-memory implementation of the bus
// connection used by the broker, for tests.
package dbustest

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
)

// Emitted is a signal sent through the connection.
type Emitted struct {
	Dest string
	Path dbus.ObjectPath
	Name string
	Body []interface{}
}

// Call is a method call issued on a proxy.
type Call struct {
	Dest   string
	Path   dbus.ObjectPath
	Method string
	Args   []interface{}
}

// HandlerFunc answers calls made on proxies. It should honour ctx.
type HandlerFunc func(ctx context.Context, c Call) *dbus.Call

type Conn struct {
	Name string

	mu       sync.Mutex
	exports  map[dbus.ObjectPath]map[string]interface{}
	emitted  []Emitted
	calls    []Call
	matches  [][]dbus.MatchOption
	chans    []chan<- *dbus.Signal
	handlers map[string]HandlerFunc
	fallback HandlerFunc
}

var _ idbus.Conn = (*Conn)(nil)

func New() *Conn {
	return &Conn{
		Name:     ":1.0",
		exports:  make(map[dbus.ObjectPath]map[string]interface{}),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle routes calls to dest through h.
func (c *Conn) Handle(dest string, h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[dest] = h
}

// HandleAll answers calls to destinations without a specific handler.
func (c *Conn) HandleAll(h HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = h
}

func (c *Conn) export(v interface{}, path dbus.ObjectPath, iface string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isNil(v) {
		delete(c.exports[path], iface)
		if len(c.exports[path]) == 0 {
			delete(c.exports, path)
		}
		return
	}
	if c.exports[path] == nil {
		c.exports[path] = make(map[string]interface{})
	}
	c.exports[path][iface] = v
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Interface, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (c *Conn) ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error {
	if methods == nil {
		c.export(nil, path, iface)
		return nil
	}
	table := make(map[string]interface{}, len(methods))
	for k, v := range methods {
		table[k] = v
	}
	c.export(table, path, iface)
	return nil
}

func (c *Conn) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	c.export(v, path, iface)
	return nil
}

func (c *Conn) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	return c.EmitTo("", path, name, values...)
}

func (c *Conn) EmitTo(dest string, path dbus.ObjectPath, name string, values ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, Emitted{Dest: dest, Path: path, Name: name, Body: values})
	return nil
}

func (c *Conn) Proxy(dest string, path dbus.ObjectPath) idbus.Caller {
	return &object{conn: c, dest: dest, path: path}
}

func (c *Conn) AddMatchSignal(options ...dbus.MatchOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = append(c.matches, options)
	return nil
}

func (c *Conn) Signal(ch chan<- *dbus.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chans = append(c.chans, ch)
}

func (c *Conn) RemoveSignal(ch chan<- *dbus.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.chans {
		if existing == ch {
			c.chans = append(c.chans[:i:i], c.chans[i+1:]...)
			return
		}
	}
}

func (c *Conn) UniqueName() string { return c.Name }

// Deliver hands sig to every registered signal channel.
func (c *Conn) Deliver(sig *dbus.Signal) {
	c.mu.Lock()
	chans := append([]chan<- *dbus.Signal(nil), c.chans...)
	c.mu.Unlock()
	for _, ch := range chans {
		ch <- sig
	}
}

// Exported reports whether iface is exported at path.
func (c *Conn) Exported(path dbus.ObjectPath, iface string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.exports[path][iface]
	return ok
}

// Exports returns what was exported at path for iface.
func (c *Conn) Exports(path dbus.ObjectPath, iface string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exports[path][iface]
}

// Paths returns the exported object paths.
func (c *Conn) Paths() []dbus.ObjectPath {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dbus.ObjectPath, 0, len(c.exports))
	for p := range c.exports {
		out = append(out, p)
	}
	return out
}

func (c *Conn) Emitted() []Emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Emitted(nil), c.emitted...)
}

// EmittedNamed returns the signals with the given fully qualified name.
func (c *Conn) EmittedNamed(name string) []Emitted {
	var out []Emitted
	for _, e := range c.Emitted() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (c *Conn) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// CallsTo returns the calls of the given fully qualified method.
func (c *Conn) CallsTo(method string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

func (c *Conn) Matches() [][]dbus.MatchOption {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]dbus.MatchOption(nil), c.matches...)
}

// Message builds an incoming method call as the bus would deliver it.
func Message(sender string, path dbus.ObjectPath, iface, member string) dbus.Message {
	return dbus.Message{
		Type: dbus.TypeMethodCall,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldSender:    dbus.MakeVariant(sender),
			dbus.FieldPath:      dbus.MakeVariant(path),
			dbus.FieldInterface: dbus.MakeVariant(iface),
			dbus.FieldMember:    dbus.MakeVariant(member),
		},
	}
}

// Invoke calls method of an exported method table the way the bus would,
// filling dbus.Message parameters and passing args in order.
func (c *Conn) Invoke(sender string, path dbus.ObjectPath, iface, method string, args ...interface{}) ([]interface{}, *dbus.Error) {
	table, ok := c.Exports(path, iface).(map[string]interface{})
	if !ok {
		return nil, dbus.NewError(idbus.ERROR_UNKNOWN_METHOD, []interface{}{fmt.Sprintf("no interface %s at %s", iface, path)})
	}
	fn, ok := table[method]
	if !ok {
		return nil, dbus.NewError(idbus.ERROR_UNKNOWN_METHOD, []interface{}{fmt.Sprintf("no method %s.%s", iface, method)})
	}

	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	msgType := reflect.TypeOf(dbus.Message{})
	msg := Message(sender, path, iface, method)

	in := make([]reflect.Value, 0, ft.NumIn())
	next := 0
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if pt == msgType {
			in = append(in, reflect.ValueOf(msg))
			continue
		}
		if next >= len(args) {
			return nil, dbus.NewError(idbus.ERROR_INVALID_ARGUMENT, []interface{}{"too few arguments"})
		}
		arg := args[next]
		next++
		if arg == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		av := reflect.ValueOf(arg)
		if !av.Type().AssignableTo(pt) {
			if !av.Type().ConvertibleTo(pt) {
				return nil, dbus.NewError(idbus.ERROR_INVALID_ARGUMENT, []interface{}{fmt.Sprintf("argument %d: %s is not %s", next-1, av.Type(), pt)})
			}
			av = av.Convert(pt)
		}
		in = append(in, av)
	}

	out := fv.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	var derr *dbus.Error
	if last := out[len(out)-1]; !last.IsNil() {
		derr = last.Interface().(*dbus.Error)
	}
	values := make([]interface{}, 0, len(out)-1)
	for _, v := range out[:len(out)-1] {
		values = append(values, v.Interface())
	}
	return values, derr
}

// Eventually polls cond until it holds or timeout passes.
func Eventually(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type object struct {
	conn *Conn
	dest string
	path dbus.ObjectPath
}

func (o *object) CallWithContext(ctx context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	call := Call{Dest: o.dest, Path: o.path, Method: method, Args: args}

	o.conn.mu.Lock()
	o.conn.calls = append(o.conn.calls, call)
	h, ok := o.conn.handlers[o.dest]
	if !ok {
		h = o.conn.fallback
	}
	o.conn.mu.Unlock()

	if h == nil {
		return &dbus.Call{Destination: o.dest, Path: o.path, Method: method, Args: args}
	}
	res := h(ctx, call)
	if res == nil {
		res = &dbus.Call{}
	}
	res.Destination, res.Path, res.Method, res.Args = o.dest, o.path, method, args
	return res
}

// Reply builds a successful call result.
func Reply(body ...interface{}) *dbus.Call {
	return &dbus.Call{Body: body}
}

// ErrorReply builds a failed call result carrying a remote error.
func ErrorReply(name, message string) *dbus.Call {
	return &dbus.Call{Err: dbus.Error{Name: name, Body: []interface{}{message}}}
}
