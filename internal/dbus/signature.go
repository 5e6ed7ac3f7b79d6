package dbus

import (
	"fmt"
	"reflect"

	"github.com/godbus/dbus/v5"
)

var (
	messageType = reflect.TypeOf(dbus.Message{})
	errorType   = reflect.TypeOf((*dbus.Error)(nil))
	variantType = reflect.TypeOf(dbus.Variant{})
	anyType     = reflect.TypeOf((*interface{})(nil)).Elem()
)

var basicTypes = map[byte]reflect.Type{
	'y': reflect.TypeOf(byte(0)),
	'b': reflect.TypeOf(false),
	'n': reflect.TypeOf(int16(0)),
	'q': reflect.TypeOf(uint16(0)),
	'i': reflect.TypeOf(int32(0)),
	'u': reflect.TypeOf(uint32(0)),
	'x': reflect.TypeOf(int64(0)),
	't': reflect.TypeOf(uint64(0)),
	'd': reflect.TypeOf(float64(0)),
	's': reflect.TypeOf(""),
	'o': reflect.TypeOf(dbus.ObjectPath("")),
	'g': reflect.TypeOf(dbus.Signature{}),
	'h': reflect.TypeOf(dbus.UnixFD(0)),
	'v': variantType,
}

// TypesForSignature maps a D-Bus signature to the Go types godbus decodes
// it into. Structs become []interface{}.
func TypesForSignature(sig string) ([]reflect.Type, error) {
	var types []reflect.Type
	for rest := sig; rest != ""; {
		t, next, err := nextType(rest)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", sig, err)
		}
		types = append(types, t)
		rest = next
	}
	return types, nil
}

// SplitSignature splits sig into its single complete types.
func SplitSignature(sig string) ([]string, error) {
	var out []string
	for rest := sig; rest != ""; {
		_, next, err := nextType(rest)
		if err != nil {
			return nil, fmt.Errorf("signature %q: %w", sig, err)
		}
		out = append(out, rest[:len(rest)-len(next)])
		rest = next
	}
	return out, nil
}

func nextType(sig string) (reflect.Type, string, error) {
	if sig == "" {
		return nil, "", fmt.Errorf("unexpected end")
	}
	if t, ok := basicTypes[sig[0]]; ok {
		return t, sig[1:], nil
	}
	switch sig[0] {
	case 'a':
		if len(sig) > 1 && sig[1] == '{' {
			key, rest, err := nextType(sig[2:])
			if err != nil {
				return nil, "", err
			}
			if key.Kind() == reflect.Slice || key == variantType {
				return nil, "", fmt.Errorf("dict key must be a basic type")
			}
			val, rest, err := nextType(rest)
			if err != nil {
				return nil, "", err
			}
			if rest == "" || rest[0] != '}' {
				return nil, "", fmt.Errorf("unterminated dict entry")
			}
			return reflect.MapOf(key, val), rest[1:], nil
		}
		elem, rest, err := nextType(sig[1:])
		if err != nil {
			return nil, "", err
		}
		return reflect.SliceOf(elem), rest, nil
	case '(':
		rest := sig[1:]
		for {
			if rest == "" {
				return nil, "", fmt.Errorf("unterminated struct")
			}
			if rest[0] == ')' {
				return reflect.SliceOf(anyType), rest[1:], nil
			}
			var err error
			if _, rest, err = nextType(rest); err != nil {
				return nil, "", err
			}
		}
	}
	return nil, "", fmt.Errorf("unsupported type code %q", sig[0])
}

// MethodHandler is the uniform shape every exported portal method is
// reduced to.
type MethodHandler func(msg dbus.Message, args []interface{}) ([]interface{}, *dbus.Error)

// MakeMethod builds a function godbus can export for a method with the
// given in and out signatures. The generated function takes the incoming
// dbus.Message first so handlers can see the sender and headers.
func MakeMethod(in, out string, h MethodHandler) (interface{}, error) {
	inTypes, err := TypesForSignature(in)
	if err != nil {
		return nil, err
	}
	outTypes, err := TypesForSignature(out)
	if err != nil {
		return nil, err
	}

	params := append([]reflect.Type{messageType}, inTypes...)
	results := append(append([]reflect.Type{}, outTypes...), errorType)
	fnType := reflect.FuncOf(params, results, false)

	fn := reflect.MakeFunc(fnType, func(vals []reflect.Value) []reflect.Value {
		msg := vals[0].Interface().(dbus.Message)
		args := make([]interface{}, len(vals)-1)
		for i, v := range vals[1:] {
			args[i] = v.Interface()
		}
		ret, derr := h(msg, args)
		if derr == nil && len(ret) != len(outTypes) {
			derr = Failed("Internal error: %d return values, expected %d", len(ret), len(outTypes))
		}
		replies := make([]reflect.Value, 0, len(results))
		for i, t := range outTypes {
			if derr != nil {
				replies = append(replies, reflect.Zero(t))
				continue
			}
			v, err := convertValue(ret[i], t)
			if err != nil {
				derr = Failed("Internal error: %s", err)
				replies = append(replies, reflect.Zero(t))
				continue
			}
			replies = append(replies, v)
		}
		if derr != nil {
			for i, t := range outTypes {
				replies[i] = reflect.Zero(t)
			}
		}
		return append(replies, reflect.ValueOf(derr))
	})
	return fn.Interface(), nil
}

func convertValue(v interface{}, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}
