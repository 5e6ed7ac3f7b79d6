// Package options sanitises the a{sv} dictionaries callers hand to portal
// methods before they reach a backend.
package options

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
)

// Validator checks a single option value. options is the full, unfiltered
// dictionary, for checks that depend on other keys.
type Validator func(key string, value dbus.Variant, options map[string]dbus.Variant) error

// Key describes one accepted option.
type Key struct {
	Key string
	// Type is the D-Bus signature the value must carry, e.g. "s" or "as".
	Type     string
	Validate Validator
}

// OptionError reports an option that failed type or value validation.
type OptionError struct {
	Key    string
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("option %q: %s", e.Key, e.Reason)
}

func (e *OptionError) DBusError() *dbus.Error {
	return idbus.InvalidArgument("%s", e.Error())
}

// Filter returns the subset of opts described by schema. Keys that are
// neither in schema nor in inherited are dropped. inherited keys are
// copied through without checks.
func Filter(opts map[string]dbus.Variant, schema []Key, inherited ...string) (map[string]dbus.Variant, error) {
	out := make(map[string]dbus.Variant, len(opts))
	for _, k := range schema {
		v, ok := opts[k.Key]
		if !ok {
			continue
		}
		if sig := v.Signature().String(); sig != k.Type {
			return nil, &OptionError{Key: k.Key, Reason: fmt.Sprintf("expected type %s, got %s", k.Type, sig)}
		}
		if k.Validate != nil {
			if err := k.Validate(k.Key, v, opts); err != nil {
				return nil, wrap(k.Key, err)
			}
		}
		out[k.Key] = v
	}
	for _, key := range inherited {
		if _, done := out[key]; done {
			continue
		}
		if v, ok := opts[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

func wrap(key string, err error) error {
	if _, ok := err.(*OptionError); ok {
		return err
	}
	return &OptionError{Key: key, Reason: err.Error()}
}
