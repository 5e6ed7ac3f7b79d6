package options

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
)

const MaxTokenLength = 64

var (
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(\.[A-Za-z0-9\-]+)*$`)
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// IsValidEmail reports whether s looks like a single mailbox address.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// IsValidToken reports whether s is a valid handle token.
func IsValidToken(s string) bool {
	return len(s) >= 1 && len(s) <= MaxTokenLength && tokenRe.MatchString(s)
}

// ValidateEmail accepts an "s" value holding one address.
func ValidateEmail(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
	s, _ := v.Value().(string)
	if !IsValidEmail(s) {
		return errors.New("not a valid email address")
	}
	return nil
}

// ValidateEmails accepts an "as" value where every entry is an address.
func ValidateEmails(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
	list, _ := v.Value().([]string)
	for _, s := range list {
		if !IsValidEmail(s) {
			return fmt.Errorf("%q is not a valid email address", s)
		}
	}
	return nil
}

// ValidateSingleLine rejects strings containing line breaks.
func ValidateSingleLine(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
	s, _ := v.Value().(string)
	if strings.ContainsAny(s, "\r\n") {
		return errors.New("must be a single line")
	}
	return nil
}

// ValidateToken accepts an "s" value matching the handle token grammar.
func ValidateToken(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
	s, _ := v.Value().(string)
	if !IsValidToken(s) {
		return errors.New("invalid token")
	}
	return nil
}

// ValidateHexUint16 accepts an "s" value holding exactly four hex digits,
// as used for USB vendor and product ids.
func ValidateHexUint16(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
	s, _ := v.Value().(string)
	if _, err := ParseHexUint16(s); err != nil {
		return err
	}
	return nil
}

// ParseHexUint16 parses exactly four hex digits.
func ParseHexUint16(s string) (uint16, error) {
	if len(s) != 4 {
		return 0, fmt.Errorf("%q is not a 4 digit hex number", s)
	}
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 4 digit hex number", s)
	}
	return uint16(n), nil
}

// ValidateBitmask returns a validator accepting "u" values with no bits
// outside mask.
func ValidateBitmask(mask uint32) Validator {
	return func(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
		n, _ := v.Value().(uint32)
		if n&^mask != 0 {
			return fmt.Errorf("unsupported bits 0x%x", n&^mask)
		}
		return nil
	}
}

// ValidateMaxLength returns a validator bounding the byte length of an "s" value.
func ValidateMaxLength(max int) Validator {
	return func(_ string, v dbus.Variant, _ map[string]dbus.Variant) error {
		s, _ := v.Value().(string)
		if len(s) > max {
			return fmt.Errorf("longer than %d bytes", max)
		}
		return nil
	}
}

// All combines validators, stopping at the first failure.
func All(validators ...Validator) Validator {
	return func(key string, v dbus.Variant, opts map[string]dbus.Variant) error {
		for _, fn := range validators {
			if err := fn(key, v, opts); err != nil {
				return err
			}
		}
		return nil
	}
}
