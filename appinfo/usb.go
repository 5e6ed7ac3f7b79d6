package appinfo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/b0bbywan/go-desktop-portal/options"
)

type UsbQueryType int

const (
	UsbQueryEnumerable UsbQueryType = iota
	UsbQueryHidden
)

type UsbRuleType int

const (
	UsbRuleAll UsbRuleType = iota
	UsbRuleClass
	UsbRuleDevice
	UsbRuleVendor
)

// UsbRule is one term of a device query, e.g. "vnd:046d" or "cls:03:*".
type UsbRule struct {
	Type        UsbRuleType
	Class       uint8
	Subclass    uint8
	AnySubclass bool
	// ID holds the vendor or product id for UsbRuleVendor and UsbRuleDevice.
	ID uint16
}

// UsbQuery matches a device when all of its rules match.
type UsbQuery struct {
	Type  UsbQueryType
	Rules []UsbRule
}

// UsbDevice carries the fields rules are evaluated against.
type UsbDevice struct {
	Class     uint8
	Subclass  uint8
	VendorID  uint16
	ProductID uint16
}

func parseHexByte(s string) (uint8, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("%q is not a 2 digit hex number", s)
	}
	n, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%q is not a 2 digit hex number", s)
	}
	return uint8(n), nil
}

// ParseUsbRule parses a single rule.
func ParseUsbRule(s string) (UsbRule, error) {
	if s == "all" {
		return UsbRule{Type: UsbRuleAll}, nil
	}
	kind, value, ok := strings.Cut(s, ":")
	if !ok {
		return UsbRule{}, fmt.Errorf("invalid usb rule %q", s)
	}

	switch kind {
	case "cls":
		class, sub, ok := strings.Cut(value, ":")
		if !ok {
			return UsbRule{}, fmt.Errorf("invalid usb class rule %q", s)
		}
		c, err := parseHexByte(class)
		if err != nil {
			return UsbRule{}, err
		}
		rule := UsbRule{Type: UsbRuleClass, Class: c}
		if sub == "*" {
			rule.AnySubclass = true
			return rule, nil
		}
		if rule.Subclass, err = parseHexByte(sub); err != nil {
			return UsbRule{}, err
		}
		return rule, nil
	case "dev", "vnd":
		id, err := options.ParseHexUint16(value)
		if err != nil {
			return UsbRule{}, err
		}
		if kind == "dev" {
			return UsbRule{Type: UsbRuleDevice, ID: id}, nil
		}
		return UsbRule{Type: UsbRuleVendor, ID: id}, nil
	}
	return UsbRule{}, fmt.Errorf("unknown usb rule type %q", kind)
}

// ParseUsbQuery parses rules joined by '+'.
func ParseUsbQuery(typ UsbQueryType, s string) (UsbQuery, error) {
	q := UsbQuery{Type: typ}
	for _, part := range strings.Split(s, "+") {
		rule, err := ParseUsbRule(strings.TrimSpace(part))
		if err != nil {
			return UsbQuery{}, err
		}
		q.Rules = append(q.Rules, rule)
	}
	return q, nil
}

// ParseUsbQueries parses a ';' separated list of queries.
func ParseUsbQueries(typ UsbQueryType, list string) ([]UsbQuery, error) {
	var out []UsbQuery
	for _, s := range splitList(list) {
		q, err := ParseUsbQuery(typ, s)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (r UsbRule) Matches(d UsbDevice) bool {
	switch r.Type {
	case UsbRuleAll:
		return true
	case UsbRuleClass:
		return r.Class == d.Class && (r.AnySubclass || r.Subclass == d.Subclass)
	case UsbRuleDevice:
		return r.ID == d.ProductID
	case UsbRuleVendor:
		return r.ID == d.VendorID
	}
	return false
}

func (q UsbQuery) Matches(d UsbDevice) bool {
	if len(q.Rules) == 0 {
		return false
	}
	for _, r := range q.Rules {
		if !r.Matches(d) {
			return false
		}
	}
	return true
}

// CanEnumerateUsbDevice reports whether d matches an enumerable query and
// no hidden query.
func (a *AppInfo) CanEnumerateUsbDevice(d UsbDevice) bool {
	enumerable := false
	for _, q := range a.usbQueries {
		if !q.Matches(d) {
			continue
		}
		if q.Type == UsbQueryHidden {
			return false
		}
		enumerable = true
	}
	return enumerable
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ";") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
