package dbus

import "strings"

const maxNameLength = 255

func isNameChar(c byte, allowDash bool) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' || allowDash && c == '-'
}

func validElements(name string, allowDash, allowLeadingDigit bool) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	elems := strings.Split(name, ".")
	if len(elems) < 2 {
		return false
	}
	for _, e := range elems {
		if e == "" {
			return false
		}
		if !allowLeadingDigit && e[0] >= '0' && e[0] <= '9' {
			return false
		}
		for i := 0; i < len(e); i++ {
			if !isNameChar(e[i], allowDash) {
				return false
			}
		}
	}
	return true
}

// IsBusName reports whether name is a valid well-known or unique bus name.
func IsBusName(name string) bool {
	if strings.HasPrefix(name, ":") {
		return IsUniqueName(name)
	}
	return validElements(name, true, false)
}

// IsUniqueName reports whether name is a valid unique connection name.
func IsUniqueName(name string) bool {
	return strings.HasPrefix(name, ":") && validElements(name[1:], true, true)
}

// IsInterfaceName reports whether name is a valid interface name.
func IsInterfaceName(name string) bool {
	return validElements(name, false, false)
}
