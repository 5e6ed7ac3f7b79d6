package appinfo

import (
	"strconv"
	"strings"
)

// appIDFromUnit derives an application id from a systemd unit following
// the app[-<launcher>]-<ApplicationID>[-<RANDOM>].scope and
// app[-<launcher>]-<ApplicationID>[@<RANDOM>].service conventions.
func appIDFromUnit(unit string) string {
	if !strings.HasPrefix(unit, "app-") {
		return ""
	}
	name := strings.TrimPrefix(unit, "app-")

	switch {
	case strings.HasSuffix(name, ".scope"):
		name = strings.TrimSuffix(name, ".scope")
		// scopes always carry a random suffix
		i := strings.LastIndexByte(name, '-')
		if i < 0 {
			return ""
		}
		name = name[:i]
	case strings.HasSuffix(name, ".service"):
		name = strings.TrimSuffix(name, ".service")
		if i := strings.IndexByte(name, '@'); i >= 0 {
			name = name[:i]
		}
	default:
		return ""
	}

	var id string
	switch parts := strings.Split(name, "-"); len(parts) {
	case 1:
		id = parts[0]
	case 2:
		id = parts[1]
	default:
		return ""
	}

	if id = unescapeUnit(id); !IsValidAppID(id) {
		return ""
	}
	return id
}

// unescapeUnit reverses systemd's \xNN escaping.
func unescapeUnit(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if n, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
