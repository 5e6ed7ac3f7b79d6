// Package portalconfig discovers backend implementations and decides which
// one serves each portal interface.
package portalconfig

import (
	"path/filepath"
	"strings"

	"github.com/b0bbywan/go-desktop-portal/config"
)

const subdir = "xdg-desktop-portal"

// DesktopNames splits an XDG_CURRENT_DESKTOP value into lowercased names,
// dropping entries with characters other than alphanumerics, '-' and '_'.
func DesktopNames(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ":") {
		if name == "" || !isDesktopName(name) {
			continue
		}
		names = append(names, strings.ToLower(name))
	}
	return names
}

func isDesktopName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
			return false
		}
	}
	return true
}

// portalDirs lists the directories searched for .portal files. An
// override directory replaces all the others.
func portalDirs(dirs config.Dirs) []string {
	if dirs.PortalDir != "" {
		return []string{dirs.PortalDir}
	}
	out := []string{filepath.Join(dirs.DataHome, subdir, "portals")}
	for _, d := range dirs.DataDirs {
		out = append(out, filepath.Join(d, subdir, "portals"))
	}
	return append(out, filepath.Join(config.DATADIR, subdir, "portals"))
}

// configDirs lists the directories searched for portals.conf, in order.
func configDirs(dirs config.Dirs) []string {
	var out []string
	if dirs.PortalDir != "" {
		out = append(out, dirs.PortalDir)
	}
	out = append(out, filepath.Join(dirs.ConfigHome, subdir))
	for _, d := range dirs.ConfigDirs {
		out = append(out, filepath.Join(d, subdir))
	}
	out = append(out,
		filepath.Join(config.SYSCONFDIR, subdir),
		filepath.Join(dirs.DataHome, subdir),
	)
	for _, d := range dirs.DataDirs {
		out = append(out, filepath.Join(d, subdir))
	}
	return append(out, filepath.Join(config.DATADIR, subdir))
}
