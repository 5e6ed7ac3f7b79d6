package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Install locations, overridable at link time.
var (
	DATADIR    = "/usr/share"
	SYSCONFDIR = "/etc"
)

// Dirs is a snapshot of the environment the broker reads at startup.
type Dirs struct {
	CurrentDesktop  string
	PortalDir       string
	ConfigHome      string
	ConfigDirs      []string
	DataHome        string
	DataDirs        []string
	RuntimeDir      string
	WaitForDebugger bool
}

// DirsFromEnv builds a Dirs snapshot applying the XDG base directory defaults.
func DirsFromEnv(getenv func(string) string) Dirs {
	home := getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	d := Dirs{
		CurrentDesktop:  getenv("XDG_CURRENT_DESKTOP"),
		PortalDir:       getenv("XDG_DESKTOP_PORTAL_DIR"),
		ConfigHome:      getenv("XDG_CONFIG_HOME"),
		ConfigDirs:      splitPathList(getenv("XDG_CONFIG_DIRS")),
		DataHome:        getenv("XDG_DATA_HOME"),
		DataDirs:        splitPathList(getenv("XDG_DATA_DIRS")),
		RuntimeDir:      getenv("XDG_RUNTIME_DIR"),
		WaitForDebugger: getenv("XDG_DESKTOP_PORTAL_WAIT_FOR_DEBUGGER") != "",
	}
	if d.ConfigHome == "" {
		d.ConfigHome = filepath.Join(home, ".config")
	}
	if len(d.ConfigDirs) == 0 {
		d.ConfigDirs = []string{"/etc/xdg"}
	}
	if d.DataHome == "" {
		d.DataHome = filepath.Join(home, ".local", "share")
	}
	if len(d.DataDirs) == 0 {
		d.DataDirs = []string{"/usr/local/share", "/usr/share"}
	}
	return d
}

func splitPathList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ":") {
		if p = strings.TrimSpace(p); p != "" && filepath.IsAbs(p) {
			out = append(out, p)
		}
	}
	return out
}
