package portalconfig

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mvo5/goconfigparser"

	"github.com/b0bbywan/go-desktop-portal/logger"
)

const (
	preferredGroup = "preferred"
	defaultKey     = "default"
	anyImpl        = "*"
	noImpl         = "none"
)

// InterfacePreference is one interface=impl1;impl2 line.
type InterfacePreference struct {
	Interface string   `json:"interface"`
	Impls     []string `json:"impls"`
}

// PortalConfig is a parsed portals.conf.
type PortalConfig struct {
	Path       string                `json:"path"`
	Interfaces []InterfacePreference `json:"interfaces,omitempty"`
	Default    []string              `json:"default,omitempty"`
}

func (c *PortalConfig) preference(iface string) *InterfacePreference {
	if c == nil {
		return nil
	}
	for i := range c.Interfaces {
		if strings.EqualFold(c.Interfaces[i].Interface, iface) {
			return &c.Interfaces[i]
		}
	}
	return nil
}

func parseConfigFile(path string) (*PortalConfig, error) {
	cfg := goconfigparser.New()
	if err := cfg.ReadFile(path); err != nil {
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}
	keys, err := cfg.Options(preferredGroup)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "missing [preferred] group"}
	}

	pc := &PortalConfig{Path: path}
	for _, key := range keys {
		value, err := cfg.Get(preferredGroup, key)
		if err != nil {
			continue
		}
		list := splitList(value)
		if strings.EqualFold(key, defaultKey) {
			pc.Default = list
			continue
		}
		pc.Interfaces = append(pc.Interfaces, InterfacePreference{
			Interface: ImplInterface(key),
			Impls:     list,
		})
	}
	return pc, nil
}

// loadConfig returns the first portals.conf found, trying the
// desktop-specific names before the plain one in each directory.
func loadConfig(dirs []string, desktops []string) *PortalConfig {
	for _, dir := range dirs {
		candidates := make([]string, 0, len(desktops)+1)
		for _, d := range desktops {
			candidates = append(candidates, d+"-portals.conf")
		}
		candidates = append(candidates, "portals.conf")

		for _, name := range candidates {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			pc, err := parseConfigFile(path)
			if err != nil {
				logger.Warn("[portalconfig] %v", err)
				continue
			}
			logger.Debug("[portalconfig] using portal configuration file %s", path)
			return pc
		}
	}
	logger.Debug("[portalconfig] no portals.conf found")
	return nil
}
