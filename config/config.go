package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/b0bbywan/go-desktop-portal/logger"
)

const (
	AppName    = "xdg-desktop-portal"
	AppVersion = "1.20.3"
)

type Config struct {
	Verbose     bool
	Replace     bool
	ShowVersion bool

	LogLevel  logger.Level
	LogLevels map[string]logger.Level

	Backend *BackendConfig
	Portals *PortalsConfig
	Status  *StatusConfig
	Dirs    Dirs
}

type BackendConfig struct {
	// Timeout bounds calls to backends and helper services. Zero means
	// calls are bounded only by the request lifetime.
	Timeout time.Duration
}

type PortalsConfig struct {
	Dirs  Dirs
	Watch bool
}

type StatusConfig struct {
	Enabled bool
	Listen  string
}

// parseLogLevel converts a string to a logger.Level
func parseLogLevel(levelStr string) logger.Level {
	if level, ok := logger.ParseLevel(levelStr); ok {
		return level
	}
	return logger.INFO
}

func parseLogLevels(raw map[string]string) map[string]logger.Level {
	levels := make(map[string]logger.Level, len(raw))
	for component, levelStr := range raw {
		level, ok := logger.ParseLevel(levelStr)
		if !ok {
			logger.Warn("[config] ignoring invalid level %q for component %s", levelStr, component)
			continue
		}
		levels[strings.ToLower(component)] = level
	}
	return levels
}

// checkLoopback refuses listen addresses reachable from other hosts.
func checkLoopback(listen string) error {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", listen, err)
	}
	if port == "" {
		return fmt.Errorf("invalid listen address %q: missing port", listen)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("listen address %q is not a loopback address", listen)
	}
	return nil
}

// NewFlagSet declares the command line flags.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.BoolP("verbose", "v", false, "Print debug information")
	fs.BoolP("replace", "r", false, "Replace a running instance")
	fs.Bool("version", false, "Show program version")
	return fs
}

// New parses args and loads the configuration for the current environment.
func New(args []string) (*Config, error) {
	return Load(args, DirsFromEnv(os.Getenv))
}

// Load parses args and reads broker.yaml from the configuration
// directories found in dirs.
func Load(args []string, dirs Dirs) (*Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	v := viper.New()
	v.SetDefault("loglevel", "INFO")
	v.SetDefault("loglevels", map[string]string{})
	v.SetDefault("backend.timeout", "0s")
	v.SetDefault("portals.watch", true)
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.listen", "127.0.0.1:18890")

	for _, name := range []string{"verbose", "replace", "version"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return nil, err
		}
	}

	v.SetConfigName("broker")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(dirs.ConfigHome, AppName))
	v.AddConfigPath(filepath.Join(SYSCONFDIR, AppName))

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional, continue with defaults if not found
		if _, isNotFound := err.(viper.ConfigFileNotFoundError); !isNotFound {
			logger.Warn("[config] failed to read config: %v", err)
		}
	}

	timeout := v.GetDuration("backend.timeout")
	if timeout < 0 {
		return nil, fmt.Errorf("invalid backend.timeout: %s", timeout)
	}

	statusCfg := StatusConfig{
		Enabled: v.GetBool("status.enabled"),
		Listen:  v.GetString("status.listen"),
	}
	if statusCfg.Enabled {
		if err := checkLoopback(statusCfg.Listen); err != nil {
			return nil, err
		}
	}

	cfg := Config{
		Verbose:     v.GetBool("verbose"),
		Replace:     v.GetBool("replace"),
		ShowVersion: v.GetBool("version"),
		LogLevel:    parseLogLevel(v.GetString("loglevel")),
		LogLevels:   parseLogLevels(v.GetStringMapString("loglevels")),
		Backend:     &BackendConfig{Timeout: timeout},
		Portals: &PortalsConfig{
			Dirs:  dirs,
			Watch: v.GetBool("portals.watch"),
		},
		Status: &statusCfg,
		Dirs:   dirs,
	}
	if cfg.Verbose {
		cfg.LogLevel = logger.DEBUG
	}

	return &cfg, nil
}
