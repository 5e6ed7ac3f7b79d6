package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/b0bbywan/go-desktop-portal/api"
	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/config"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/portalconfig"
	"github.com/b0bbywan/go-desktop-portal/portals"
)

const (
	exitOK    = 0
	exitUsage = 1
	exitNoBus = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.New(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		return exitUsage
	}
	if cfg.ShowVersion {
		fmt.Printf("%s %s\n", config.AppName, config.AppVersion)
		return exitOK
	}

	logger.SetLevel(cfg.LogLevel)
	logger.SetPackageLevels(cfg.LogLevels)

	if cfg.Dirs.WaitForDebugger {
		logger.Info("[%s] pid %d waiting for debugger", config.AppName, os.Getpid())
		if err := unix.Kill(os.Getpid(), unix.SIGSTOP); err != nil {
			logger.Warn("[%s] cannot stop for debugger: %v", config.AppName, err)
		}
	}

	// Global context for the entire application
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logger.Error("[%s] no session bus: %v", config.AppName, err)
		return exitNoBus
	}
	defer conn.Close()

	b, err := broker.New(ctx, broker.Options{
		Conn:     idbus.NewBusConn(conn),
		Resolver: portalconfig.New(cfg.Dirs),
		Timeout:  cfg.Backend.Timeout,
	})
	if err != nil {
		logger.Error("[%s] broker initialization failed: %v", config.AppName, err)
		return exitUsage
	}
	defer b.Close()

	b.Init(ctx)
	if err := portals.Register(b); err != nil {
		logger.Error("[%s] cannot export portals: %v", config.AppName, err)
		return exitUsage
	}
	if err := b.Start(); err != nil {
		logger.Error("[%s] cannot listen for bus signals: %v", config.AppName, err)
		return exitUsage
	}
	if cfg.Portals.Watch {
		if err := b.WatchConfig(); err != nil {
			logger.Warn("[%s] portals.conf changes will be ignored: %v", config.AppName, err)
		}
	}

	flags := dbus.NameFlagAllowReplacement | dbus.NameFlagDoNotQueue
	if cfg.Replace {
		flags |= dbus.NameFlagReplaceExisting
	}
	reply, err := conn.RequestName(idbus.PORTAL_BUS_NAME, flags)
	if err != nil {
		logger.Error("[%s] cannot request %s: %v", config.AppName, idbus.PORTAL_BUS_NAME, err)
		return exitNoBus
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		logger.Warn("[%s] %s is owned by another process", config.AppName, idbus.PORTAL_BUS_NAME)
		return exitOK
	}
	defer func() {
		if _, err := conn.ReleaseName(idbus.PORTAL_BUS_NAME); err != nil {
			logger.Debug("[%s] release name: %v", config.AppName, err)
		}
	}()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Debug("[%s] sd_notify: %v", config.AppName, err)
	}

	if server := api.NewServer(cfg.Status, b); server != nil {
		go func() {
			if err := server.Run(ctx); err != nil {
				logger.Error("[%s] status server error: %v", config.AppName, err)
			}
		}()
	}

	logger.Info("[%s] %s running as %s", config.AppName, config.AppVersion, b.Conn().UniqueName())
	select {
	case <-ctx.Done():
		logger.Info("[%s] shutdown signal received, stopping...", config.AppName)
	case <-b.NameLost():
		logger.Info("[%s] replaced, stopping...", config.AppName)
	}

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		logger.Debug("[%s] sd_notify: %v", config.AppName, err)
	}
	logger.Info("[%s] stopped", config.AppName)
	return exitOK
}
