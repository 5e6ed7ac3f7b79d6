package appinfo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

const defaultProcRoot = "/proc"

// IdentifyError is returned when a caller cannot be classified. Callers
// must treat it as fatal for the request.
type IdentifyError struct {
	PID    uint32
	Reason string
	Err    error
}

func (e *IdentifyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot identify pid %d: %s: %v", e.PID, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot identify pid %d: %s", e.PID, e.Reason)
}

func (e *IdentifyError) Unwrap() error { return e.Err }

func (e *IdentifyError) DBusError() *dbus.Error {
	return idbus.AccessDenied("Portal operation not allowed")
}

// Identifier classifies bus peers as flatpak, snap or host applications.
type Identifier struct {
	Creds CredentialsSource
	// ProcRoot defaults to /proc.
	ProcRoot string
}

func (id *Identifier) procRoot() string {
	if id.ProcRoot == "" {
		return defaultProcRoot
	}
	return id.ProcRoot
}

// Identify resolves the AppInfo for sender. Probes run flatpak first, then
// snap, then fall back to a host app with an id parsed from the systemd
// unit, if any.
func (id *Identifier) Identify(ctx context.Context, sender string) (*AppInfo, error) {
	creds, err := id.Creds.Credentials(ctx, sender)
	if err != nil {
		return nil, &IdentifyError{Reason: "cannot get credentials of " + sender, Err: err}
	}
	if !creds.HasPID {
		return nil, &IdentifyError{Reason: "bus did not report a pid for " + sender}
	}
	pid := creds.PID

	info, err := id.identifyFlatpak(pid)
	if errors.Is(err, errNotSandboxed) {
		var cgroup []byte
		cgroup, err = id.readCgroup(pid)
		if err != nil {
			return nil, &IdentifyError{PID: pid, Reason: "cannot read cgroup", Err: err}
		}
		info, err = id.identifySnap(ctx, pid, cgroup)
		if errors.Is(err, errNotSandboxed) {
			info, err = &AppInfo{
				kind:       KindHost,
				id:         appIDFromUnit(cgroupUnit(cgroup)),
				pid:        pid,
				hasNetwork: true,
			}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	info.sender = sender
	info.uid = creds.UID
	info.procRoot = id.procRoot()
	info.pidns = id.pidNamespace(pid)

	logger.Debug("[appinfo] %s is %s", sender, info)
	return info, nil
}

func (id *Identifier) pidNamespace(pid uint32) uint64 {
	var st unix.Stat_t
	if err := unix.Stat(filepath.Join(id.procRoot(), strconv.FormatUint(uint64(pid), 10), "ns", "pid"), &st); err != nil {
		return 0
	}
	return st.Ino
}
