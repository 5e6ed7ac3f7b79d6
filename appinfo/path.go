package appinfo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

var selfFDDir = "/proc/self/fd"

// DocumentResolver maps paths inside the document portal mount back to
// the files they expose.
type DocumentResolver interface {
	MountPoint() string
	HostPath(ctx context.Context, docPath string) (string, error)
}

// PathError is returned when a caller supplied fd cannot be mapped. Its
// bus form never names the path.
type PathError struct {
	FD     int
	Reason string
	Err    error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fd %d: %s: %v", e.FD, e.Reason, e.Err)
	}
	return fmt.Sprintf("fd %d: %s", e.FD, e.Reason)
}

func (e *PathError) Unwrap() error { return e.Err }

func (e *PathError) DBusError() *dbus.Error {
	return idbus.InvalidArgument("Invalid file descriptor")
}

func sameFile(a, b *unix.Stat_t) bool {
	return a.Dev == b.Dev && a.Ino == b.Ino
}

// PathForFD returns the host path behind fd and whether the caller opened
// it for writing. The fd stays owned by the caller.
func (a *AppInfo) PathForFD(ctx context.Context, fd int, docs DocumentResolver) (string, bool, error) {
	fail := func(reason string, err error) (string, bool, error) {
		perr := &PathError{FD: fd, Reason: reason, Err: err}
		logger.Debug("[appinfo] %s: %v", a, perr)
		return "", false, perr
	}

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return fail("fcntl failed", err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return fail("fstat failed", err)
	}
	if ft := st.Mode & unix.S_IFMT; ft != unix.S_IFREG && ft != unix.S_IFDIR {
		return fail("not a regular file or directory", nil)
	}

	path, err := os.Readlink(filepath.Join(selfFDDir, strconv.Itoa(fd)))
	if err != nil {
		return fail("readlink failed", err)
	}
	if !filepath.IsAbs(path) || strings.HasSuffix(path, " (deleted)") {
		return fail("fd has no usable path", nil)
	}

	var writable bool
	switch {
	case flags&unix.O_PATH != 0:
		writable = unix.Access(path, unix.W_OK) == nil
	case flags&unix.O_ACCMODE == unix.O_WRONLY, flags&unix.O_ACCMODE == unix.O_RDWR:
		writable = true
	}

	if docs != nil {
		if mount := docs.MountPoint(); mount != "" && strings.HasPrefix(path, mount+"/") {
			host, err := docs.HostPath(ctx, path)
			if err != nil {
				return fail("document lookup failed", err)
			}
			return host, writable, nil
		}
	}

	// The path must name the very same file on the host...
	var hostSt unix.Stat_t
	if err := unix.Stat(path, &hostSt); err != nil || !sameFile(&st, &hostSt) {
		return fail("path does not match fd", err)
	}
	// ...and inside the sandbox.
	if !a.IsHost() {
		inside := filepath.Join(a.procRoot, strconv.FormatUint(uint64(a.pid), 10), "root", path)
		var sbSt unix.Stat_t
		if err := unix.Stat(inside, &sbSt); err != nil || !sameFile(&st, &sbSt) {
			return fail("path not visible to the sandbox", err)
		}
	}

	return path, writable, nil
}
