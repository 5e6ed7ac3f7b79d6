// Package documents talks to the document store and moves file
// descriptors between callers, the broker and backends.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

const (
	methodGetMountPoint = idbus.DOCUMENTS_IFACE + ".GetMountPoint"
	methodGetHostPaths  = idbus.DOCUMENTS_IFACE + ".GetHostPaths"
	methodAddFull       = idbus.DOCUMENTS_IFACE + ".AddFull"
)

// AddFull flags
const (
	FlagReuseExisting   uint32 = 1 << 0
	FlagPersistent      uint32 = 1 << 1
	FlagAsNeededByApp   uint32 = 1 << 2
	FlagExportDirectory uint32 = 1 << 3
)

// DocumentError wraps a failed document store call.
type DocumentError struct {
	Op  string
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document store %s: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Client is a document store client. It implements
// appinfo.DocumentResolver.
type Client struct {
	obj     idbus.Caller
	timeout time.Duration

	mu    sync.RWMutex
	mount string
}

func New(conn idbus.Conn, timeout time.Duration) *Client {
	return NewWithCaller(conn.Proxy(idbus.DOCUMENTS_BUS_NAME, idbus.DOCUMENTS_PATH), timeout)
}

func NewWithCaller(obj idbus.Caller, timeout time.Duration) *Client {
	return &Client{obj: obj, timeout: timeout}
}

// Init fetches the mount point. A missing document store is not fatal:
// paths are then never treated as documents.
func (c *Client) Init(ctx context.Context) error {
	var raw []byte
	call := idbus.Call(ctx, c.obj, c.timeout, methodGetMountPoint)
	if call.Err != nil {
		return &DocumentError{Op: "get mount point", Err: call.Err}
	}
	if err := call.Store(&raw); err != nil {
		return &DocumentError{Op: "get mount point", Err: err}
	}

	mount := string(bytes.TrimRight(raw, "\x00"))
	if mount != "" {
		mount = filepath.Clean(mount)
	}
	c.mu.Lock()
	c.mount = mount
	c.mu.Unlock()
	logger.Debug("[documents] mount point is %s", mount)
	return nil
}

func (c *Client) MountPoint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mount
}

// docID splits a path below the mount point into the document id and the
// elements after the document's own directory entry.
func docID(mount, docPath string) (string, []string, error) {
	rel, ok := strings.CutPrefix(docPath, mount+"/")
	if !ok {
		return "", nil, fmt.Errorf("%s is not below %s", docPath, mount)
	}
	parts := strings.Split(rel, "/")
	if parts[0] == "by-app" {
		// by-app/<app id>/<doc id>/...
		if len(parts) < 3 {
			return "", nil, fmt.Errorf("%s is not a document", docPath)
		}
		parts = parts[2:]
	}
	if len(parts) < 2 || parts[0] == "" {
		return "", nil, fmt.Errorf("%s is not a document", docPath)
	}
	return parts[0], parts[2:], nil
}

// HostPath resolves a path inside the document mount to the file it
// exposes.
func (c *Client) HostPath(ctx context.Context, docPath string) (string, error) {
	id, rest, err := docID(c.MountPoint(), docPath)
	if err != nil {
		return "", &DocumentError{Op: "resolve", Err: err}
	}

	var paths map[string][]byte
	call := idbus.Call(ctx, c.obj, c.timeout, methodGetHostPaths, []string{id})
	if call.Err != nil {
		return "", &DocumentError{Op: "get host paths", Err: call.Err}
	}
	if err := call.Store(&paths); err != nil {
		return "", &DocumentError{Op: "get host paths", Err: err}
	}
	raw, ok := paths[id]
	if !ok || len(raw) == 0 {
		return "", &DocumentError{Op: "get host paths", Err: fmt.Errorf("unknown document %s", id)}
	}

	host := string(bytes.TrimRight(raw, "\x00"))
	if len(rest) > 0 {
		host = filepath.Join(append([]string{host}, rest...)...)
	}
	return host, nil
}

// Register makes host paths available to appID through the document
// store and returns the paths the app sees.
func (c *Client) Register(ctx context.Context, appID string, paths []string, permissions []string, flags uint32) ([]string, error) {
	mount := c.MountPoint()
	if mount == "" {
		return nil, &DocumentError{Op: "register", Err: fmt.Errorf("document store unavailable")}
	}

	fds := make([]dbus.UnixFD, 0, len(paths))
	defer func() {
		for _, fd := range fds {
			unix.Close(int(fd))
		}
	}()
	for _, p := range paths {
		fd, err := unix.Open(p, unix.O_PATH|unix.O_CLOEXEC, 0)
		if err != nil {
			return nil, &DocumentError{Op: "register", Err: err}
		}
		fds = append(fds, dbus.UnixFD(fd))
	}

	var (
		ids   []string
		extra map[string]dbus.Variant
	)
	call := idbus.Call(ctx, c.obj, c.timeout, methodAddFull, fds, flags, appID, permissions)
	if call.Err != nil {
		return nil, &DocumentError{Op: "register", Err: call.Err}
	}
	if err := call.Store(&ids, &extra); err != nil {
		return nil, &DocumentError{Op: "register", Err: err}
	}
	if len(ids) != len(paths) {
		return nil, &DocumentError{Op: "register", Err: fmt.Errorf("got %d ids for %d paths", len(ids), len(paths))}
	}

	out := make([]string, len(paths))
	for i, id := range ids {
		if id == "" {
			// not exported, the app can already see the host path
			out[i] = paths[i]
			continue
		}
		out[i] = filepath.Join(mount, id, filepath.Base(paths[i]))
	}
	return out, nil
}
