package documents

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
)

// FDKey names an option holding caller fds (h, ah or a{sh}) and the key
// the resolved paths are forwarded under (s, as or a{ss}).
type FDKey struct {
	From string
	To   string
}

// SpliceError is returned when a backend reply references an fd that did
// not come with it.
type SpliceError struct {
	Index uint32
}

func (e *SpliceError) Error() string {
	return fmt.Sprintf("bad file descriptor index %d", e.Index)
}

func (e *SpliceError) DBusError() *dbus.Error {
	return idbus.Failed("bad file descriptor index")
}

func invalidFD(key string) error {
	return &appinfo.PathError{FD: -1, Reason: "option " + key + " does not hold file descriptors"}
}

// MapFDOptions resolves the fds of keys through app and returns a copy of
// opts where they are replaced by host paths. The fds stay open.
func MapFDOptions(ctx context.Context, app *appinfo.AppInfo, docs appinfo.DocumentResolver, opts map[string]dbus.Variant, keys ...FDKey) (map[string]dbus.Variant, error) {
	out := make(map[string]dbus.Variant, len(opts))
	for k, v := range opts {
		out[k] = v
	}

	resolve := func(fd int) (string, error) {
		path, _, err := app.PathForFD(ctx, fd, docs)
		return path, err
	}

	for _, key := range keys {
		v, ok := opts[key.From]
		if !ok {
			continue
		}
		delete(out, key.From)

		switch raw := v.Value().(type) {
		case dbus.UnixFD:
			path, err := resolve(int(raw))
			if err != nil {
				return nil, err
			}
			out[key.To] = dbus.MakeVariant(path)
		case []dbus.UnixFD:
			fds := make([]int, len(raw))
			for i, fd := range raw {
				fds[i] = int(fd)
			}
			paths, err := mapAll(ctx, fds, resolve)
			if err != nil {
				return nil, err
			}
			out[key.To] = dbus.MakeVariant(paths)
		case map[string]dbus.UnixFD:
			names := make([]string, 0, len(raw))
			fds := make([]int, 0, len(raw))
			for name, fd := range raw {
				names = append(names, name)
				fds = append(fds, int(fd))
			}
			paths, err := mapAll(ctx, fds, resolve)
			if err != nil {
				return nil, err
			}
			mapped := make(map[string]string, len(names))
			for i, name := range names {
				mapped[name] = paths[i]
			}
			out[key.To] = dbus.MakeVariant(mapped)
		default:
			// UnixFDIndex means the fd list was lost on the way in
			return nil, invalidFD(key.From)
		}
	}
	return out, nil
}

// mapAll resolves fds concurrently, keeping their order.
func mapAll(ctx context.Context, fds []int, resolve func(int) (string, error)) ([]string, error) {
	paths := make([]string, len(fds))
	g, _ := errgroup.WithContext(ctx)
	for i, fd := range fds {
		g.Go(func() error {
			p, err := resolve(fd)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// SpliceFDs rewrites the fd handles of a backend reply so they travel
// with the signal sent to the caller. fds is the list the reply carried,
// if the transport left indices unresolved.
func SpliceFDs(results map[string]dbus.Variant, fds []int) (map[string]dbus.Variant, error) {
	out := make(map[string]dbus.Variant, len(results))
	for k, v := range results {
		nv, err := spliceVariant(v, fds)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func spliceIndex(idx dbus.UnixFDIndex, fds []int) (dbus.UnixFD, error) {
	if int(idx) >= len(fds) {
		return -1, &SpliceError{Index: uint32(idx)}
	}
	return dbus.UnixFD(fds[idx]), nil
}

func spliceVariant(v dbus.Variant, fds []int) (dbus.Variant, error) {
	nv, changed, err := spliceValue(v.Value(), fds)
	if err != nil || !changed {
		return v, err
	}
	return dbus.MakeVariant(nv), nil
}

func spliceValue(v interface{}, fds []int) (interface{}, bool, error) {
	switch val := v.(type) {
	case dbus.UnixFDIndex:
		fd, err := spliceIndex(val, fds)
		return fd, true, err
	case []dbus.UnixFDIndex:
		out := make([]dbus.UnixFD, len(val))
		for i, idx := range val {
			fd, err := spliceIndex(idx, fds)
			if err != nil {
				return nil, false, err
			}
			out[i] = fd
		}
		return out, true, nil
	case map[string]dbus.UnixFDIndex:
		out := make(map[string]dbus.UnixFD, len(val))
		for k, idx := range val {
			fd, err := spliceIndex(idx, fds)
			if err != nil {
				return nil, false, err
			}
			out[k] = fd
		}
		return out, true, nil
	case dbus.Variant:
		nv, err := spliceVariant(val, fds)
		return nv, err == nil, err
	case map[string]dbus.Variant:
		out, err := SpliceFDs(val, fds)
		return out, err == nil, err
	case []dbus.Variant:
		out := make([]dbus.Variant, len(val))
		for i, item := range val {
			nv, err := spliceVariant(item, fds)
			if err != nil {
				return nil, false, err
			}
			out[i] = nv
		}
		return out, true, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		changed := false
		for i, item := range val {
			nv, c, err := spliceValue(item, fds)
			if err != nil {
				return nil, false, err
			}
			out[i], changed = nv, changed || c
		}
		return out, changed, nil
	}
	return v, false, nil
}

// CollectFDs returns every fd held by values, looking into variants,
// maps and structs.
func CollectFDs(values ...interface{}) []int {
	var out []int
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch val := v.(type) {
		case dbus.UnixFD:
			out = append(out, int(val))
		case []dbus.UnixFD:
			for _, fd := range val {
				out = append(out, int(fd))
			}
		case map[string]dbus.UnixFD:
			for _, fd := range val {
				out = append(out, int(fd))
			}
		case dbus.Variant:
			walk(val.Value())
		case map[string]dbus.Variant:
			for _, item := range val {
				walk(item.Value())
			}
		case []dbus.Variant:
			for _, item := range val {
				walk(item.Value())
			}
		case []interface{}:
			for _, item := range val {
				walk(item)
			}
		}
	}
	for _, v := range values {
		walk(v)
	}
	return out
}

// CloseFDs closes fds the broker owns, ignoring errors.
func CloseFDs(fds []int) {
	for _, fd := range fds {
		if fd >= 0 {
			unix.Close(fd)
		}
	}
}
