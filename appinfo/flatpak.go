package appinfo

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mvo5/goconfigparser"

	"github.com/b0bbywan/go-desktop-portal/logger"
)

const (
	flatpakInfoFile = ".flatpak-info"

	flatpakGroupApplication = "Application"
	flatpakGroupRuntime     = "Runtime"
	flatpakGroupInstance    = "Instance"
	flatpakGroupContext     = "Context"
	flatpakGroupUsb         = "USB Devices"
)

// errNotSandboxed means the probe did not recognise the caller.
var errNotSandboxed = errors.New("not sandboxed by this kind")

func (id *Identifier) flatpakInfoPath(pid uint32) string {
	return filepath.Join(id.procRoot(), strconv.FormatUint(uint64(pid), 10), "root", flatpakInfoFile)
}

// identifyFlatpak reads the metadata flatpak bind-mounts into every
// sandbox.
func (id *Identifier) identifyFlatpak(pid uint32) (*AppInfo, error) {
	f, err := os.Open(id.flatpakInfoPath(pid))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errNotSandboxed
		}
		return nil, &IdentifyError{PID: pid, Reason: "cannot open flatpak metadata", Err: err}
	}
	defer f.Close()

	// A regular file is expected; anything else is a spoofing attempt.
	st, err := f.Stat()
	if err != nil || !st.Mode().IsRegular() {
		return nil, &IdentifyError{PID: pid, Reason: "flatpak metadata is not a regular file"}
	}

	cfg := goconfigparser.New()
	if err := cfg.Read(f); err != nil {
		return nil, &IdentifyError{PID: pid, Reason: "cannot parse flatpak metadata", Err: err}
	}

	group := flatpakGroupApplication
	if _, err := cfg.Options(flatpakGroupRuntime); err == nil {
		group = flatpakGroupRuntime
	}
	name, err := cfg.Get(group, "name")
	if err != nil || strings.TrimSpace(name) == "" {
		return nil, &IdentifyError{PID: pid, Reason: "flatpak metadata has no name"}
	}

	info := &AppInfo{
		kind: KindFlatpak,
		id:   strings.TrimSpace(name),
		pid:  pid,
	}
	if instance, err := cfg.Get(flatpakGroupInstance, "instance-id"); err == nil {
		info.instance = strings.TrimSpace(instance)
	}
	if shared, err := cfg.Get(flatpakGroupContext, "shared"); err == nil {
		for _, s := range splitList(shared) {
			if s == "network" {
				info.hasNetwork = true
			}
		}
	}

	for _, src := range []struct {
		key string
		typ UsbQueryType
	}{
		{"enumerable-devices", UsbQueryEnumerable},
		{"hidden-devices", UsbQueryHidden},
	} {
		raw, err := cfg.Get(flatpakGroupUsb, src.key)
		if err != nil {
			continue
		}
		queries, err := ParseUsbQueries(src.typ, raw)
		if err != nil {
			logger.Warn("[appinfo] ignoring invalid %s for %s: %v", src.key, info.id, err)
			continue
		}
		info.usbQueries = append(info.usbQueries, queries...)
	}

	return info, nil
}
