package appinfo

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mvo5/goconfigparser"
)

const snapInfoGroup = "Snap Info"

// snapCommand runs "snap routine portal-info"; tests replace it.
var snapCommand = func(ctx context.Context, pid uint32) ([]byte, error) {
	return exec.CommandContext(ctx, "snap", "routine", "portal-info", strconv.FormatUint(uint64(pid), 10)).Output()
}

// cgroupUnit returns the systemd unit name the process is tracked in, taken
// from the unified hierarchy or the v1 name=systemd controller.
func cgroupUnit(cgroupFile []byte) string {
	var unit string
	sc := bufio.NewScanner(bytes.NewReader(cgroupFile))
	for sc.Scan() {
		// hierarchy-ID:controller-list:cgroup-path
		parts := strings.SplitN(sc.Text(), ":", 3)
		if len(parts) != 3 {
			continue
		}
		if parts[1] == "" || parts[1] == "name=systemd" {
			unit = filepath.Base(parts[2])
			if parts[1] == "name=systemd" {
				break
			}
		}
	}
	return unit
}

func (id *Identifier) readCgroup(pid uint32) ([]byte, error) {
	return os.ReadFile(filepath.Join(id.procRoot(), strconv.FormatUint(uint64(pid), 10), "cgroup"))
}

// snapSecurityTag extracts "snap.<instance>.<app>" from a unit name like
// snap.foo.bar-1234.scope or snap.foo.bar.service.
func snapSecurityTag(unit string) (instance, app string, ok bool) {
	if !strings.HasPrefix(unit, "snap.") {
		return "", "", false
	}
	tag := unit
	switch {
	case strings.HasSuffix(tag, ".scope"):
		tag = strings.TrimSuffix(tag, ".scope")
		if i := strings.LastIndexByte(tag, '-'); i > 0 {
			tag = tag[:i]
		}
	case strings.HasSuffix(tag, ".service"):
		tag = strings.TrimSuffix(tag, ".service")
	default:
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(tag, "snap."), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// identifySnap checks the cgroup for a snap security tag and then asks
// snapd for the authoritative details.
func (id *Identifier) identifySnap(ctx context.Context, pid uint32, cgroup []byte) (*AppInfo, error) {
	if _, _, ok := snapSecurityTag(cgroupUnit(cgroup)); !ok {
		return nil, errNotSandboxed
	}

	out, err := snapCommand(ctx, pid)
	if err != nil {
		return nil, &IdentifyError{PID: pid, Reason: "snap routine portal-info failed", Err: err}
	}
	cfg := goconfigparser.New()
	if err := cfg.Read(bytes.NewReader(out)); err != nil {
		return nil, &IdentifyError{PID: pid, Reason: "cannot parse snap portal info", Err: err}
	}
	name, err := cfg.Get(snapInfoGroup, "InstanceName")
	if err != nil || strings.TrimSpace(name) == "" {
		return nil, &IdentifyError{PID: pid, Reason: "snap portal info has no instance name"}
	}

	info := &AppInfo{
		kind: KindSnap,
		id:   "snap." + strings.TrimSpace(name),
		pid:  pid,
	}
	if network, err := cfg.Get(snapInfoGroup, "HasNetworkStatus"); err == nil {
		info.hasNetwork = strings.TrimSpace(network) == "true"
	}
	return info, nil
}
