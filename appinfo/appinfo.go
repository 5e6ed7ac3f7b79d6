// Package appinfo identifies the application behind a bus connection.
package appinfo

import (
	"fmt"
)

type Kind int

const (
	KindHost Kind = iota
	KindFlatpak
	KindSnap
)

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindFlatpak:
		return "flatpak"
	case KindSnap:
		return "snap"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// AppInfo is the identity of one caller. It is immutable once published
// by the Registry.
type AppInfo struct {
	kind       Kind
	id         string
	sender     string
	instance   string
	pid        uint32
	uid        uint32
	pidns      uint64
	usbQueries []UsbQuery
	hasNetwork bool
	registered bool

	procRoot string
}

func (a *AppInfo) Kind() Kind       { return a.kind }
func (a *AppInfo) ID() string       { return a.id }
func (a *AppInfo) Sender() string   { return a.sender }
func (a *AppInfo) Instance() string { return a.instance }
func (a *AppInfo) PID() uint32      { return a.pid }
func (a *AppInfo) UID() uint32      { return a.uid }

// PIDNamespace returns the inode of the caller's pid namespace, or 0 when
// it could not be determined.
func (a *AppInfo) PIDNamespace() uint64 { return a.pidns }

func (a *AppInfo) HasNetwork() bool { return a.hasNetwork }
func (a *AppInfo) IsHost() bool     { return a.kind == KindHost }

// Registered reports whether the app id was set through host registration.
func (a *AppInfo) Registered() bool { return a.registered }

// UsbQueries returns the device rules declared by the sandbox.
func (a *AppInfo) UsbQueries() []UsbQuery {
	return append([]UsbQuery(nil), a.usbQueries...)
}

func (a *AppInfo) String() string {
	if a.id == "" {
		return fmt.Sprintf("%s(%s)", a.kind, a.sender)
	}
	return fmt.Sprintf("%s:%s(%s)", a.kind, a.id, a.sender)
}

// Info is the serialisable view of an AppInfo.
type Info struct {
	Sender     string `json:"sender"`
	Kind       string `json:"kind"`
	ID         string `json:"app_id"`
	Instance   string `json:"instance,omitempty"`
	PID        uint32 `json:"pid,omitempty"`
	HasNetwork bool   `json:"has_network"`
	Registered bool   `json:"registered,omitempty"`
}

func (a *AppInfo) Info() Info {
	return Info{
		Sender:     a.sender,
		Kind:       a.kind.String(),
		ID:         a.id,
		Instance:   a.instance,
		PID:        a.pid,
		HasNetwork: a.hasNetwork,
		Registered: a.registered,
	}
}

// NewHost builds a host AppInfo. It is mostly useful to callers that need
// an identity without going through a Registry.
func NewHost(sender, id string) *AppInfo {
	return &AppInfo{kind: KindHost, sender: sender, id: id, hasNetwork: true, procRoot: defaultProcRoot}
}
