package appinfo

import (
	"context"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
)

// Credentials is the subset of GetConnectionCredentials the broker uses.
type Credentials struct {
	UID    uint32
	PID    uint32
	HasUID bool
	HasPID bool
}

// CredentialsSource looks up the credentials of a bus peer.
type CredentialsSource interface {
	Credentials(ctx context.Context, sender string) (Credentials, error)
}

// BusCredentials asks the message bus daemon.
type BusCredentials struct {
	Bus     idbus.Caller
	Timeout time.Duration
}

func (b *BusCredentials) Credentials(ctx context.Context, sender string) (Credentials, error) {
	var raw map[string]dbus.Variant
	call := idbus.Call(ctx, b.Bus, b.Timeout, idbus.BUS_GET_CREDS, sender)
	if call.Err != nil {
		return Credentials{}, call.Err
	}
	if err := call.Store(&raw); err != nil {
		return Credentials{}, fmt.Errorf("cannot parse credentials of %s: %w", sender, err)
	}

	var creds Credentials
	if v, ok := raw["UnixUserID"]; ok {
		creds.UID, creds.HasUID = idbus.ExtractUint32(v)
	}
	if v, ok := raw["ProcessID"]; ok {
		creds.PID, creds.HasPID = idbus.ExtractUint32(v)
	}
	return creds, nil
}
