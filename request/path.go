package request

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/godbus/dbus/v5"

	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/options"
)

const (
	HandleTokenKey = "handle_token"
	DefaultToken   = "t"
)

// Claimer hands out object paths that are unique for the process lifetime.
// Departed reports senders that disconnected.
type Claimer interface {
	Claim(path string) bool
	Unclaim(path string)
	Departed(sender string) bool
}

// DepartedError is returned when an object is requested for a sender that
// already left the bus.
type DepartedError struct {
	Sender string
}

func (e *DepartedError) Error() string {
	return fmt.Sprintf("%s left the bus", e.Sender)
}

func (e *DepartedError) DBusError() *dbus.Error {
	return idbus.AccessDenied("Portal operation not allowed")
}

// TokenError is returned for a malformed handle token.
type TokenError struct {
	Key   string
	Token string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Key, e.Token)
}

func (e *TokenError) DBusError() *dbus.Error {
	return idbus.InvalidArgument("Invalid token")
}

// MangleSender turns a unique name into a path element: ":1.42" -> "1_42".
func MangleSender(sender string) string {
	return strings.ReplaceAll(strings.TrimPrefix(sender, ":"), ".", "_")
}

// Token reads key from options. A missing or empty token is DefaultToken.
func Token(opts map[string]dbus.Variant, key string) (string, error) {
	v, ok := opts[key]
	if !ok {
		return DefaultToken, nil
	}
	token, ok := v.Value().(string)
	if !ok {
		return "", &TokenError{Key: key, Token: v.String()}
	}
	if token == "" {
		return DefaultToken, nil
	}
	if !options.IsValidToken(token) {
		return "", &TokenError{Key: key, Token: token}
	}
	return token, nil
}

// AllocatePath claims base/<mangled sender>/<token>, appending a random
// element until the claim succeeds.
func AllocatePath(claims Claimer, base, sender, token string) dbus.ObjectPath {
	path := base + "/" + MangleSender(sender) + "/" + token
	candidate := path
	for !claims.Claim(candidate) {
		candidate = fmt.Sprintf("%s/%d", path, rand.Uint32())
	}
	return dbus.ObjectPath(candidate)
}
