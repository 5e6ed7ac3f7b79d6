// Package email implements org.freedesktop.portal.Email.
package email

import (
	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/documents"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/options"
)

const (
	Interface = idbus.PORTAL_PREFIX + "Email"

	implComposeEmail = idbus.IMPL_PORTAL_PREFIX + "Email.ComposeEmail"
	attachmentFDs    = "attachment_fds"
)

var composeOptions = []options.Key{
	{Key: "address", Type: "s", Validate: options.ValidateEmail},
	{Key: "addresses", Type: "as", Validate: options.ValidateEmails},
	{Key: "cc", Type: "as", Validate: options.ValidateEmails},
	{Key: "bcc", Type: "as", Validate: options.ValidateEmails},
	{Key: "subject", Type: "s", Validate: options.ValidateSingleLine},
	{Key: "body", Type: "s"},
	{Key: "activation_token", Type: "s"},
}

type Portal struct {
	b    *broker.Broker
	impl string
}

// New returns nil when no backend implements the interface.
func New(b *broker.Broker) *Portal {
	impl := b.Impl(Interface)
	if impl == nil {
		return nil
	}
	logger.Debug("[email] using backend %s", impl.DBusName)
	return &Portal{b: b, impl: impl.DBusName}
}

func (p *Portal) Interface() string { return Interface }
func (p *Portal) Version() uint32   { return 4 }

func (p *Portal) Methods() map[string]broker.HandlerFunc {
	return map[string]broker.HandlerFunc{
		"ComposeEmail": p.composeEmail,
	}
}

func (p *Portal) composeEmail(inv *broker.Invocation) ([]interface{}, error) {
	parent, _ := inv.Args[0].(string)
	raw := inv.Options()

	opts, err := options.Filter(raw, composeOptions)
	if err != nil {
		return nil, err
	}

	if fds, ok := raw[attachmentFDs]; ok {
		mapped, err := documents.MapFDOptions(inv.Ctx, inv.App, p.b.DocumentResolver(),
			map[string]dbus.Variant{attachmentFDs: fds},
			documents.FDKey{From: attachmentFDs, To: "attachments"})
		if err != nil {
			return nil, err
		}
		opts["attachments"] = mapped["attachments"]
	}

	p.b.Forward(inv.Request, p.impl, implComposeEmail, inv.App.ID(), parent, opts)
	return nil, nil
}
