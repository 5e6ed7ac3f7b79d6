// Package broker is the process wide portal context: it exports portals,
// authorises their callers, tracks peers and talks to backends.
package broker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"gopkg.in/tomb.v2"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/cache"
	"github.com/b0bbywan/go-desktop-portal/documents"
	"github.com/b0bbywan/go-desktop-portal/events"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/logger"
	"github.com/b0bbywan/go-desktop-portal/methodinfo"
	"github.com/b0bbywan/go-desktop-portal/metrics"
	"github.com/b0bbywan/go-desktop-portal/permission"
	"github.com/b0bbywan/go-desktop-portal/portalconfig"
	"github.com/b0bbywan/go-desktop-portal/request"
	"github.com/b0bbywan/go-desktop-portal/session"
)

type Options struct {
	Conn     idbus.Conn
	Resolver *portalconfig.Resolver
	// Apps identifies callers. Defaults to an Identifier asking the bus
	// daemon for credentials.
	Apps appinfo.Source
	// Timeout bounds backend calls. Zero leaves them to the caller's
	// lifetime.
	Timeout time.Duration
	Metrics *metrics.Metrics
}

type Broker struct {
	Resolver    *portalconfig.Resolver
	Apps        *appinfo.Registry
	Requests    *request.Manager
	Sessions    *session.Manager
	Permissions *permission.Store
	Documents   *documents.Client
	Events      *events.Dispatcher
	Metrics     *metrics.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	conn    idbus.Conn
	claims  *request.Claims
	timeout time.Duration

	lockdown idbus.Caller
	helpers  HelperInfo
	// owners maps backend bus names to their current unique name.
	owners   *cache.Cache[string, string]

	mu      sync.RWMutex
	portals map[string]*exported

	sigMu       sync.Mutex
	implSignals map[string][]func(*dbus.Signal)
	started     bool

	tomb     tomb.Tomb
	signals  chan *dbus.Signal
	nameLost chan struct{}
	lostOnce sync.Once
	watcher  *portalconfig.Watcher
	unsubs   []func()
}

type exported struct {
	portal  Portal
	flags   ExportFlags
	methods []methodinfo.MethodInfo
}

func New(ctx context.Context, opts Options) (*Broker, error) {
	if opts.Conn == nil || opts.Resolver == nil {
		return nil, fmt.Errorf("broker: connection and resolver are required")
	}
	ctx, cancel := context.WithCancel(ctx)

	src := opts.Apps
	if src == nil {
		src = &appinfo.Identifier{Creds: &appinfo.BusCredentials{
			Bus:     opts.Conn.Proxy(idbus.DBUS_INTERFACE, idbus.DBUS_PATH),
			Timeout: opts.Timeout,
		}}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	claims := request.NewClaims()
	ev := events.NewDispatcher()
	b := &Broker{
		Resolver:    opts.Resolver,
		Apps:        appinfo.NewRegistry(src),
		Requests:    request.NewManager(ctx, opts.Conn, claims, ev, opts.Timeout),
		Sessions:    session.NewManager(ctx, opts.Conn, claims, ev, opts.Timeout),
		Permissions: permission.New(opts.Conn, opts.Timeout),
		Documents:   documents.New(opts.Conn, opts.Timeout),
		Events:      ev,
		Metrics:     m,
		ctx:         ctx,
		cancel:      cancel,
		conn:        opts.Conn,
		claims:      claims,
		timeout:     opts.Timeout,
		owners:      cache.New[string, string](0),
		portals:     make(map[string]*exported),
		implSignals: make(map[string][]func(*dbus.Signal)),
		signals:     make(chan *dbus.Signal, 64),
		nameLost:    make(chan struct{}),
	}

	if impl := b.Resolver.FindImpl(idbus.LOCKDOWN_IMPL_IFACE); impl != nil {
		b.lockdown = b.conn.Proxy(impl.DBusName, idbus.DESKTOP_PATH)
		b.helpers.Lockdown = impl.DBusName
	}
	if impl := b.Resolver.FindImpl(idbus.ACCESS_IMPL_IFACE); impl != nil {
		b.helpers.Access = impl.DBusName
	}

	b.unsubs = append(b.unsubs, ev.Subscribe(events.TypePeerDisconnected, b.peerGone))

	m.Gauge("live_requests", "Requests waiting for a response", func() float64 { return float64(b.Requests.Len()) })
	m.Gauge("live_sessions", "Open sessions", func() float64 { return float64(b.Sessions.Len()) })
	m.Gauge("known_peers", "Callers with a cached identity", func() float64 { return float64(b.Apps.Len()) })

	if err := b.exportProperties(); err != nil {
		cancel()
		return nil, err
	}
	return b, nil
}

// Init prepares the helper services. Their absence is not fatal.
func (b *Broker) Init(ctx context.Context) {
	if err := b.Documents.Init(ctx); err != nil {
		logger.Warn("[broker] document portal unavailable: %v", err)
	}
}

func (b *Broker) Context() context.Context { return b.ctx }
func (b *Broker) Timeout() time.Duration   { return b.timeout }
func (b *Broker) Conn() idbus.Conn         { return b.conn }

// HelperInfo names the lockdown and access backends. Empty names mean
// none is configured.
type HelperInfo struct {
	Lockdown string `json:"lockdown,omitempty"`
	Access   string `json:"access,omitempty"`
}

func (b *Broker) Helpers() HelperInfo { return b.helpers }

// DocumentResolver returns the document store for fd mapping, or nil
// when it is not running.
func (b *Broker) DocumentResolver() appinfo.DocumentResolver {
	if b.Documents.MountPoint() == "" {
		return nil
	}
	return b.Documents
}

// LockdownState reads the boolean keys of the lockdown backend.
func (b *Broker) LockdownState(ctx context.Context) (map[string]bool, error) {
	out := map[string]bool{}
	if b.lockdown == nil {
		return out, nil
	}
	props, err := idbus.GetAllProperties(ctx, b.lockdown, b.timeout, idbus.LOCKDOWN_IMPL_IFACE)
	if err != nil {
		return nil, err
	}
	for key, v := range props {
		if locked, ok := idbus.ExtractBool(v); ok {
			out[key] = locked
		}
	}
	return out, nil
}

// peerGone drops everything a vanished caller owned.
func (b *Broker) peerGone(e events.Event) {
	data, ok := e.Data.(events.PeerDisconnected)
	if !ok {
		return
	}
	// objects created for the sender from now on are refused
	b.claims.Depart(data.Sender)
	b.Apps.Delete(data.Sender)
	reqs := b.Requests.CloseForSender(data.Sender)
	sessions := b.Sessions.CloseForSender(data.Sender)
	perms := b.Permissions.ForgetSender(data.Sender)
	if reqs+sessions+perms > 0 {
		logger.Debug("[broker] %s left: closed %d requests, %d sessions, dropped %d transient permissions",
			data.Sender, reqs, sessions, perms)
	}
}

// PortalInfo describes an exported portal.
type PortalInfo struct {
	Interface string   `json:"interface"`
	Version   uint32   `json:"version"`
	Host      bool     `json:"host,omitempty"`
	Backend   string   `json:"backend,omitempty"`
	Methods   []string `json:"methods"`
}

func (b *Broker) Portals() []PortalInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]PortalInfo, 0, len(b.portals))
	for name, e := range b.portals {
		info := PortalInfo{
			Interface: name,
			Version:   e.portal.Version(),
			Host:      e.flags&HostPortal != 0,
		}
		if impl := b.Resolver.FindImpl(name); impl != nil {
			info.Backend = impl.DBusName
		}
		for _, mi := range e.methods {
			info.Methods = append(info.Methods, mi.Method)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interface < out[j].Interface })
	return out
}

// Close tears down every Request and Session and stops the background
// loops.
func (b *Broker) Close() {
	b.sigMu.Lock()
	started := b.started
	b.sigMu.Unlock()
	if started {
		b.tomb.Kill(nil)
		if err := b.tomb.Wait(); err != nil {
			logger.Warn("[broker] signal loop: %v", err)
		}
		b.conn.RemoveSignal(b.signals)
	}
	if b.watcher != nil {
		if err := b.watcher.Stop(); err != nil {
			logger.Warn("[broker] config watcher: %v", err)
		}
	}

	b.Requests.CloseAll()
	b.Sessions.CloseAll()
	for _, unsub := range b.unsubs {
		unsub()
	}
	b.cancel()
	b.Events.Close()
	logger.Info("[broker] stopped")
}
