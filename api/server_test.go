package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/config"
	idbus "github.com/b0bbywan/go-desktop-portal/internal/dbus"
	"github.com/b0bbywan/go-desktop-portal/internal/dbustest"
	"github.com/b0bbywan/go-desktop-portal/internal/portaltest"
	"github.com/b0bbywan/go-desktop-portal/portals"
	"github.com/b0bbywan/go-desktop-portal/request"
	"github.com/b0bbywan/go-desktop-portal/session"
)

func newTestServer(t *testing.T) (*Server, *portaltest.Harness) {
	t.Helper()
	h := portaltest.New(t, portaltest.Test.With("Email", "Inhibit"))
	if err := portals.Register(h.Broker); err != nil {
		t.Fatalf("register portals: %v", err)
	}
	s := NewServer(&config.StatusConfig{Enabled: true, Listen: "127.0.0.1:0"}, h.Broker)
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	return s, h
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServerDisabled(t *testing.T) {
	h := portaltest.New(t, portaltest.Test.With("Email"))
	tests := []struct {
		name string
		cfg  *config.StatusConfig
		b    *broker.Broker
	}{
		{"nil config", nil, h.Broker},
		{"disabled", &config.StatusConfig{Enabled: false, Listen: "127.0.0.1:8019"}, h.Broker},
		{"no broker", &config.StatusConfig{Enabled: true, Listen: "127.0.0.1:8019"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s := NewServer(tt.cfg, tt.b); s != nil {
				t.Error("NewServer should return nil")
			}
		})
	}
}

func TestUnknownRoutes(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/", "/nope", "/portals/extra"} {
		if w := get(t, s, path); w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/portals", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /portals = %d, want 405", w.Code)
	}
}

func TestPortalsRoute(t *testing.T) {
	s, _ := newTestServer(t)
	w := get(t, s, "/portals")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var got []broker.PortalInfo
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	names := map[string]broker.PortalInfo{}
	for _, p := range got {
		names[p.Interface] = p
	}
	email, ok := names["org.freedesktop.portal.Email"]
	if !ok {
		t.Fatalf("Email missing from %v", got)
	}
	if email.Backend != portaltest.Test.Name || email.Version != 4 {
		t.Errorf("unexpected Email entry %+v", email)
	}
	if !names["org.freedesktop.host.portal.Registry"].Host {
		t.Error("Registry should be flagged as host portal")
	}
	if _, ok := names["org.freedesktop.portal.Settings"]; ok {
		t.Error("Settings has no backend and should not be exported")
	}
}

func TestObjectRoutes(t *testing.T) {
	s, h := newTestServer(t)
	h.On(portaltest.Test.Name, "org.freedesktop.impl.portal.Inhibit.CreateMonitor", func(context.Context, dbustest.Call) *dbus.Call {
		return dbustest.Reply(uint32(0))
	})

	opts := portaltest.Token("mon")
	opts["session_handle_token"] = dbus.MakeVariant("s1")
	if _, derr := h.Call(":1.7", "org.freedesktop.portal.Inhibit", "CreateMonitor", "", opts); derr != nil {
		t.Fatalf("CreateMonitor: %v", derr)
	}
	if _, derr := h.Call(":1.7", "org.freedesktop.portal.Inhibit", "Inhibit", "", uint32(8), portaltest.Token("idle")); derr != nil {
		t.Fatalf("Inhibit: %v", derr)
	}

	var sessions []session.Info
	decode(t, get(t, s, "/sessions"), &sessions)
	if len(sessions) != 1 || sessions[0].Path != "/org/freedesktop/portal/desktop/session/1_7/s1" {
		t.Errorf("unexpected sessions %+v", sessions)
	}

	var reqs []request.Info
	decode(t, get(t, s, "/requests"), &reqs)
	found := false
	for _, r := range reqs {
		if r.Path == "/org/freedesktop/portal/desktop/request/1_7/idle" {
			found = true
		}
	}
	if !found {
		t.Errorf("inhibit request missing from %+v", reqs)
	}

	var peers []map[string]any
	decode(t, get(t, s, "/peers"), &peers)
	if len(peers) != 1 || peers[0]["sender"] != ":1.7" {
		t.Errorf("unexpected peers %+v", peers)
	}
}

func TestServerRoute(t *testing.T) {
	s, _ := newTestServer(t)
	var info map[string]any
	decode(t, get(t, s, "/server"), &info)
	if info["name"] != config.AppName {
		t.Errorf("name = %v", info["name"])
	}
	if info["unique_name"] != ":1.0" {
		t.Errorf("unique_name = %v", info["unique_name"])
	}
}

func TestLockdownRoute(t *testing.T) {
	h := portaltest.New(t, portaltest.Test.With("Email", "Lockdown", "Access"))
	h.On(portaltest.Test.Name, idbus.PROP_GET_ALL, func(_ context.Context, c dbustest.Call) *dbus.Call {
		if c.Args[0] != idbus.LOCKDOWN_IMPL_IFACE {
			return dbustest.ErrorReply(idbus.ERROR_UNKNOWN_PROPERTY, "unknown interface")
		}
		return dbustest.Reply(map[string]dbus.Variant{
			"disable-printing": dbus.MakeVariant(true),
			"disable-camera":   dbus.MakeVariant(false),
			"label":            dbus.MakeVariant("not a key"),
		})
	})
	s := NewServer(&config.StatusConfig{Enabled: true, Listen: "127.0.0.1:0"}, h.Broker)

	var state map[string]bool
	decode(t, get(t, s, "/lockdown"), &state)
	if len(state) != 2 || !state["disable-printing"] || state["disable-camera"] {
		t.Errorf("unexpected lockdown state %v", state)
	}

	var info struct {
		Helpers broker.HelperInfo `json:"helpers"`
	}
	decode(t, get(t, s, "/server"), &info)
	if info.Helpers.Lockdown != portaltest.Test.Name || info.Helpers.Access != portaltest.Test.Name {
		t.Errorf("helpers = %+v", info.Helpers)
	}
}

func TestLockdownRouteWithoutBackend(t *testing.T) {
	s, _ := newTestServer(t)
	var state map[string]bool
	decode(t, get(t, s, "/lockdown"), &state)
	if len(state) != 0 {
		t.Errorf("unexpected lockdown state %v", state)
	}
}

func TestMetricsRoute(t *testing.T) {
	s, h := newTestServer(t)
	if _, derr := h.Call(":1.7", "org.freedesktop.portal.Email", "ComposeEmail", "", portaltest.Token("m")); derr != nil {
		t.Fatalf("ComposeEmail: %v", derr)
	}
	w := get(t, s, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`xdg_desktop_portal_calls_total{interface="org.freedesktop.portal.Email",method="ComposeEmail"} 1`,
		"xdg_desktop_portal_live_requests",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}
