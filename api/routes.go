package api

import (
	"net/http"
	"time"

	"github.com/b0bbywan/go-desktop-portal/appinfo"
	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/config"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

var started = time.Now()

type serverInfo struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	UniqueName string            `json:"unique_name"`
	Uptime     time.Duration     `json:"uptime_ns"`
	Desktops   []string          `json:"desktops"`
	Requests   int               `json:"requests"`
	Sessions   int               `json:"sessions"`
	Helpers    broker.HelperInfo `json:"helpers"`
}

func (s *Server) registerServerRoutes() {
	b := s.broker
	s.mux.HandleFunc(
		"GET /server",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return serverInfo{
				Name:       config.AppName,
				Version:    config.AppVersion,
				UniqueName: b.Conn().UniqueName(),
				Uptime:     time.Since(started),
				Desktops:   b.Resolver.Desktops(),
				Requests:   b.Requests.Len(),
				Sessions:   b.Sessions.Len(),
				Helpers:    b.Helpers(),
			}, nil
		}),
	)

	if b.Metrics != nil {
		s.mux.Handle("GET /metrics", b.Metrics.Handler())
	}

	s.mux.HandleFunc("GET /events", sseHandler(b.Events))
	logger.Info("[api] SSE route registered at /events")
}

func (s *Server) registerBrokerRoutes() {
	b := s.broker
	s.mux.HandleFunc(
		"GET /portals",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.Portals(), nil
		}),
	)
	s.mux.HandleFunc(
		"GET /peers",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			apps := b.Apps.List()
			out := make([]appinfo.Info, len(apps))
			for i, app := range apps {
				out[i] = app.Info()
			}
			return out, nil
		}),
	)
	s.mux.HandleFunc(
		"GET /requests",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.Requests.List(), nil
		}),
	)
	s.mux.HandleFunc(
		"GET /sessions",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.Sessions.List(), nil
		}),
	)
	s.mux.HandleFunc(
		"GET /lockdown",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.LockdownState(r.Context())
		}),
	)
	s.mux.HandleFunc(
		"GET /backends",
		JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
			return b.Resolver.Impls(), nil
		}),
	)
}
