package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/b0bbywan/go-desktop-portal/broker"
	"github.com/b0bbywan/go-desktop-portal/config"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

// Server is the read-only status endpoint. It only ever listens on a
// loopback address.
type Server struct {
	mux    *http.ServeMux
	config *config.StatusConfig
	broker *broker.Broker
}

func NewServer(cfg *config.StatusConfig, b *broker.Broker) *Server {
	if cfg == nil || !cfg.Enabled || b == nil {
		return nil
	}

	server := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		broker: b,
	}
	server.register()
	return server
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		// request contexts end with ctx so event streams stop on shutdown
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Info("[api] server %s shutdown error: %v", srv.Addr, err)
		}
	}()

	logger.Info("[api] status server running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) register() {
	// 404 on everything not listed
	s.mux.HandleFunc("/", http.NotFound)

	s.registerServerRoutes()
	s.registerBrokerRoutes()
}
