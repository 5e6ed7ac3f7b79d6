package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/b0bbywan/go-desktop-portal/events"
	"github.com/b0bbywan/go-desktop-portal/logger"
)

// sseHandler streams broker lifecycle events to clients.
func sseHandler(d *events.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		keepAliveDuration, err := parseKeepAlive(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		ch := d.SubscribeChan(filter)
		defer d.Unsubscribe(ch)

		if err := sendServerInfo(flusher, w, "connected"); err != nil {
			return
		}

		keepAlive := time.NewTimer(keepAliveDuration)
		defer keepAlive.Stop()

		for {
			select {
			case <-r.Context().Done():
				if err := sendServerInfo(flusher, w, "bye"); err != nil {
					logger.Debug("[sse] failed to close events connection: %v", err)
				}
				return
			case <-keepAlive.C:
				if err := sendServerInfo(flusher, w, "alive"); err != nil {
					logger.Warn("[sse] failed to send keepalive, closing: %v", err)
					return
				}
				keepAlive.Reset(keepAliveDuration)
			case e, ok := <-ch:
				if !ok {
					// dispatcher closed
					return
				}
				if err := send(flusher, w, e); err != nil {
					return
				}
				keepAlive.Reset(keepAliveDuration)
			}
		}
	}
}

func sendServerInfo(flusher http.Flusher, w http.ResponseWriter, message string) error {
	return send(flusher, w, events.Event{Type: events.TypeServerInfo, Data: message})
}

func send(flusher http.Flusher, w http.ResponseWriter, e events.Event) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		logger.Warn("[sse] failed to marshal event data: %v", err)
		return err
	}
	if _, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		logger.Debug("[sse] client went away: %v", err)
		return err
	}
	flusher.Flush()
	return nil
}

// parseKeepAlive reads ?keepalive=<seconds>. Default 30s, between 10s and
// 120s.
func parseKeepAlive(r *http.Request) (time.Duration, error) {
	const defaultKeepalive = 30 * time.Second
	raw := r.URL.Query().Get("keepalive")
	if raw == "" {
		return defaultKeepalive, nil
	}
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("keepalive must be an integer (seconds)")
	}
	if secs < 10 || secs > 120 {
		return 0, errors.New("keepalive must be between 10 and 120 seconds")
	}
	return time.Duration(secs) * time.Second, nil
}

func splitParam(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseFilter builds an event filter from the query:
//   - ?types=request.created,session.closed  event types to include
//   - ?component=request,peer                components whose types to include
//   - ?exclude=request.created               event types to drop
//
// server.info always passes and cannot be excluded.
func parseFilter(r *http.Request) (events.Filter, error) {
	q := r.URL.Query()

	include := splitParam(q.Get("types"))
	for _, name := range splitParam(q.Get("component")) {
		types, ok := events.ComponentTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown component %q", name)
		}
		include = append(include, types...)
	}
	if len(include) > 0 && !slices.Contains(include, events.TypeServerInfo) {
		include = append(include, events.TypeServerInfo)
	}

	exclude := splitParam(q.Get("exclude"))
	if slices.Contains(exclude, events.TypeServerInfo) {
		return nil, errors.New("server.info cannot be excluded")
	}

	return events.NewFilter(include, exclude), nil
}
