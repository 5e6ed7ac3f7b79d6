package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/b0bbywan/go-desktop-portal/events"
)

func TestJSONHandler(t *testing.T) {
	handler := JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return events.ObjectEvent{Path: "/org/freedesktop/portal/desktop/request/1_2/t", Sender: ":1.2"}, nil
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %s, want application/json", w.Header().Get("Content-Type"))
	}

	var result map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if result["sender"] != ":1.2" {
		t.Errorf("sender = %s, want :1.2", result["sender"])
	}
	if _, ok := result["app_id"]; ok {
		t.Error("empty app_id should be omitted")
	}
}

func TestJSONHandlerError(t *testing.T) {
	handler := JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return nil, errors.New("registry unavailable")
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", w.Code)
	}
}

func TestJSONHandlerUnencodable(t *testing.T) {
	handler := JSONHandler(func(w http.ResponseWriter, r *http.Request) (any, error) {
		return map[string]any{"ch": make(chan int)}, nil
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", w.Code)
	}
}
