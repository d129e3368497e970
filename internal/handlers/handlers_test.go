package handlers

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-control/internal/fleet"
)

func newTestStore(t *testing.T) *fleet.Store {
	t.Helper()
	cfg := fleet.DefaultConfig()
	cfg.IntroOpen = false
	return fleet.New(cfg, fleet.DefaultSeed(), fleet.WithRand(rand.New(rand.NewSource(3))))
}

// newMux wires handlers the way cmd/main.go does, minus auth.
func newMux(store *fleet.Store) *http.ServeMux {
	fh := NewFleetHandler(store)
	dh := NewDetourHandler(store)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", fh.State)
	mux.HandleFunc("/api/frame", fh.Frame)
	mux.HandleFunc("/api/traffic", fh.Traffic)
	mux.HandleFunc("/api/dispatch", fh.Dispatch)
	mux.HandleFunc("/api/onboarding/complete", fh.CompleteOnboarding)
	mux.HandleFunc("/api/focus", fh.Focus)
	mux.HandleFunc("/api/routes/{id}/toggle", fh.ToggleRoute)
	mux.HandleFunc("/api/detours/{id}", dh.Get)
	mux.HandleFunc("/api/detours/{id}/propose", dh.Propose)
	mux.HandleFunc("/api/detours/{id}/confirm", dh.Confirm)
	mux.HandleFunc("/api/detours/{id}/cancel", dh.Cancel)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
