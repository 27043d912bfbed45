// Package vaultstub is a controllable stand-in for the Vault HTTP API: the
// health endpoint, token lookup and the mount listings the probers read.
// Admin endpoints switch the health state and add latency at runtime.
package vaultstub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// State is the health state the stub reports.
type State string

const (
	Active        State = "active"        // 200
	Standby       State = "standby"       // 429
	Uninitialized State = "uninitialized" // 501
	Sealed        State = "sealed"        // 503
	Broken        State = "broken"        // 500, outside the documented set
)

var stateCodes = map[State]int{
	Active:        http.StatusOK,
	Standby:       http.StatusTooManyRequests,
	Uninitialized: http.StatusNotImplemented,
	Sealed:        http.StatusServiceUnavailable,
	Broken:        http.StatusInternalServerError,
}

// Version is reported by the health endpoint.
const Version = "1.15.6"

// Stub holds the mutable server state.
type Stub struct {
	token  string
	logger *slog.Logger

	mu     sync.RWMutex
	state  State
	delay  time.Duration
	mounts map[string]string // path -> type
	auths  map[string]string
}

// New creates an active, unsealed stub that accepts token.
func New(token string, logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{
		token:  token,
		logger: logger,
		state:  Active,
		mounts: map[string]string{
			"cubbyhole/": "cubbyhole",
			"identity/":  "identity",
			"sys/":       "system",
		},
		auths: map[string]string{"token/": "token"},
	}
}

// SetState switches the health state.
func (s *Stub) SetState(st State) error {
	if _, ok := stateCodes[st]; !ok {
		return fmt.Errorf("unknown state %q", st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
	return nil
}

// SetDelay delays every response by d.
func (s *Stub) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Mount enables a secrets engine at path.
func (s *Stub) Mount(path, engine string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts[path] = engine
}

func (s *Stub) snapshot() (State, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.delay
}

// Handler returns the HTTP handler serving the stub.
func (s *Stub) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/sys/health", s.health)
	mux.HandleFunc("GET /v1/auth/token/lookup-self", s.authed(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]any{"id": s.token, "policies": []string{"root"}})
	}))
	mux.HandleFunc("GET /v1/sys/mounts", s.authed(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		m := maps.Clone(s.mounts)
		s.mu.RUnlock()
		writeData(w, typed(m))
	}))
	mux.HandleFunc("GET /v1/sys/auth", s.authed(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		m := maps.Clone(s.auths)
		s.mu.RUnlock()
		writeData(w, typed(m))
	}))

	mux.HandleFunc("PUT /admin/state", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			State State `json:"state"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.SetState(req.State); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Info("set state", "state", req.State)
		writeJSON(w, http.StatusOK, map[string]State{"state": req.State})
	})
	mux.HandleFunc("PUT /admin/delay", func(w http.ResponseWriter, r *http.Request) {
		ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
		if err != nil || ms < 0 {
			http.Error(w, "invalid ms parameter", http.StatusBadRequest)
			return
		}
		s.SetDelay(time.Duration(ms) * time.Millisecond)
		s.logger.Info("set delay", "ms", ms)
		writeJSON(w, http.StatusOK, map[string]int{"delay_ms": ms})
	})
	mux.HandleFunc("GET /admin/status", func(w http.ResponseWriter, r *http.Request) {
		st, delay := s.snapshot()
		writeJSON(w, http.StatusOK, map[string]any{"state": st, "delay_ms": delay.Milliseconds()})
	})

	return mux
}

func (s *Stub) health(w http.ResponseWriter, r *http.Request) {
	st, delay := s.snapshot()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	code := stateCodes[st]
	switch st {
	case Uninitialized:
		w.WriteHeader(code)
	case Broken:
		writeJSON(w, code, map[string]any{"errors": []string{"internal error"}})
	default:
		writeJSON(w, code, map[string]any{
			"initialized": true,
			"sealed":      st == Sealed,
			"standby":     st == Standby,
			"version":     Version,
		})
	}
}

func (s *Stub) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := s.snapshot()
		if st == Sealed || st == Uninitialized {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"errors": []string{"Vault is sealed"}})
			return
		}
		if r.Header.Get("X-Vault-Token") != s.token {
			writeJSON(w, http.StatusForbidden, map[string]any{"errors": []string{"permission denied"}})
			return
		}
		next(w, r)
	}
}

func typed(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for path, t := range m {
		out[path] = map[string]any{"type": t}
	}
	return out
}

func writeData(w http.ResponseWriter, data map[string]any) {
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
