package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"authd.io/internal/auth"
	"authd.io/internal/obs"
)

const serviceName = "authd"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe is a simple readiness check. A nil Store (in-memory mode) is
// always ready.
type ReadyProbe struct {
	Store Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	return rp.Store.Ping(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	auth       *auth.Service

	rateBurst      int
	ratePerSec     int
	maxBodyBytes   int64
	trustedProxies []netip.Prefix
}

// Option configures API.
type Option func(*API)

// WithRateLimit bounds per-client requests to the credential endpoints.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		if burst > 0 && perSecond > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSecond
		}
	}
}

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

// WithTrustedProxies names the reverse proxies whose X-Forwarded-For header
// identifies the client for rate limiting and access logs.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

func New(rp ReadyProbe, version string, svc *auth.Service, opts ...Option) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		auth:         svc,
		rateBurst:    10,
		ratePerSec:   5,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(h, a.rateBurst, a.ratePerSec, a.trustedProxies...)
	}
	a.mux.Handle("/api/v1/users/auth/register/{$}", limited(a.handleRegister))
	a.mux.Handle("/api/v1/users/auth/login/{$}", limited(a.handleLogin))
	a.mux.Handle("/api/v1/users/auth/token/refresh/{$}", limited(a.handleRefresh))
	a.mux.Handle("/api/v1/users/auth/logout/{$}", a.requireAuth(a.handleLogout))
	a.mux.Handle("/api/v1/users/profile/{$}", a.requireAuth(a.handleProfile))
	a.mux.Handle("/api/v1/users/profile/change-password/{$}", a.requireAuth(a.handleChangePassword))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, "Not found", nil)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = obs.Instrument(a.mux)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h, a.trustedProxies...)
	h = RequestID(h)
	return Recover(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// --- helpers ---

// envelope is the body shape of every /api response.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Success: true, Message: message, Data: data})
}

func writeFailure(w http.ResponseWriter, code int, message string, errs map[string][]string) {
	writeJSON(w, code, envelope{Success: false, Message: message, Errors: errs})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeFailure(w, code, msg, map[string][]string{"detail": {msg}})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
