// Package http exposes the browsing service as a small JSON/XDR API.
//
// Routes:
//
//	POST   /api/sessions                  open a session, returns {"id": ...}
//	DELETE /api/sessions/{id}             close a session
//	GET    /api/sessions/{id}/list        ?path=&first=&number=&sort=
//	GET    /api/sessions/{id}/content     ?path=&kind=
//
// Listings are encoded as JSON unless the client sends
// "Accept: application/x-xdr".
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/internal/ratelimiter"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/browser"
	"github.com/marmos91/dittobrowse/pkg/wire"
)

// Config holds the HTTP adapter settings.
type Config struct {
	// Enabled controls whether the HTTP adapter is active.
	Enabled bool `mapstructure:"enabled"`

	// Port is the TCP port to listen on. If 0, defaults to 8080.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// ReadTimeout bounds reading a complete request.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds writing a response. Large listings and image
	// content need a generous value.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// IdleTimeout closes keep-alive connections idle for longer.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown when the serve context ends.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// RateLimit throttles requests per client IP.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per client (0 = unlimited)
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`

	// Burst is the bucket capacity (0 = one second worth of requests)
	Burst int `mapstructure:"burst" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *Config) applyDefaults() {
	// Enabled is defaulted in pkg/config so an explicit false survives.
	if c.Port <= 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("invalid rate limit %+v: must be >= 0", c.RateLimit)
	}
	return nil
}

// Adapter serves the browsing API over HTTP.
//
// Thread safety:
// Stop() may be called concurrently with Serve(). Serve() should only be
// called once per Adapter instance.
type Adapter struct {
	config  Config
	service *browser.Service
	limiter *ratelimiter.Limiter

	mu       sync.Mutex
	server   *stdhttp.Server
	stopping bool

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an adapter. Zero values in config are replaced with defaults.
//
// Panics if config validation fails.
func New(config Config) *Adapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid HTTP config: %v", err))
	}
	return &Adapter{
		config:  config,
		limiter: ratelimiter.New(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst),
	}
}

// SetService implements adapter.Adapter.
func (a *Adapter) SetService(svc *browser.Service) {
	a.service = svc
}

// Protocol implements adapter.Adapter.
func (a *Adapter) Protocol() string {
	return "HTTP"
}

// Port implements adapter.Adapter.
func (a *Adapter) Port() int {
	return a.config.Port
}

// Serve listens on the configured port and blocks until ctx is cancelled
// or Stop() is called.
func (a *Adapter) Serve(ctx context.Context) error {
	if a.service == nil {
		return errors.New("HTTP adapter has no browsing service; call SetService() first")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener on port %d: %w", a.config.Port, err)
	}

	srv := &stdhttp.Server{
		Handler:      a.Handler(),
		ReadTimeout:  a.config.ReadTimeout,
		WriteTimeout: a.config.WriteTimeout,
		IdleTimeout:  a.config.IdleTimeout,
	}

	a.mu.Lock()
	if a.stopping {
		a.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	a.server = srv
	a.mu.Unlock()

	logger.Info("HTTP server listening on port %d", a.config.Port)
	logger.Debug("HTTP config: read_timeout=%v write_timeout=%v idle_timeout=%v",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout)

	if a.limiter.Enabled() {
		go a.pruneClients(ctx)
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Stop gracefully shuts the server down. Safe to call multiple times.
func (a *Adapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		a.stopping = true
		srv := a.server
		a.mu.Unlock()

		if srv == nil {
			return
		}

		logger.Debug("HTTP shutdown initiated")
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("HTTP graceful shutdown incomplete: %v", err)
			a.shutdownErr = err
		}
	})
	return a.shutdownErr
}

// clientIdleTimeout is how long a quiet client keeps its rate-limit bucket.
const clientIdleTimeout = 10 * time.Minute

func (a *Adapter) pruneClients(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Prune(clientIdleTimeout); n > 0 {
				logger.Debug("Dropped rate-limit state of %d idle client(s)", n)
			}
		}
	}
}

// Handler returns the API routes. Exposed for tests and embedding.
func (a *Adapter) Handler() stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("POST /api/sessions", a.handleOpen)
	mux.HandleFunc("DELETE /api/sessions/{id}", a.handleClose)
	mux.HandleFunc("GET /api/sessions/{id}/list", a.handleList)
	mux.HandleFunc("GET /api/sessions/{id}/content", a.handleContent)
	return logRequests(a.throttle(mux))
}

// throttle rejects requests of clients over their rate with 429.
func (a *Adapter) throttle(next stdhttp.Handler) stdhttp.Handler {
	if !a.limiter.Enabled() {
		return next
	}

	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		if !a.limiter.Allow(host) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, stdhttp.StatusTooManyRequests, errorResponse{
				Error:   "rate_limited",
				Message: "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (a *Adapter) handleOpen(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	id, err := a.service.OpenSession(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, stdhttp.StatusCreated, sessionResponse{ID: id})
}

func (a *Adapter) handleClose(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := a.service.CloseSession(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(stdhttp.StatusNoContent)
}

func (a *Adapter) handleList(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()

	first, err := intParam(q.Get("first"), "first")
	if err != nil {
		writeError(w, err)
		return
	}
	number, err := intParam(q.Get("number"), "number")
	if err != nil {
		writeError(w, err)
		return
	}
	if number < 0 {
		writeError(w, &browsable.BrowseError{Code: browsable.ErrInvalidArgument, Message: "number must not be negative"})
		return
	}

	req := browsable.Request{
		Path:   q.Get("path"),
		First:  first,
		Number: number,
		Sort:   q.Get("sort"),
	}

	reply, err := a.service.Process(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeError(w, err)
		return
	}

	codec := wire.Negotiate(r.Header.Get("Accept"))
	w.Header().Set("Content-Type", codec.ContentType())
	w.WriteHeader(stdhttp.StatusOK)
	if err := codec.Encode(w, reply); err != nil {
		logger.Error("Failed to encode listing of %s: %v", req.Path, err)
	}
}

func (a *Adapter) handleContent(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = "text"
	}

	content, err := a.service.Content(r.Context(), r.PathValue("id"), q.Get("path"), kind)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = w.Write([]byte(content))
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &browsable.BrowseError{
			Code:    browsable.ErrInvalidArgument,
			Message: fmt.Sprintf("%s must be an integer", name),
		}
	}
	return v, nil
}

// statusOf maps browse error codes to HTTP status codes.
func statusOf(err error) (int, string) {
	code, ok := browsable.CodeOf(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stdhttp.StatusServiceUnavailable, "unavailable"
		}
		return stdhttp.StatusInternalServerError, "internal"
	}

	switch code {
	case browsable.ErrNotFound, browsable.ErrSessionNotFound:
		return stdhttp.StatusNotFound, code.String()
	case browsable.ErrInvalidArgument:
		return stdhttp.StatusBadRequest, code.String()
	case browsable.ErrNotContainer:
		return stdhttp.StatusConflict, code.String()
	case browsable.ErrUnsupported:
		return stdhttp.StatusUnprocessableEntity, code.String()
	case browsable.ErrLimitExceeded:
		return stdhttp.StatusTooManyRequests, code.String()
	default:
		return stdhttp.StatusInternalServerError, code.String()
	}
}

func writeError(w stdhttp.ResponseWriter, err error) {
	status, code := statusOf(err)
	if status >= 500 {
		logger.Error("HTTP request failed: %v", err)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}

func writeJSON(w stdhttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", wire.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response: %v", err)
	}
}

type statusRecorder struct {
	stdhttp.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: stdhttp.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP %s %s -> %d (%v)", r.Method, r.URL.RequestURI(), rec.status, time.Since(start))
	})
}
