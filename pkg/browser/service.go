// Package browser hosts browsing sessions for remote clients.
//
// A Service owns a table of sessions, each wrapping a browsable.Processor
// over a shared root element. Requests against one session are serialized;
// requests against different sessions run in parallel. Idle sessions are
// reaped after a configurable TTL.
package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/browsable"
	"github.com/marmos91/dittobrowse/pkg/metrics"
)

// Config configures session management.
type Config struct {
	// SessionTTL is the idle time after which a session is reaped (0 = never)
	SessionTTL time.Duration

	// ReapInterval is how often Run looks for idle sessions (default: 1m)
	ReapInterval time.Duration

	// MaxSessions caps concurrent sessions (0 = unlimited)
	MaxSessions int
}

// Option configures a Service.
type Option func(*Service)

// WithRenderer decorates every listed item.
func WithRenderer(render browsable.RenderFunc) Option {
	return func(s *Service) {
		s.render = render
	}
}

// WithClock replaces time.Now (used by tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type entry struct {
	mu        sync.Mutex
	id        string
	processor *browsable.Processor
	closed    bool

	// lastUsed is read by the reaper without holding mu
	lastUsed atomic.Int64
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

// Service manages browsing sessions.
//
// Thread safety:
// All methods are safe for concurrent use.
type Service struct {
	reg     *browsable.Registry
	root    browsable.Element
	cfg     Config
	metrics metrics.BrowseMetrics
	render  browsable.RenderFunc
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// New creates a service serving root. A nil m disables metrics.
func New(reg *browsable.Registry, root browsable.Element, cfg Config, m metrics.BrowseMetrics, opts ...Option) *Service {
	if m == nil {
		m = metrics.NewNoopBrowseMetrics()
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = time.Minute
	}

	s := &Service{
		reg:      reg,
		root:     root,
		cfg:      cfg,
		metrics:  m,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the provider registry shared by the sessions.
func (s *Service) Registry() *browsable.Registry {
	return s.reg
}

// OpenSession creates a session positioned at the root.
//
// Returns:
//   - string: The session identifier
//   - error: ErrLimitExceeded when MaxSessions sessions are open
func (s *Service) OpenSession(ctx context.Context) (id string, err error) {
	start := s.now()
	defer func() {
		s.metrics.RecordRequest("open_session", s.now().Sub(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := []browsable.ProcessorOption{browsable.WithObserver(s.metrics)}
	if s.render != nil {
		opts = append(opts, browsable.WithRenderer(s.render))
	}

	e := &entry{
		id:        uuid.New().String(),
		processor: browsable.NewProcessor(browsable.NewSession(s.root), opts...),
	}
	e.touch(start)

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		return "", &browsable.BrowseError{
			Code:    browsable.ErrLimitExceeded,
			Message: fmt.Sprintf("session limit of %d reached", s.cfg.MaxSessions),
		}
	}
	s.sessions[e.id] = e
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(count)
	logger.Debug("Opened session %s (%d active)", e.id, count)
	return e.id, nil
}

// CloseSession removes a session.
func (s *Service) CloseSession(id string) (err error) {
	start := s.now()
	defer func() {
		s.metrics.RecordRequest("close_session", s.now().Sub(start), err)
	}()

	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return sessionNotFound(id)
	}

	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	s.metrics.SetActiveSessions(count)
	s.metrics.RecordSessionClosed("client")
	logger.Debug("Closed session %s", id)
	return nil
}

func sessionNotFound(id string) error {
	return &browsable.BrowseError{Code: browsable.ErrSessionNotFound, Message: "session not found: " + id}
}

// acquire returns the locked entry for id. The caller must unlock it.
func (s *Service) acquire(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, sessionNotFound(id)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, sessionNotFound(id)
	}
	e.touch(s.now())
	return e, nil
}

// Process serves a listing request within a session.
func (s *Service) Process(ctx context.Context, id string, req browsable.Request) (reply *browsable.Reply, err error) {
	start := s.now()
	defer func() {
		s.metrics.RecordRequest("list", s.now().Sub(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, err := s.acquire(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return e.processor.Process(req)
}

// Content returns the content of the element at path in the requested kind
// ("text", "image64").
func (s *Service) Content(ctx context.Context, id, path, kind string) (content string, err error) {
	start := s.now()
	defer func() {
		s.metrics.RecordRequest("content", s.now().Sub(start), err)
	}()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	e, err := s.acquire(id)
	if err != nil {
		return "", err
	}
	defer e.mu.Unlock()

	elem := e.processor.Session().GetElement(path)
	if elem == nil {
		return "", &browsable.BrowseError{Code: browsable.ErrNotFound, Message: "path not found", Path: path}
	}

	cp, ok := elem.(browsable.ContentProvider)
	if !ok {
		return "", &browsable.BrowseError{Code: browsable.ErrUnsupported, Message: "element has no content", Path: path}
	}
	return cp.Content(kind)
}

// Sessions returns the number of open sessions.
func (s *Service) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ReapIdle removes sessions idle for longer than SessionTTL at time now.
// Sessions serving a request are skipped.
//
// Returns the number of reaped sessions.
func (s *Service) ReapIdle(now time.Time) int {
	if s.cfg.SessionTTL <= 0 {
		return 0
	}
	deadline := now.Add(-s.cfg.SessionTTL).UnixNano()

	s.mu.Lock()
	var reaped []*entry
	for id, e := range s.sessions {
		if e.lastUsed.Load() > deadline {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		e.closed = true
		e.mu.Unlock()

		delete(s.sessions, id)
		reaped = append(reaped, e)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if len(reaped) > 0 {
		for _, e := range reaped {
			s.metrics.RecordSessionClosed("idle")
			logger.Debug("Reaped idle session %s", e.id)
		}
		s.metrics.SetActiveSessions(count)
		logger.Info("Reaped %d idle sessions (%d active)", len(reaped), count)
	}
	return len(reaped)
}

// Run reaps idle sessions every ReapInterval until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.cfg.SessionTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ReapIdle(s.now())
		}
	}
}

// Close drops every session.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range sessions {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
	}
	s.metrics.SetActiveSessions(0)
}
