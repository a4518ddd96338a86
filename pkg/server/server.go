package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittobrowse/internal/logger"
	"github.com/marmos91/dittobrowse/pkg/adapter"
	"github.com/marmos91/dittobrowse/pkg/browser"
)

// ErrAlreadyServed is returned by a second call to Serve.
var ErrAlreadyServed = errors.New("Serve() has already been called on this server instance")

// BrowseServer manages the lifecycle of the adapters exposing one browsing
// service, together with the service's idle-session reaper.
//
// Lifecycle:
//  1. Creation: New() with the browsing service
//  2. Registration: AddAdapter() for each transport
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation stops adapters in reverse order
//
// Thread safety:
// BrowseServer is safe for concurrent use. Serve() may only succeed once.
//
// Example usage:
//
//	srv := server.New(svc)
//	srv.AddAdapter(http.New(httpConfig))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type BrowseServer struct {
	service *browser.Service

	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool

	// stopTimeout bounds the Stop() calls issued at shutdown
	stopTimeout time.Duration
}

// New creates a server for svc.
//
// Panics if svc is nil (indicates programmer error).
func New(svc *browser.Service) *BrowseServer {
	if svc == nil {
		panic("browsing service cannot be nil")
	}

	return &BrowseServer{
		service:     svc,
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: 30 * time.Second,
	}
}

// SetStopTimeout changes the shutdown timeout (default 30s).
func (s *BrowseServer) SetStopTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimeout = d
}

// AddAdapter injects the service into a and registers it.
//
// Returns:
//   - error if the protocol or port is already registered, or if Serve()
//     has been called
//
// Panics if a is nil (programmer error).
func (s *BrowseServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add %s adapter after Serve() has been called", a.Protocol())
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetService(s.service)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts all registered adapters and the session reaper, and blocks
// until the context is cancelled or an adapter fails.
//
// Shutdown behavior:
//   - All adapters receive Stop() in reverse registration order
//   - Serve() waits for every adapter goroutine before returning
//
// Returns:
//   - context.Canceled (or the context's error) after a requested shutdown
//   - the first adapter error if an adapter failed
//   - ErrAlreadyServed on a second call
func (s *BrowseServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	stopTimeout := s.stopTimeout
	s.mu.Unlock()

	logger.Info("Starting DittoBrowse with %d adapter(s)", len(adapters))

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// buffered so failing adapters never block
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(runCtx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || runCtx.Err() != nil:
				logger.Debug("%s adapter stopped gracefully", protocol)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.service.Run(runCtx)
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	cancelRun()
	stopAll(adapters, stopTimeout)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	s.service.Close()
	logger.Info("DittoBrowse stopped")

	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAll issues Stop() to every adapter in reverse registration order.
func stopAll(adapters []adapter.Adapter, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		} else {
			logger.Debug("%s adapter stop signal sent", adp.Protocol())
		}
	}
}

// Adapters returns a copy of the registered adapters.
func (s *BrowseServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
