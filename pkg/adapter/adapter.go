package adapter

import (
	"context"

	"github.com/marmos91/dittobrowse/pkg/browser"
)

// Adapter exposes the browsing service over one transport (HTTP, ...).
//
// Every adapter serves the same browser.Service, so a session opened through
// one transport is visible to all of them.
//
// Lifecycle:
//  1. Creation: Adapter is created with transport-specific configuration
//  2. Service injection: SetService() provides the shared browsing service
//  3. Startup: Serve() starts the listener and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetService() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the listener and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new requests
	//   - Wait for in-flight requests to complete (bounded by the adapter's
	//     shutdown timeout)
	//   - Release listeners and goroutines
	//   - Return context.Canceled or nil
	//
	// If Serve returns an error before the context is cancelled, the server
	// treats it as fatal: it stops every other adapter and closes the
	// browsing service. Returning nil early (for instance after Stop was
	// called) only ends this adapter.
	//
	// Parameters:
	//   - ctx: Controls the adapter lifecycle. Cancellation triggers shutdown.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - context.Canceled if cancelled via context
	//   - error if startup fails (no service, port in use) or shutdown is not graceful
	Serve(ctx context.Context) error

	// SetService injects the browsing service shared by all adapters.
	//
	// This method is called exactly once by the server before Serve() is
	// called. Serve() must fail if no service was injected.
	//
	// Thread safety:
	// Called before Serve(), no synchronization needed.
	SetService(svc *browser.Service)

	// Stop initiates graceful shutdown of the listener.
	//
	// This method may be called concurrently with Serve() during server
	// shutdown, or before Serve() was ever called. Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Make a later Serve() return immediately if Stop() came first
	//   - Respect the context deadline for shutdown operations
	//
	// Sessions are owned by the browsing service, not the adapter: Stop
	// leaves them open and the server closes the service afterwards.
	//
	// Parameters:
	//   - ctx: Controls the shutdown timeout. When it expires, remaining
	//     connections are closed forcibly.
	//
	// Returns:
	//   - nil if shutdown completed successfully
	//   - error if shutdown exceeded the deadline or encountered errors
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	//
	// Examples: "HTTP"
	//
	// The returned value should be constant for the lifecycle of the adapter.
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	//
	// It is used for logging and for port-clash checks when adapters are
	// added to the server, so it must be known before Serve() is called.
	Port() int
}
