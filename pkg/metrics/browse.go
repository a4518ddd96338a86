package metrics

import (
	"time"

	"github.com/marmos91/dittobrowse/pkg/browsable"
)

// BrowseMetrics observes the browsing service.
//
// It extends browsable.Observer so the same instance can be attached to
// every session's Processor.
type BrowseMetrics interface {
	browsable.Observer

	// RecordRequest records a completed service operation.
	//
	// Parameters:
	//   - operation: "list", "content", "open_session", "close_session"
	//   - duration: Time taken to serve the request
	//   - err: Error if the request failed, nil if successful
	RecordRequest(operation string, duration time.Duration, err error)

	// SetActiveSessions updates the current session count.
	SetActiveSessions(count int)

	// RecordSessionClosed counts a closed session by reason ("client", "idle").
	RecordSessionClosed(reason string)
}

// ErrorLabel maps an error to a bounded label value.
func ErrorLabel(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := browsable.CodeOf(err); ok {
		return code.String()
	}
	return "internal"
}

// NewNoopBrowseMetrics returns a BrowseMetrics that records nothing.
func NewNoopBrowseMetrics() BrowseMetrics {
	return noopBrowseMetrics{}
}

type noopBrowseMetrics struct{}

func (noopBrowseMetrics) LevelMaterialized(path string, count int, partial bool)            {}
func (noopBrowseMetrics) LevelReused(path string)                                           {}
func (noopBrowseMetrics) RecordRequest(operation string, duration time.Duration, err error) {}
func (noopBrowseMetrics) SetActiveSessions(count int)                                       {}
func (noopBrowseMetrics) RecordSessionClosed(reason string)                                 {}
