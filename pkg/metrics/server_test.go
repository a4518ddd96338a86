package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerWithoutRegistry(t *testing.T) {
	h := Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok\n", rec.Body.String())
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoopBrowseMetrics()
	m.LevelMaterialized("/", 3, true)
	m.LevelReused("/")
	m.SetActiveSessions(1)
	m.RecordSessionClosed("client")
	m.RecordRequest("list", 0, nil)
}

func TestServerDefaults(t *testing.T) {
	require.Equal(t, 9090, NewServer(ServerConfig{}).Port())
	require.Equal(t, 9191, NewServer(ServerConfig{Port: 9191}).Port())
}

func TestErrorLabel(t *testing.T) {
	require.Equal(t, "", ErrorLabel(nil))
}
