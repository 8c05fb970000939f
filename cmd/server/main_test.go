package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/soaringjerry/psymetrics/internal/api"
	"github.com/soaringjerry/psymetrics/internal/config"
	"github.com/soaringjerry/psymetrics/internal/middleware"
	"github.com/soaringjerry/psymetrics/internal/monitoring"
	"github.com/soaringjerry/psymetrics/internal/utils"
)

func TestOpenStore(t *testing.T) {
	logger := zap.NewNop()

	mem, closeMem, err := openStore(config.StorageConfig{Driver: "memory"}, logger)
	require.NoError(t, err)
	require.NoError(t, closeMem())
	list, err := mem.ListReports(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	path := filepath.Join(t.TempDir(), "data", "reports.db")
	sqlite, closeSQLite, err := openStore(config.StorageConfig{Driver: "sqlite", SQLitePath: path}, logger)
	require.NoError(t, err)
	defer func() { _ = closeSQLite() }()
	list, err = sqlite.ListReports(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, _, err = openStore(config.StorageConfig{Driver: "postgres"}, logger)
	assert.Error(t, err)
}

func testHandler(t *testing.T, origin string, auth *middleware.Authenticator) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.Server.CORSOrigin = origin
	require.NoError(t, cfg.Validate())
	return newHandler(cfg, api.NewMemoryStore(), auth, monitoring.New(), utils.BuildInfo{Version: "test"}, zap.NewNop())
}

func TestHandler_CORSPreflight(t *testing.T) {
	auth, err := middleware.NewAuthenticator("server-secret", "psymetrics")
	require.NoError(t, err)
	h := testHandler(t, "https://survey.example.org", auth)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyses", nil)
	req.Header.Set("Origin", "https://survey.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://survey.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://survey.example.org", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestHandler_NoCORSByDefault(t *testing.T) {
	h := testHandler(t, "", nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/analyses", nil)
	req.Header.Set("Origin", "https://survey.example.org")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.NotEqual(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}
