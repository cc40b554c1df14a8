package internal

import (
	"chatstat/internal/controllers"
	"chatstat/internal/services"
	"chatstat/internal/structures"
	"chatstat/internal/testutil"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (http.Handler, *testutil.MockMetrics) {
	t.Helper()
	conf := &structures.Config{
		Storage: structures.StorageConfig{
			DataDir:      filepath.Join(t.TempDir(), "data"),
			SaveInterval: time.Minute,
		},
	}
	metrics := testutil.NewMockMetrics()
	svc, err := services.NewActivityService(conf, &testutil.MockLogger{}, metrics)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	ac := controllers.NewApiController(&testutil.MockLogger{}, svc, testutil.NewMockCache())
	hc := controllers.NewHealthController(svc)
	return NewHandler(ac, hc, conf, InitRoutes(ac), metrics), metrics
}

func serve(h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestInitRoutes_RegistersRoutes(t *testing.T) {
	ac := controllers.NewApiController(&testutil.MockLogger{}, nil, testutil.NewMockCache())
	routes := InitRoutes(ac).GetRoutes()

	patterns := make([]string, len(routes))
	for i, r := range routes {
		patterns[i] = r.Pattern()
	}
	assert.ElementsMatch(t, []string{
		"POST /updates",
		"GET /activity",
		"GET /colors",
		"POST /colors",
		"GET /cursor",
		"POST /cursor",
		"POST /cursor/clear",
	}, patterns)
}

func TestHandler_IngestThenQuery(t *testing.T) {
	h, metrics := newTestHandler(t)

	rr := serve(h, http.MethodPost, "/updates?community=guild",
		`[{"user_id":42,"name":"Alice","messages":1,"timestamp":"2025-05-15T14:00:00Z"}]`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = serve(h, http.MethodGet, "/activity?community=guild&start=1&end=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name":"Alice"`)

	assert.Equal(t, 1, metrics.Requests["POST /updates"])
	assert.Equal(t, 1, metrics.Requests["GET /activity"])
	assert.Equal(t, 1, metrics.Updates["guild"])
}

func TestHandler_MethodEnforcement(t *testing.T) {
	h, _ := newTestHandler(t)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodPost, "/activity?community=guild", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/updates?community=guild", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/cursor/clear", "").Code)
}

func TestHandler_UnknownPath(t *testing.T) {
	h, metrics := newTestHandler(t)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, fmt.Sprintf("/list/%d", i), "").Code)
	}
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/list", "").Code)
	assert.Empty(t, metrics.Requests)
}

func TestHandler_Health(t *testing.T) {
	h, metrics := newTestHandler(t)
	rr := serve(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, metrics.Requests)
}

func TestHandler_MetricsDisabled(t *testing.T) {
	h, _ := newTestHandler(t)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/metrics", "").Code)
}
