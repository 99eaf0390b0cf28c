package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/backwire/internal/bridge"
	"github.com/danmuck/backwire/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fixedConns int64

func (f fixedConns) Active() int64 { return int64(f) }

func newServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine, err := bridge.NewDefaultEngine(bridge.Options{})
	require.NoError(t, err)
	return New(Options{ID: "admin-test"}, engine, fixedConns(3))
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	s := newServer(t)

	rec := get(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "admin-test", health["node"])

	rec = get(t, s, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	require.Equal(t, true, ready["ready"])
	require.Equal(t, float64(3), ready["connections"])
	require.Equal(t, true, ready["strict"])
}

func TestPairsListsEngine(t *testing.T) {
	testlog.Start(t)
	s := newServer(t)

	rec := get(t, s, "/pairs")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Pairs []PairView `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Pairs, 2)
	require.Equal(t, "1.19.4", body.Pairs[0].From)
	require.Equal(t, "1.19.3", body.Pairs[0].To)
	require.Equal(t, int32(762), body.Pairs[0].FromProtocol)
	require.Positive(t, body.Pairs[0].Clientbound)
	require.Equal(t, "1.11", body.Pairs[1].From)
}

func TestMetricsEndpointServesTranslationSeries(t *testing.T) {
	testlog.Start(t)
	s := newServer(t)
	_ = get(t, s, "/healthz")

	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "backwire_http_requests_total")
}

func TestTokenGuardsEverythingButHealth(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	engine, err := bridge.NewDefaultEngine(bridge.Options{})
	require.NoError(t, err)
	s := New(Options{ID: "guarded", Token: "s3cret"}, engine, nil)

	require.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
	require.Equal(t, http.StatusUnauthorized, get(t, s, "/pairs").Code)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pairs", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaticToken(t *testing.T) {
	testlog.Start(t)
	require.ErrorIs(t, StaticToken{}.Validate("x"), ErrUnauthorized)
	require.ErrorIs(t, StaticToken{Token: "a"}.Validate("b"), ErrUnauthorized)
	require.NoError(t, StaticToken{Token: "a"}.Validate("a"))
}
