package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/config"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/observability"
)

func newEdge(t *testing.T, upstreams map[string]string, rateLimit int) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager(tokenSecret, time.Hour)
	app, err := NewApp(Dependencies{
		Config: config.GatewayConfig{
			Upstreams:           upstreams,
			OpenPrefixes:        openPrefixes,
			OpenPatterns:        openPatterns,
			RateLimitPerMinute:  rateLimit,
			SecureHeaders:       true,
			ProxyTimeoutSeconds: 2,
		},
		Env:      "test",
		Tokens:   tokens,
		Asserter: identity.NewAsserter(identitySecret, time.Minute),
		Logger:   zap.NewNop(),
		Metrics:  observability.NewMetrics(),
	})
	require.NoError(t, err)
	return app, tokens
}

func TestEdgeProxiesWithIdentity(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":    r.URL.RequestURI(),
			"user_id": r.Header.Get(identity.HeaderUserID),
			"role":    r.Header.Get(identity.HeaderUserRole),
		})
	}))
	defer upstream.Close()

	app, tokens := newEdge(t, map[string]string{
		"/api":              "http://127.0.0.1:1",
		"/api/applications": upstream.URL,
	}, 0)
	token, _, err := tokens.Issue("7", "s@example.com", domain.RoleJobSeeker, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/applications/my-applications?page=1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "/api/applications/my-applications?page=1", got["path"])
	assert.Equal(t, "7", got["user_id"])
	assert.Equal(t, "JOB_SEEKER", got["role"])
}

func TestEdgeForwardsResolvedPath(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":    r.URL.RequestURI(),
			"user_id": r.Header.Get(identity.HeaderUserID),
		})
	}))
	defer upstream.Close()

	app, _ := newEdge(t, map[string]string{"/api": upstream.URL}, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/search/../42?full=1", nil), 5000)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "/api/jobs/42?full=1", got["path"])
	assert.Empty(t, got["user_id"])

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/jobs/search/../42", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/public/../../applications/my-applications", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEdgeUnknownPrefix(t *testing.T) {
	app, _ := newEdge(t, map[string]string{}, 0)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEdgeUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	app, _ := newEdge(t, map[string]string{"/api/auth": target}, 0)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/auth/login", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "UPSTREAM_UNAVAILABLE")
}

func TestEdgeHealthAndMetricsBypassGate(t *testing.T) {
	app, _ := newEdge(t, map[string]string{}, 0)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestEdgeRateLimit(t *testing.T) {
	app, _ := newEdge(t, map[string]string{}, 2)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestEdgeRejectsBadTemplate(t *testing.T) {
	_, err := NewApp(Dependencies{Config: config.GatewayConfig{OpenPatterns: []string{"jobs/{id}"}}})
	assert.Error(t, err)
}

func TestProxyLongestPrefix(t *testing.T) {
	p := NewProxy(map[string]string{"/api": "http://a", "/api/jobs": "http://b/", "/api/jobs/search": "http://c"}, time.Second, nil)

	target, ok := p.Target("/api/jobs/search?q=1")
	require.True(t, ok)
	assert.Equal(t, "http://c", target)
	target, _ = p.Target("/api/jobs/1")
	assert.Equal(t, "http://b", target)
	target, _ = p.Target("/api/messages")
	assert.Equal(t, "http://a", target)
	_, ok = p.Target("/health")
	assert.False(t, ok)
}
