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

	"github.com/spec-kit/job-portal/internal/auth"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/identity"
)

const (
	tokenSecret    = "edge-secret"
	identitySecret = "internal-secret"
)

type forwarded struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Assertion string `json:"assertion"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newGateApp(t *testing.T) (*fiber.App, *auth.TokenManager, *identity.Asserter) {
	t.Helper()
	classifier, err := NewClassifier(openPrefixes, openPatterns)
	require.NoError(t, err)
	tokens := auth.NewTokenManager(tokenSecret, time.Hour)
	asserter := identity.NewAsserter(identitySecret, time.Minute)

	app := fiber.New()
	app.Use(NewGate(classifier, tokens, asserter, nil, nil).Handler())
	app.All("/*", func(c *fiber.Ctx) error {
		return c.JSON(forwarded{
			UserID:    c.Get(identity.HeaderUserID),
			Email:     c.Get(identity.HeaderUserEmail),
			Role:      c.Get(identity.HeaderUserRole),
			Assertion: c.Get(identity.HeaderAssertion),
		})
	})
	return app, tokens, asserter
}

func issue(t *testing.T, tm *auth.TokenManager, subject string, role domain.Role) string {
	t.Helper()
	token, _, err := tm.Issue(subject, subject+"@example.com", role, time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, app *fiber.App, method, path, authorization string, extra map[string]string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestGateRejectsWithoutCredential(t *testing.T) {
	app, _, _ := newGateApp(t)
	expired := auth.NewTokenManager(tokenSecret, time.Hour, auth.WithClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	expiredToken := issue(t, expired, "7", domain.RoleJobSeeker)
	foreignToken := issue(t, auth.NewTokenManager("other-secret", time.Hour), "7", domain.RoleJobSeeker)

	cases := []struct {
		name   string
		header string
		code   string
	}{
		{"missing", "", "MISSING_CREDENTIAL"},
		{"basic scheme", "Basic dXNlcjpwYXNz", "MALFORMED_CREDENTIAL"},
		{"empty bearer", "Bearer ", "MALFORMED_CREDENTIAL"},
		{"garbage token", "Bearer not-a-token", "MALFORMED_CREDENTIAL"},
		{"wrong secret", "Bearer " + foreignToken, "INVALID_CREDENTIAL"},
		{"expired", "Bearer " + expiredToken, "INVALID_CREDENTIAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, app, http.MethodPost, "/api/applications", tc.header, nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var parsed errorBody
			require.NoError(t, json.Unmarshal(body, &parsed))
			assert.Equal(t, tc.code, parsed.Error.Code)
			assert.Equal(t, "unauthorized", parsed.Error.Message)
			assert.NotContains(t, string(body), "signature")
			assert.NotContains(t, string(body), "expired")
		})
	}
}

func TestGateForwardsVerifiedIdentity(t *testing.T) {
	app, tokens, asserter := newGateApp(t)
	token := issue(t, tokens, "5", domain.RoleEmployer)

	resp, body := do(t, app, http.MethodPut, "/api/applications/1/status", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got forwarded
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "5", got.UserID)
	assert.Equal(t, "5@example.com", got.Email)
	assert.Equal(t, "EMPLOYER", got.Role)

	id, err := asserter.Check(got.Assertion, got.UserID, got.Email, got.Role)
	require.NoError(t, err)
	assert.Equal(t, int64(5), id.UserID)
}

func TestGateStripsSpoofedHeaders(t *testing.T) {
	app, tokens, _ := newGateApp(t)
	spoof := map[string]string{
		identity.HeaderUserID:    "1",
		identity.HeaderUserRole:  "EMPLOYER",
		identity.HeaderAssertion: "forged",
	}

	resp, body := do(t, app, http.MethodGet, "/api/jobs/search?q=go", "", spoof)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got forwarded
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.UserID)
	assert.Empty(t, got.Role)
	assert.Empty(t, got.Assertion)

	token := issue(t, tokens, "7", domain.RoleJobSeeker)
	resp, body = do(t, app, http.MethodGet, "/api/applications/my-applications", "Bearer "+token, spoof)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "7", got.UserID)
	assert.Equal(t, "JOB_SEEKER", got.Role)
}

func TestGateOpenRoutesAreOpportunistic(t *testing.T) {
	app, tokens, _ := newGateApp(t)
	token := issue(t, tokens, "7", domain.RoleJobSeeker)

	resp, body := do(t, app, http.MethodGet, "/api/jobs/42", "Bearer "+token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got forwarded
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "7", got.UserID)

	resp, body = do(t, app, http.MethodGet, "/api/jobs/42", "Bearer broken", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = forwarded{}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Empty(t, got.UserID)

	resp, _ = do(t, app, http.MethodPost, "/api/auth/login", "Bearer broken", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, http.MethodDelete, "/api/jobs/42", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateClassifiesResolvedPath(t *testing.T) {
	app, tokens, _ := newGateApp(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/jobs/search/../42"},
		{http.MethodGet, "/api/jobs/public/../../applications/my-applications"},
		{http.MethodPost, "/api/jobs/search/./../../applications"},
		{http.MethodPut, "/api/auth/login/..%2F..%2Fapplications/1/status"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			resp, body := do(t, app, tc.method, tc.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var parsed errorBody
			require.NoError(t, json.Unmarshal(body, &parsed))
			assert.Equal(t, "MISSING_CREDENTIAL", parsed.Error.Code)
		})
	}

	token := issue(t, tokens, "7", domain.RoleJobSeeker)
	resp, _ := do(t, app, http.MethodGet, "/api/jobs/public/../../applications/my-applications", "Bearer "+token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, app, http.MethodGet, "/api/jobs/search/../42", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
