package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	m.CodeCreated("ONE_TIME_PASSWORD")
	m.CodeCreated("ONE_TIME_PASSWORD")
	m.CodeUsed("ONE_TIME_PASSWORD", "ok")
	m.CodeUsed("ONE_TIME_PASSWORD", "VERIFICATION_CODE_ALREADY_USED")
	m.TokenIssued("refresh")
	m.RowsDeleted("verification_codes", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.codesCreated.WithLabelValues("ONE_TIME_PASSWORD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.codesUsed.WithLabelValues("ONE_TIME_PASSWORD", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("refresh")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.gcDeleted.WithLabelValues("verification_codes")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/v1/auth/oauth/authorize/{provider_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/authorize/github", nil))
	assert.Equal(t, http.StatusFound, rec.Code)

	got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/auth/oauth/authorize/{provider_id}", "302"))
	assert.Equal(t, 1.0, got)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestNormalizePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/api/v1/team-invitations/0b6f3a5e-1c2d-4e5f-8a9b-0c1d2e3f4a5b", "/api/v1/team-invitations/:param"},
		{"/api/v1/x/123?y=1", "/api/v1/x/:param"},
		{"/healthz", "/healthz"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, normalizePath(c.in), c.in)
	}
}
