package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/metrics"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream/mocks"
	"github.com/dropDatabas3/authcore/internal/rate"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/security/secretbox"
	"github.com/dropDatabas3/authcore/internal/store/memory"
)

const testBoxKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

type notifier struct{ links []string }

func (n *notifier) SendTemplatedMessage(_ context.Context, _ *repository.Project, _ string, _ email.Template, vars map[string]any) error {
	if l, ok := vars["link"].(string); ok {
		n.links = append(n.links, l)
	}
	return nil
}

func (n *notifier) lastCode(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, n.links)
	u, err := url.Parse(n.links[len(n.links)-1])
	require.NoError(t, err)
	return u.Query().Get("code")
}

type providersFunc func(ctx context.Context, cfg repository.OAuthProviderConfig) (upstream.Provider, error)

func (f providersFunc) Get(ctx context.Context, cfg repository.OAuthProviderConfig) (upstream.Provider, error) {
	return f(ctx, cfg)
}

type env struct {
	app      *App
	notifier *notifier
	provider *mocks.MockProvider
	metrics  *metrics.Metrics
}

func newEnv(t *testing.T, limiter rate.Limiter) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Projects().Upsert(ctx, &repository.Project{
		ID:          "p1",
		DisplayName: "Acme",
		Config: repository.ProjectConfig{
			Domains:           []repository.Domain{{Domain: "https://app.example.com", HandlerPath: "/handler"}},
			SignUpEnabled:     true,
			CredentialEnabled: true,
			MagicLinkEnabled:  true,
			ClientSecrets:     []string{"pck_1"},
			OAuthProviders: []repository.OAuthProviderConfig{
				{ID: "github", Type: repository.ProviderStandard, Enabled: true, ClientID: "gh"},
			},
		},
	}))
	box, err := secretbox.New(testBoxKey)
	require.NoError(t, err)
	m, err := metrics.New()
	require.NoError(t, err)

	e := &env{notifier: &notifier{}, provider: mocks.NewMockProvider(gomock.NewController(t)), metrics: m}
	e.app, err = New(Options{
		Store:        store,
		ServerSecret: "secret",
		JWTIssuer:    "https://auth.test",
		Box:          box,
		Notifier:     e.notifier,
		Providers: providersFunc(func(context.Context, repository.OAuthProviderConfig) (upstream.Provider, error) {
			return e.provider, nil
		}),
		Hasher:  password.NewArgon2Hasher(password.Fast),
		Limiter: limiter,
		Metrics: m,
	})
	require.NoError(t, err)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("X-Project-Id", "p1")
	for k, vs := range header {
		r.Header[k] = vs
	}
	w := httptest.NewRecorder()
	e.app.Handler.ServeHTTP(w, r)
	return w
}

type tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	IsNewUser    bool   `json:"is_new_user"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]any](t, w)
	assert.Equal(t, body["code"], w.Header().Get("X-Auth-Error-Code"))
	code, _ := body["code"].(string)
	return code
}

func TestNew_RequiresStoreAndSecret(t *testing.T) {
	_, err := New(Options{ServerSecret: "s"})
	assert.Error(t, err)
	_, err = New(Options{Store: memory.New()})
	assert.Error(t, err)
}

func TestHealthAndNotFound(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = e.do(t, http.MethodGet, "/api/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestProjectHeaderRequired(t *testing.T) {
	e := newEnv(t, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/sign-in", bytes.NewBufferString(`{}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.app.Handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "PROJECT_NOT_FOUND", errorCode(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/password/sign-in", map[string]string{"email": "a@b.co", "password": "x"},
		http.Header{"X-Project-Id": {"missing"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPasswordSession_EndToEnd(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/password/sign-up", map[string]string{
		"email":                     "ana@example.com",
		"password":                  "correct horse",
		"verification_callback_url": "https://app.example.com/handler/verify",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	signUp := decode[tokens](t, w)
	assert.True(t, signUp.IsNewUser)

	// verificación del email enviada en el sign-up
	code := e.notifier.lastCode(t)
	w = e.do(t, http.MethodPost, "/api/v1/contact-channels/verify/check-code", map[string]string{"code": code}, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, "/api/v1/contact-channels/verify", map[string]string{"code": code}, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, "/api/v1/contact-channels/verify", map[string]string{"code": code}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "VERIFICATION_CODE_ALREADY_USED", errorCode(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/password/sign-in", map[string]string{"email": "ana@example.com", "password": "correct horse"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	signIn := decode[tokens](t, w)
	assert.Equal(t, signUp.UserID, signIn.UserID)

	refresh := http.Header{"X-Refresh-Token": {signIn.RefreshToken}}
	w = e.do(t, http.MethodPost, "/api/v1/auth/sessions/current/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[tokens](t, w).AccessToken)

	w = e.do(t, http.MethodDelete, "/api/v1/auth/sessions/current", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, "/api/v1/auth/sessions/current/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "REFRESH_TOKEN_NOT_FOUND_OR_EXPIRED", errorCode(t, w))
}

func TestAuthenticatedRoutes(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/mfa/totp/enroll", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "USER_AUTHENTICATION_REQUIRED", errorCode(t, w))

	w = e.do(t, http.MethodPost, "/api/v1/auth/mfa/totp/enroll", nil, http.Header{"Authorization": {"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/password/sign-up", map[string]string{"email": "bo@example.com", "password": "correct horse"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok := decode[tokens](t, w)

	auth := http.Header{"Authorization": {"Bearer " + tok.AccessToken}}
	w = e.do(t, http.MethodPost, "/api/v1/auth/mfa/totp/enroll", nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "otpauth://")

	// token de otro proyecto
	w = e.do(t, http.MethodPost, "/api/v1/auth/mfa/totp/enroll", nil, http.Header{
		"Authorization": {"Bearer " + tok.AccessToken},
		"X-Project-Id":  {"p2"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code, "p2 does not exist")
}

func TestOTP_EndToEnd(t *testing.T) {
	e := newEnv(t, nil)

	w := e.do(t, http.MethodPost, "/api/v1/auth/otp/send-sign-in-code", map[string]string{
		"email":        "new@example.com",
		"callback_url": "https://app.example.com/handler/magic-link",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[map[string]string](t, w)["nonce"])

	code := e.notifier.lastCode(t)
	w = e.do(t, http.MethodPost, "/api/v1/auth/otp/sign-in", map[string]string{"code": code}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[tokens](t, w).IsNewUser)

	w = e.do(t, http.MethodPost, "/api/v1/auth/otp/sign-in", map[string]string{"code": code}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/auth/otp/send-sign-in-code", map[string]string{
		"email":        "new@example.com",
		"callback_url": "https://evil.example.org/steal",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REDIRECT_URL_NOT_WHITELISTED", errorCode(t, w))
}

func TestSchemaErrors(t *testing.T) {
	e := newEnv(t, nil)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/sign-in", bytes.NewBufferString(`{"email":`))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("X-Project-Id", "p1")
	w := httptest.NewRecorder()
	e.app.Handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "SCHEMA_ERROR", errorCode(t, w))
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, rate.NewMemoryLimiter(2, time.Minute))
	body := map[string]string{"email": "ghost@example.com", "password": "whatever1"}
	for range 2 {
		w := e.do(t, http.MethodPost, "/api/v1/auth/password/sign-in", body, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := e.do(t, http.MethodPost, "/api/v1/auth/password/sign-in", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// las rutas sin límite no se ven afectadas
	w = e.do(t, http.MethodPost, "/api/v1/auth/otp/sign-in/check-code", map[string]string{"code": "x"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOAuth_EndToEnd(t *testing.T) {
	e := newEnv(t, nil)
	verifier := oauth2.GenerateVerifier()

	e.provider.EXPECT().ID().Return("github").AnyTimes()
	e.provider.EXPECT().Scope().Return("user:email").AnyTimes()
	e.provider.EXPECT().AuthorizationURL(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_, state, _ string) string {
			return "https://github.test/authorize?state=" + state
		})
	e.provider.EXPECT().Callback(gomock.Any(), gomock.Any()).Return(&upstream.CallbackResult{
		UserInfo: upstream.UserInfo{AccountID: "42", Email: "octo@example.com", EmailVerified: true},
		Tokens:   upstream.TokenSet{AccessToken: "gho_42", AccessTokenExpiresAt: time.Now().Add(time.Hour)},
	}, nil)

	q := url.Values{
		"client_id":             {"p1"},
		"client_secret":         {"pck_1"},
		"redirect_uri":          {"https://app.example.com/handler/oauth-callback"},
		"scope":                 {"legacy"},
		"state":                 {"client-state"},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier(verifier)},
		"code_challenge_method": {"S256"},
		"grant_type":            {"authorization_code"},
		"response_type":         {"code"},
	}
	w := e.do(t, http.MethodGet, "/api/v1/auth/oauth/authorize/github?"+q.Encode(), nil, nil)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)

	// sin cookie el callback falla y la cookie se borra igual
	r := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/callback/github?state="+state+"&code=abc", nil)
	w = httptest.NewRecorder()
	e.app.Handler.ServeHTTP(w, r)
	assert.Equal(t, "OAUTH_COOKIE_NOT_FOUND", errorCode(t, w))
	require.Len(t, w.Result().Cookies(), 1)
	assert.Equal(t, -1, w.Result().Cookies()[0].MaxAge)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/auth/oauth/callback/github?state="+state+"&code=abc", nil)
	r.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	e.app.Handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	back, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "client-state", back.Query().Get("state"))

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {back.Query().Get("code")},
		"code_verifier": {verifier},
		"redirect_uri":  {"https://app.example.com/handler/oauth-callback"},
	}
	r = httptest.NewRequest(http.MethodPost, "/api/v1/auth/oauth/token", bytes.NewBufferString(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.SetBasicAuth("p1", "pck_1")
	w = httptest.NewRecorder()
	e.app.Handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tok := decode[tokens](t, w)
	assert.True(t, tok.IsNewUser)

	w = e.do(t, http.MethodGet, "/api/v1/connected-accounts/github/access-token?scope=user:email", nil,
		http.Header{"Authorization": {"Bearer " + tok.AccessToken}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "gho_42", decode[map[string]string](t, w)["access_token"])
}
