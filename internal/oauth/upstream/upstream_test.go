package upstream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeGitHub sirve el token endpoint y la API de usuario.
func fakeGitHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "gho_refreshed", "token_type": "bearer", "expires_in": 3600})
			return
		}
		if r.Form.Get("code") != "good" || r.Form.Get("code_verifier") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "gho_x", "token_type": "bearer", "scope": "user:email",
			"refresh_token": "ghr_1", "expires_in": 28800,
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_x" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 42, "login": "octo", "avatar_url": "https://img/octo"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"email": "old@example.com", "primary": false, "verified": true},
			{"email": "octo@example.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGitHub(srv *httptest.Server) Provider {
	return NewGitHub(Credentials{ClientID: "cid", ClientSecret: "csecret"}, "https://api.test/cb/github", "", srv.Client(), &GitHubOptions{
		Endpoint: oauth2.Endpoint{AuthURL: srv.URL + "/login/oauth/authorize", TokenURL: srv.URL + "/login/oauth/access_token"},
		APIBase:  srv.URL,
	})
}

func TestMergeScopes(t *testing.T) {
	assert.Equal(t, "openid email profile", MergeScopes("openid email", "email profile"))
	assert.Equal(t, "repo", MergeScopes("", " repo "))
	assert.Equal(t, "", MergeScopes("", ""))
}

func TestAuthorizationURL_PKCEAndScopes(t *testing.T) {
	p := newTestGitHub(fakeGitHub(t))
	verifier := oauth2.GenerateVerifier()

	raw := p.AuthorizationURL(verifier, "inner-state", "repo")
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "inner-state", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(verifier), q.Get("code_challenge"))
	assert.Equal(t, "user:email repo", q.Get("scope"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "https://api.test/cb/github", q.Get("redirect_uri"))
	assert.Equal(t, "user:email", p.Scope())
}

func TestGitHubCallback(t *testing.T) {
	p := newTestGitHub(fakeGitHub(t))
	res, err := p.Callback(context.Background(), CallbackInput{
		CodeVerifier: oauth2.GenerateVerifier(),
		State:        "s1",
		Params:       url.Values{"code": {"good"}, "state": {"s1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", res.UserInfo.AccountID)
	assert.Equal(t, "octo", res.UserInfo.DisplayName)
	assert.Equal(t, "octo@example.com", res.UserInfo.Email)
	assert.True(t, res.UserInfo.EmailVerified)
	assert.Equal(t, "gho_x", res.Tokens.AccessToken)
	assert.Equal(t, "ghr_1", res.Tokens.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), res.Tokens.AccessTokenExpiresAt, time.Minute)
}

func TestCallbackErrors(t *testing.T) {
	p := newTestGitHub(fakeGitHub(t))
	ctx := context.Background()

	_, err := p.Callback(ctx, CallbackInput{State: "s1", Params: url.Values{"error": {"access_denied"}, "state": {"s1"}}})
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderAccessDenied))

	_, err = p.Callback(ctx, CallbackInput{State: "s1", Params: url.Values{"error": {"server_error"}}})
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderExchangeFailed))

	_, err = p.Callback(ctx, CallbackInput{State: "s1", Params: url.Values{"code": {"good"}, "state": {"other"}}})
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidOAuthState))

	_, err = p.Callback(ctx, CallbackInput{State: "s1", Params: url.Values{"state": {"s1"}}})
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidAuthorizationCode))

	_, err = p.Callback(ctx, CallbackInput{CodeVerifier: "v", State: "s1", Params: url.Values{"code": {"bad"}, "state": {"s1"}}})
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidAuthorizationCode))
}

func TestRefresh(t *testing.T) {
	p := newTestGitHub(fakeGitHub(t))
	ts, err := p.Refresh(context.Background(), "ghr_1", "user:email")
	require.NoError(t, err)
	assert.Equal(t, "gho_refreshed", ts.AccessToken)
	// sin rotación el refresh token original se conserva
	assert.Equal(t, "ghr_1", ts.RefreshToken)
}

func TestGenericCallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "at", "token_type": "bearer"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 7, "email": "g@example.com", "name": "Gen"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewGeneric(GenericConfig{ID: "acme", AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", UserInfoURL: srv.URL + "/userinfo", Scope: "profile"},
		Credentials{ClientID: "c", ClientSecret: "s"}, "https://api.test/cb/acme", srv.Client())
	res, err := p.Callback(context.Background(), CallbackInput{CodeVerifier: "v", State: "s", Params: url.Values{"code": {"c"}, "state": {"s"}}})
	require.NoError(t, err)
	assert.Equal(t, "7", res.UserInfo.AccountID)
	assert.Equal(t, "Gen", res.UserInfo.DisplayName)
	// sin expires_in se asume una hora
	assert.WithinDuration(t, time.Now().Add(DefaultAccessTokenTTL), res.Tokens.AccessTokenExpiresAt, time.Minute)
}

// fakeOIDC es un issuer mínimo: discovery, JWKS y token endpoint con id_token RS256.
func fakeOIDC(t *testing.T, clientID string) *httptest.Server {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                                srv.URL,
			"authorization_endpoint":                srv.URL + "/authorize",
			"token_endpoint":                        srv.URL + "/token",
			"userinfo_endpoint":                     srv.URL + "/userinfo",
			"jwks_uri":                              srv.URL + "/jwks",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"keys": []map[string]any{{
			"kty": "RSA", "kid": "k1", "alg": "RS256", "use": "sig",
			"n": base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e": base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tok := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, jwtv5.MapClaims{
			"iss":            srv.URL,
			"aud":            clientID,
			"sub":            "oidc-sub-1",
			"email":          "o@example.com",
			"email_verified": true,
			"name":           "Oidc User",
			"iat":            time.Now().Unix(),
			"exp":            time.Now().Add(time.Hour).Unix(),
		})
		tok.Header["kid"] = "k1"
		idToken, err := tok.SignedString(key)
		require.NoError(t, err)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "oidc-at", "token_type": "Bearer", "expires_in": 600,
			"refresh_token": "oidc-rt", "id_token": idToken,
		})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestOIDCCallback_VerifiesIDToken(t *testing.T) {
	srv := fakeOIDC(t, "oidc-client")
	ctx := context.Background()

	p, err := NewOIDC(ctx, "corp", srv.URL, Credentials{ClientID: "oidc-client", ClientSecret: "s"}, "https://api.test/cb/corp", "", srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "openid email profile", p.Scope())

	res, err := p.Callback(ctx, CallbackInput{CodeVerifier: "v", State: "s", Params: url.Values{"code": {"c"}, "state": {"s"}}})
	require.NoError(t, err)
	assert.Equal(t, "oidc-sub-1", res.UserInfo.AccountID)
	assert.Equal(t, "o@example.com", res.UserInfo.Email)
	assert.True(t, res.UserInfo.EmailVerified)
	assert.Equal(t, "oidc-rt", res.Tokens.RefreshToken)

	// audiencia distinta: el id_token no valida
	other, err := NewOIDC(ctx, "corp", srv.URL, Credentials{ClientID: "someone-else"}, "https://api.test/cb/corp", "", srv.Client())
	require.NoError(t, err)
	_, err = other.Callback(ctx, CallbackInput{CodeVerifier: "v", State: "s", Params: url.Values{"code": {"c"}, "state": {"s"}}})
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderExchangeFailed))
}

func TestRegistry(t *testing.T) {
	srv := fakeOIDC(t, "oidc-client")
	r := NewRegistry("https://api.test/", map[string]Credentials{"github": {ClientID: "shared-id", ClientSecret: "x"}}, srv.Client())
	ctx := context.Background()

	assert.Equal(t, "https://api.test/api/v1/auth/oauth/callback/github", r.RedirectURL("github"))

	gh1, err := r.Get(ctx, repository.OAuthProviderConfig{ID: "github", Type: repository.ProviderShared, Enabled: true})
	require.NoError(t, err)
	gh2, err := r.Get(ctx, repository.OAuthProviderConfig{ID: "github", Type: repository.ProviderShared, Enabled: true})
	require.NoError(t, err)
	assert.Same(t, gh1, gh2)

	_, err = r.Get(ctx, repository.OAuthProviderConfig{ID: "google", Type: repository.ProviderShared, Enabled: true})
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderNotFoundOrNotEnabled))

	_, err = r.Get(ctx, repository.OAuthProviderConfig{ID: "mystery", Type: repository.ProviderStandard, ClientID: "c"})
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderNotFoundOrNotEnabled))

	corp, err := r.Get(ctx, repository.OAuthProviderConfig{ID: "corp", Type: repository.ProviderStandard, ClientID: "oidc-client", Issuer: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "corp", corp.ID())
}
