package oauth

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/oauth/grant"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream/mocks"
	"github.com/dropDatabas3/authcore/internal/security/secretbox"
	"github.com/dropDatabas3/authcore/internal/session"
	"github.com/dropDatabas3/authcore/internal/store/memory"
)

const testBoxKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="

type providersFunc func(ctx context.Context, cfg repository.OAuthProviderConfig) (upstream.Provider, error)

func (f providersFunc) Get(ctx context.Context, cfg repository.OAuthProviderConfig) (upstream.Provider, error) {
	return f(ctx, cfg)
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	sessions *session.Issuer
	provider *mocks.MockProvider
	project  *repository.Project
	now      time.Time
	verifier string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		store:    memory.New(),
		provider: mocks.NewMockProvider(ctrl),
		now:      time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
		verifier: oauth2.GenerateVerifier(),
		project: &repository.Project{
			ID: "p1",
			Config: repository.ProjectConfig{
				Domains:       []repository.Domain{{Domain: "https://app.example.com", HandlerPath: "/handler"}},
				SignUpEnabled: true,
				ClientSecrets: []string{"pck_1"},
				OAuthProviders: []repository.OAuthProviderConfig{
					{ID: "github", Type: repository.ProviderStandard, Enabled: true, ClientID: "gh"},
					{ID: "google", Type: repository.ProviderShared, Enabled: true},
					{ID: "gitlab", Type: repository.ProviderStandard, Enabled: false},
				},
			},
		},
	}
	clock := func() time.Time { return f.now }
	ctx := context.Background()
	require.NoError(t, f.store.Projects().Upsert(ctx, f.project))
	require.NoError(t, f.store.Projects().Upsert(ctx, &repository.Project{ID: "p2"}))

	j := jwt.NewIssuer("https://auth.test", jwt.NewTenantKeys("secret"), time.Hour)
	j.Now = clock
	f.sessions = session.NewIssuer(session.Deps{RefreshTokens: f.store.RefreshTokens(), JWT: j, Now: clock})
	box, err := secretbox.New(testBoxKey)
	require.NoError(t, err)

	f.provider.EXPECT().ID().Return("github").AnyTimes()
	f.provider.EXPECT().Scope().Return("user:email").AnyTimes()
	f.provider.EXPECT().AuthorizationURL(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(verifier, state, extra string) string {
			return "https://github.test/authorize?" + url.Values{"state": {state}, "scope": {extra}}.Encode()
		}).AnyTimes()

	f.svc = NewService(Deps{
		Store: f.store,
		Grant: grant.NewServer(grant.Deps{
			Projects: f.store.Projects(),
			Codes:    f.store.AuthorizationCodes(),
			Sessions: f.sessions,
			Now:      clock,
		}),
		Sessions: f.sessions,
		Providers: providersFunc(func(_ context.Context, cfg repository.OAuthProviderConfig) (upstream.Provider, error) {
			return f.provider, nil
		}),
		Box:           box,
		SecureCookies: true,
		Now:           clock,
	})
	return f
}

func (f *fixture) oauthParams() grant.AuthorizeRequest {
	return grant.AuthorizeRequest{
		ClientID:            "p1",
		ClientSecret:        "pck_1",
		RedirectURI:         "https://app.example.com/handler/oauth-callback",
		Scope:               "legacy",
		State:               "client-state",
		CodeChallenge:       oauth2.S256ChallengeFromVerifier(f.verifier),
		CodeChallengeMethod: "S256",
		GrantType:           "authorization_code",
		ResponseType:        "code",
	}
}

// start corre Authorize y devuelve el inner state.
func (f *fixture) start(t *testing.T, req AuthorizeRequest) string {
	t.Helper()
	res, err := f.svc.Authorize(context.Background(), req)
	require.NoError(t, err)
	u, err := url.Parse(res.ProviderURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, f.svc.CookieName(state), res.Cookie.Name)
	assert.Equal(t, "true", res.Cookie.Value)
	assert.True(t, res.Cookie.HttpOnly)
	assert.True(t, res.Cookie.Secure)
	assert.Equal(t, 600, res.Cookie.MaxAge)
	return state
}

func (f *fixture) expectCallback(accountID string) {
	f.provider.EXPECT().Callback(gomock.Any(), gomock.Any()).Return(&upstream.CallbackResult{
		UserInfo: upstream.UserInfo{AccountID: accountID, Email: "Octo@Example.com", EmailVerified: true, DisplayName: "Octo"},
		Tokens:   upstream.TokenSet{AccessToken: "gho_" + accountID, RefreshToken: "ghr_" + accountID, AccessTokenExpiresAt: f.now.Add(time.Hour)},
	}, nil)
}

func (f *fixture) callback(state string) (*CallbackResult, error) {
	return f.svc.Callback(context.Background(), CallbackRequest{
		ProviderID:  "github",
		State:       state,
		Params:      url.Values{"code": {"upstream-code"}, "state": {state}},
		CookieValue: "true",
	})
}

func (f *fixture) exchange(t *testing.T, redirectURL string) *grant.TokenResponse {
	t.Helper()
	u, err := url.Parse(redirectURL)
	require.NoError(t, err)
	assert.Equal(t, "client-state", u.Query().Get("state"))
	res, err := f.svc.Token(context.Background(), grant.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "p1",
		ClientSecret: "pck_1",
		Code:         u.Query().Get("code"),
		CodeVerifier: f.verifier,
		RedirectURI:  "https://app.example.com/handler/oauth-callback",
	})
	require.NoError(t, err)
	return res
}

func TestFullFlow_SignUpThenSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state := f.start(t, AuthorizeRequest{ProviderID: "github", OAuth: f.oauthParams()})
	f.expectCallback("42")
	cb, err := f.callback(state)
	require.NoError(t, err)
	assert.True(t, cb.NewUser)

	tok := f.exchange(t, cb.RedirectURL)
	assert.True(t, tok.IsNewUser)
	assert.Equal(t, cb.UserID, tok.UserID)

	u, err := f.store.Users().GetByID(ctx, "p1", cb.UserID)
	require.NoError(t, err)
	assert.Equal(t, "octo@example.com", u.PrimaryEmail)
	assert.True(t, u.PrimaryEmailVerified)
	assert.False(t, u.PrimaryEmailAuthEnabled)

	stored, err := f.store.ProviderTokens().List(ctx, "p1", "github", "42", repository.ProviderRefreshToken)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, "ghr_42", stored[0].Token, "provider tokens are sealed")
	assert.Equal(t, []string{"user:email"}, stored[0].Scopes)

	// el inner state es de un solo uso
	_, err = f.callback(state)
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidOAuthState))

	// segundo login con la misma cuenta: mismo usuario
	state = f.start(t, AuthorizeRequest{ProviderID: "github", OAuth: f.oauthParams()})
	f.expectCallback("42")
	cb2, err := f.callback(state)
	require.NoError(t, err)
	assert.False(t, cb2.NewUser)
	assert.Equal(t, cb.UserID, cb2.UserID)
	assert.False(t, f.exchange(t, cb2.RedirectURL).IsNewUser)
}

func TestAuthorize_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pair, err := f.sessions.CreateAuthTokens(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	other, err := f.sessions.CreateAuthTokens(ctx, "p2", "u9", nil)
	require.NoError(t, err)

	cases := []struct {
		name string
		req  AuthorizeRequest
		code autherr.Code
	}{
		{"disabled provider", AuthorizeRequest{ProviderID: "gitlab"}, autherr.CodeOAuthProviderNotFoundOrNotEnabled},
		{"unknown provider", AuthorizeRequest{ProviderID: "nope"}, autherr.CodeOAuthProviderNotFoundOrNotEnabled},
		{"bad provider scope", AuthorizeRequest{ProviderID: "github", ProviderScope: `repo "drop"`}, autherr.CodeInvalidScope},
		{"bad flow type", AuthorizeRequest{ProviderID: "github", FlowType: "steal"}, autherr.CodeInvalidInput},
		{"link with foreign token", AuthorizeRequest{ProviderID: "github", FlowType: repository.FlowLink, Token: other.AccessToken}, autherr.CodeAccessTokenProjectMismatch},
		{"link with garbage token", AuthorizeRequest{ProviderID: "github", FlowType: repository.FlowLink, Token: "garbage"}, autherr.CodeUnparsableAccessToken},
		{"extra scope on shared keys", AuthorizeRequest{ProviderID: "google", FlowType: repository.FlowLink, Token: pair.AccessToken, ProviderScope: "drive"}, autherr.CodeOAuthExtraScopeNotAvailableWithSharedKeys},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.OAuth = f.oauthParams()
			_, err := f.svc.Authorize(ctx, tc.req)
			assert.True(t, autherr.HasCode(err, tc.code), "got %v", err)
		})
	}

	bad := f.oauthParams()
	bad.ClientSecret = "wrong"
	_, err = f.svc.Authorize(ctx, AuthorizeRequest{ProviderID: "github", OAuth: bad})
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidOAuthClientIDOrSecret))
}

func TestCallback_WithoutCookieLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	state := f.start(t, AuthorizeRequest{ProviderID: "github", OAuth: f.oauthParams()})

	_, err := f.svc.Callback(context.Background(), CallbackRequest{ProviderID: "github", State: state})
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthCookieNotFound))

	f.expectCallback("42")
	_, err = f.callback(state)
	assert.NoError(t, err)
}

func TestCallback_UnknownState(t *testing.T) {
	f := newFixture(t)
	_, err := f.callback("never-issued")
	assert.True(t, autherr.HasCode(err, autherr.CodeInvalidOAuthState))
}

func TestCallback_TimeoutRedirectsToErrorURL(t *testing.T) {
	f := newFixture(t)
	state := f.start(t, AuthorizeRequest{
		ProviderID:       "github",
		ErrorRedirectURL: "https://app.example.com/handler/error",
		OAuth:            f.oauthParams(),
	})
	f.now = f.now.Add(OuterStateTTL + time.Second)

	res, err := f.callback(state)
	require.NoError(t, err)
	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "/handler/error", u.Path)
	assert.Equal(t, string(autherr.CodeOuterOAuthTimeout), u.Query().Get("errorCode"))
	assert.NotEmpty(t, u.Query().Get("message"))
	assert.Equal(t, "{}", u.Query().Get("details"))

	// sin error URL permitida el error se devuelve
	state = f.start(t, AuthorizeRequest{
		ProviderID:       "github",
		ErrorRedirectURL: "https://evil.example.com/error",
		OAuth:            f.oauthParams(),
	})
	f.now = f.now.Add(OuterStateTTL + time.Second)
	_, err = f.callback(state)
	assert.True(t, autherr.HasCode(err, autherr.CodeOuterOAuthTimeout))
}

func TestCallback_AccessDenied(t *testing.T) {
	f := newFixture(t)
	state := f.start(t, AuthorizeRequest{ProviderID: "github", OAuth: f.oauthParams()})
	f.provider.EXPECT().Callback(gomock.Any(), gomock.Any()).Return(nil, autherr.ErrOAuthProviderAccessDenied)

	_, err := f.callback(state)
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderAccessDenied))
}

func TestCallback_SignUpDisabled(t *testing.T) {
	f := newFixture(t)
	f.project.Config.SignUpEnabled = false
	require.NoError(t, f.store.Projects().Upsert(context.Background(), f.project))

	state := f.start(t, AuthorizeRequest{
		ProviderID:       "github",
		ErrorRedirectURL: "https://app.example.com/handler/error",
		OAuth:            f.oauthParams(),
	})
	f.expectCallback("42")
	res, err := f.callback(state)
	require.NoError(t, err)
	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, string(autherr.CodeSignUpNotEnabled), u.Query().Get("errorCode"))
}

func TestLinkFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"u1", "u2"} {
		require.NoError(t, f.store.Users().Create(ctx, &repository.User{ID: id, TenantID: "p1"}))
	}
	link := func(userID string) AuthorizeRequest {
		pair, err := f.sessions.CreateAuthTokens(ctx, "p1", userID, nil)
		require.NoError(t, err)
		return AuthorizeRequest{ProviderID: "github", FlowType: repository.FlowLink, Token: pair.AccessToken, ProviderScope: "repo", OAuth: f.oauthParams()}
	}

	state := f.start(t, link("u1"))
	f.expectCallback("42")
	cb, err := f.callback(state)
	require.NoError(t, err)
	assert.Equal(t, "u1", cb.UserID)
	assert.False(t, cb.NewUser)
	acct, err := f.store.OAuthAccounts().Get(ctx, "p1", "github", "42")
	require.NoError(t, err)
	assert.Equal(t, "u1", acct.UserID)

	stored, err := f.store.ProviderTokens().List(ctx, "p1", "github", "42", repository.ProviderAccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, stored)
	assert.Equal(t, []string{"user:email", "repo"}, stored[0].Scopes)

	// la misma cuenta externa no se puede vincular a otro usuario
	state = f.start(t, link("u2"))
	f.expectCallback("42")
	_, err = f.callback(state)
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthConnectionAlreadyConnectedToAnotherUser))

	// u1 ya tiene otra cuenta de github
	state = f.start(t, link("u1"))
	f.expectCallback("77")
	_, err = f.callback(state)
	assert.True(t, autherr.HasCode(err, autherr.CodeUserAlreadyConnectedToAnotherOAuthConnection))
}

func TestProviderAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state := f.start(t, AuthorizeRequest{ProviderID: "github", OAuth: f.oauthParams()})
	f.expectCallback("42")
	cb, err := f.callback(state)
	require.NoError(t, err)

	tok, err := f.svc.ProviderAccessToken(ctx, f.project, cb.UserID, "github", "user:email")
	require.NoError(t, err)
	assert.Equal(t, "gho_42", tok)

	_, err = f.svc.ProviderAccessToken(ctx, f.project, cb.UserID, "github", "repo")
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthConnectionDoesNotHaveRequiredScope))

	_, err = f.svc.ProviderAccessToken(ctx, f.project, "someone", "github", "")
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthConnectionNotConnectedToUser))

	_, err = f.svc.ProviderAccessToken(ctx, f.project, cb.UserID, "gitlab", "")
	assert.True(t, autherr.HasCode(err, autherr.CodeOAuthProviderNotFoundOrNotEnabled))

	// vencido: se refresca con el refresh token guardado y el nuevo refresh token se guarda
	f.now = f.now.Add(2 * time.Hour)
	f.provider.EXPECT().Refresh(gomock.Any(), "ghr_42", "user:email").
		Return(&upstream.TokenSet{AccessToken: "gho_new", RefreshToken: "ghr_new", AccessTokenExpiresAt: f.now.Add(time.Hour)}, nil)
	tok, err = f.svc.ProviderAccessToken(ctx, f.project, cb.UserID, "github", "user:email")
	require.NoError(t, err)
	assert.Equal(t, "gho_new", tok)

	// ahora hay uno vigente: no vuelve a refrescar
	tok, err = f.svc.ProviderAccessToken(ctx, f.project, cb.UserID, "github", "user:email")
	require.NoError(t, err)
	assert.Equal(t, "gho_new", tok)

	refresh, err := f.store.ProviderTokens().List(ctx, "p1", "github", "42", repository.ProviderRefreshToken)
	require.NoError(t, err)
	assert.Len(t, refresh, 2)
}

func TestErrorRedirect_Details(t *testing.T) {
	f := newFixture(t)
	target, ok := f.svc.errorRedirect(autherr.ErrInvalidScope.WithDetails(map[string]any{"scope": "x"}), f.project, "https://app.example.com/handler/error?keep=1")
	require.True(t, ok)
	u, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "1", u.Query().Get("keep"))
	var details map[string]any
	require.NoError(t, json.Unmarshal([]byte(u.Query().Get("details")), &details))
	assert.Equal(t, "x", details["scope"])

	_, ok = f.svc.errorRedirect(autherr.ErrInternal, f.project, "https://app.example.com/handler/error")
	assert.False(t, ok)
}
