package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Credentials de la app registrada en el proveedor.
type Credentials struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type userInfoFunc func(ctx context.Context, tok *oauth2.Token) (*UserInfo, error)

// baseProvider tiene la lógica OAuth2 común; cada proveedor aporta endpoints y userinfo.
type baseProvider struct {
	id         string
	scope      string
	cfg        oauth2.Config
	client     *http.Client
	userInfo   userInfoFunc
	authParams []oauth2.AuthCodeOption
	now        func() time.Time
}

func (p *baseProvider) ID() string    { return p.id }
func (p *baseProvider) Scope() string { return p.scope }

// AuthorizationURL pide siempre acceso offline para obtener refresh tokens.
func (p *baseProvider) AuthorizationURL(codeVerifier, state, extraScope string) string {
	cfg := p.cfg
	cfg.Scopes = strings.Fields(MergeScopes(p.scope, extraScope))
	opts := []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(codeVerifier), oauth2.AccessTypeOffline}
	opts = append(opts, p.authParams...)
	return cfg.AuthCodeURL(state, opts...)
}

// httpCtx inyecta el cliente HTTP del proveedor para x/oauth2.
func (p *baseProvider) httpCtx(ctx context.Context) context.Context {
	if p.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.client)
}

func (p *baseProvider) Callback(ctx context.Context, in CallbackInput) (*CallbackResult, error) {
	if e := in.Params.Get("error"); e != "" {
		if e == "access_denied" {
			return nil, autherr.ErrOAuthProviderAccessDenied
		}
		return nil, autherr.ErrOAuthProviderExchangeFailed.WithCause(
			fmt.Errorf("%s: provider error %s: %s", p.id, e, in.Params.Get("error_description")))
	}
	if st := in.Params.Get("state"); st != in.State {
		return nil, autherr.ErrInvalidOAuthState
	}
	code := in.Params.Get("code")
	if code == "" {
		return nil, autherr.ErrInvalidAuthorizationCode
	}

	ctx = p.httpCtx(ctx)
	tok, err := p.cfg.Exchange(ctx, code, oauth2.VerifierOption(in.CodeVerifier))
	if err != nil {
		return nil, exchangeError(p.id, err)
	}
	info, err := p.userInfo(ctx, tok)
	if err != nil {
		return nil, autherr.ErrOAuthProviderExchangeFailed.WithCause(fmt.Errorf("%s: userinfo: %w", p.id, err))
	}
	if info.AccountID == "" {
		return nil, autherr.ErrOAuthProviderExchangeFailed.WithCause(fmt.Errorf("%s: userinfo without account id", p.id))
	}
	return &CallbackResult{UserInfo: *info, Tokens: p.tokenSet(ctx, tok)}, nil
}

func (p *baseProvider) Refresh(ctx context.Context, refreshToken, _ string) (*TokenSet, error) {
	// x/oauth2 no envía scope en el refresh; el proveedor devuelve los scopes concedidos.
	ctx = p.httpCtx(ctx)
	tok, err := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, exchangeError(p.id, err)
	}
	ts := p.tokenSet(ctx, tok)
	return &ts, nil
}

func (p *baseProvider) tokenSet(ctx context.Context, tok *oauth2.Token) TokenSet {
	exp := tok.Expiry
	if exp.IsZero() {
		logger.From(ctx).Warn("provider did not return expires_in, falling back to default",
			logger.Provider(p.id), logger.Duration(DefaultAccessTokenTTL))
		exp = p.now().Add(DefaultAccessTokenTTL)
	}
	return TokenSet{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, AccessTokenExpiresAt: exp}
}

// exchangeError: invalid_grant es un error del cliente (código viejo o ya usado).
func exchangeError(id string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return autherr.ErrInvalidAuthorizationCode.WithCause(err)
	}
	return autherr.ErrOAuthProviderExchangeFailed.WithCause(fmt.Errorf("%s: token exchange: %w", id, err))
}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}
