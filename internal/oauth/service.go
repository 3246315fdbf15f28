// Package oauth implementa el protocolo de correlación OAuth: el flujo "externo" entre el
// cliente y este servidor (authorize/callback/token) envuelve al flujo "interno" contra el
// proveedor upstream. El estado del flujo externo se guarda server-side con TTL y se
// correlaciona con el navegador mediante una cookie por inner state.
package oauth

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/oauth/grant"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/secretbox"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
	"github.com/dropDatabas3/authcore/internal/session"
	"github.com/dropDatabas3/authcore/internal/validation"
)

const (
	// OuterStateTTL es la vida del flujo externo (y de la cookie).
	OuterStateTTL = 10 * time.Minute

	DefaultCookiePrefix = "authcore-oauth-inner"
	cookieSentinel      = "true"
)

// Providers resuelve el proveedor upstream de una config de proyecto.
type Providers interface {
	Get(ctx context.Context, cfg repository.OAuthProviderConfig) (upstream.Provider, error)
}

// Deps del servicio.
type Deps struct {
	Store     repository.Store
	Grant     *grant.Server
	Sessions  *session.Issuer
	Providers Providers
	// Box sella los tokens del proveedor antes de guardarlos.
	Box *secretbox.Box

	CookiePrefix  string
	SecureCookies bool
	Now           func() time.Time
}

// Service orquesta authorize, callback, token y cuentas conectadas.
type Service struct {
	deps Deps
}

func NewService(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.CookiePrefix == "" {
		d.CookiePrefix = DefaultCookiePrefix
	}
	return &Service{deps: d}
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("oauth"), logger.Op(op))
}

// CookieName es "<prefix>-<innerState>".
func (s *Service) CookieName(innerState string) string {
	return s.deps.CookiePrefix + "-" + innerState
}

// ClearCookie borra la cookie del flujo; el callback la borra siempre.
func (s *Service) ClearCookie(innerState string) *http.Cookie {
	return &http.Cookie{
		Name:     s.CookieName(innerState),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// AuthorizeRequest son los query params de /authorize.
type AuthorizeRequest struct {
	ProviderID               string
	FlowType                 repository.FlowType
	Token                    string // access token del usuario en flujos link
	ProviderScope            string
	ErrorRedirectURL         string
	AfterCallbackRedirectURL string
	OAuth                    grant.AuthorizeRequest
}

// AuthorizeResult: el handler setea Cookie y redirige a ProviderURL.
type AuthorizeResult struct {
	ProviderURL string
	Cookie      *http.Cookie
}

// Authorize valida la request del cliente, guarda el outer state y arma la URL del
// proveedor con PKCE.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	req.OAuth.RedirectURI = grant.StripFragment(req.OAuth.RedirectURI)
	project, err := s.deps.Grant.ValidateAuthorize(ctx, req.OAuth)
	if err != nil {
		return nil, err
	}
	cfg, ok := project.Provider(req.ProviderID)
	if !ok || !cfg.Enabled {
		return nil, autherr.ErrOAuthProviderNotFoundOrNotEnabled
	}
	if req.FlowType == "" {
		req.FlowType = repository.FlowAuthenticate
	}
	if !validation.ValidScopeList(req.ProviderScope) {
		return nil, autherr.ErrInvalidScope.WithDetails(map[string]any{"provider_scope": req.ProviderScope})
	}

	var linkUserID string
	switch req.FlowType {
	case repository.FlowAuthenticate:
	case repository.FlowLink:
		claims, err := s.deps.Sessions.DecodeAccessToken(req.Token)
		if err != nil {
			return nil, err
		}
		if claims.TenantID != project.ID {
			return nil, autherr.ErrAccessTokenProjectMismatch
		}
		if req.ProviderScope != "" && cfg.Type == repository.ProviderShared {
			return nil, autherr.ErrOAuthExtraScopeNotAvailableWithSharedKeys
		}
		linkUserID = claims.UserID()
	default:
		return nil, autherr.ErrInvalidInput.WithMessage(`type must be "authenticate" or "link".`)
	}

	provider, err := s.deps.Providers.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	innerState, err := tokens.GenerateSecureRandomString()
	if err != nil {
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	providerURL := provider.AuthorizationURL(verifier, innerState, req.ProviderScope)

	now := s.deps.Now()
	st := &repository.OAuthOuterState{
		InnerState:               innerState,
		TenantID:                 project.ID,
		ClientID:                 req.OAuth.ClientID,
		ClientSecret:             req.OAuth.ClientSecret,
		RedirectURI:              req.OAuth.RedirectURI,
		Scope:                    req.OAuth.Scope,
		CallerState:              req.OAuth.State,
		CodeChallenge:            req.OAuth.CodeChallenge,
		CodeChallengeMethod:      req.OAuth.CodeChallengeMethod,
		GrantType:                req.OAuth.GrantType,
		ResponseType:             req.OAuth.ResponseType,
		InnerCodeVerifier:        verifier,
		FlowType:                 req.FlowType,
		LinkUserID:               linkUserID,
		ProviderScope:            req.ProviderScope,
		ErrorRedirectURL:         req.ErrorRedirectURL,
		AfterCallbackRedirectURL: req.AfterCallbackRedirectURL,
		CreatedAt:                now,
		ExpiresAt:                now.Add(OuterStateTTL),
	}
	if err := s.deps.Store.OAuthStates().Create(ctx, st); err != nil {
		return nil, err
	}

	s.log(ctx, "Authorize").Info("oauth flow started",
		logger.TenantID(project.ID), logger.Provider(cfg.ID), logger.FlowType(string(req.FlowType)))
	return &AuthorizeResult{
		ProviderURL: providerURL,
		Cookie: &http.Cookie{
			Name:     s.CookieName(innerState),
			Value:    cookieSentinel,
			Path:     "/",
			MaxAge:   int(OuterStateTTL.Seconds()),
			HttpOnly: true,
			Secure:   s.deps.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		},
	}, nil
}

// Token delega en el grant engine.
func (s *Service) Token(ctx context.Context, req grant.TokenRequest) (*grant.TokenResponse, error) {
	return s.deps.Grant.Token(ctx, req)
}
