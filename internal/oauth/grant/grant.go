// Package grant es el authorization server local: emite authorization codes después de
// que el callback upstream autenticó al usuario, y los canjea (con PKCE) por sesiones.
package grant

import (
	"context"
	"crypto/subtle"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/redirect"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
	"github.com/dropDatabas3/authcore/internal/session"
)

const (
	// AuthorizationCodeTTL de los códigos locales.
	AuthorizationCodeTTL = 10 * time.Minute

	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"

	// ScopeLegacy es el único scope habilitado.
	ScopeLegacy = "legacy"

	PKCES256   = "S256"
	PKCEPlain  = "plain"
	tokenType  = "Bearer"
	codeParam  = "code"
	stateParam = "state"
)

var enabledScopes = []string{ScopeLegacy}

// MFAGate corta la emisión de tokens para usuarios con MFA.
type MFAGate interface {
	RequireMfaOrContinue(ctx context.Context, project *repository.Project, userID string, isNewUser bool) error
}

// Deps del servidor.
type Deps struct {
	Projects repository.ProjectRepository
	Codes    repository.AuthorizationCodeRepository
	Sessions *session.Issuer
	MFA      MFAGate
	Now      func() time.Time
}

// Server implementa los grants authorization_code y refresh_token.
type Server struct {
	deps Deps
}

func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Server{deps: d}
}

func (s *Server) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("oauth.grant"), logger.Op(op))
}

// Client resuelve el proyecto de client_id y exige uno de sus client secrets.
func (s *Server) Client(ctx context.Context, clientID, clientSecret string) (*repository.Project, error) {
	if clientID == "" || clientSecret == "" {
		return nil, autherr.ErrInvalidOAuthClientIDOrSecret
	}
	p, err := s.deps.Projects.GetByID(ctx, clientID)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrInvalidOAuthClientIDOrSecret
	}
	if err != nil {
		return nil, err
	}
	for _, secret := range p.Config.ClientSecrets {
		if subtle.ConstantTimeCompare([]byte(secret), []byte(clientSecret)) == 1 {
			return p, nil
		}
	}
	return nil, autherr.ErrInvalidOAuthClientIDOrSecret
}

// CheckScope valida una lista de scopes separada por espacios. Vacía es inválida.
func CheckScope(scope string) error {
	parts := strings.Fields(scope)
	if len(parts) == 0 {
		return autherr.ErrInvalidScope.WithDetails(map[string]any{"scope": scope})
	}
	for _, sc := range parts {
		if !slices.Contains(enabledScopes, sc) {
			return autherr.ErrInvalidScope.WithDetails(map[string]any{"scope": sc})
		}
	}
	return nil
}

// StripFragment quita el #fragment de una redirect URI.
func StripFragment(uri string) string {
	if i := strings.IndexByte(uri, '#'); i >= 0 {
		return uri[:i]
	}
	return uri
}

// AuthorizeRequest son los parámetros OAuth del cliente, tal como llegaron a /authorize.
type AuthorizeRequest struct {
	ClientID            string
	ClientSecret        string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	GrantType           string
	ResponseType        string
}

// ValidateAuthorize chequea todo lo que no depende del usuario. /authorize lo corre antes
// de mandar al usuario al proveedor y el callback lo repite antes de autenticar.
func (s *Server) ValidateAuthorize(ctx context.Context, req AuthorizeRequest) (*repository.Project, error) {
	project, err := s.Client(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if req.ResponseType != codeParam {
		return nil, autherr.ErrInvalidInput.WithMessage("response_type must be \"code\".")
	}
	if req.GrantType != GrantAuthorizationCode {
		return nil, autherr.ErrUnsupportedGrantType
	}
	if !redirect.IsAllowed(req.RedirectURI, project.Config.Domains, project.Config.AllowLocalhost) {
		return nil, autherr.ErrRedirectURLNotWhitelisted
	}
	if err := CheckScope(req.Scope); err != nil {
		return nil, err
	}
	if req.CodeChallenge == "" {
		return nil, autherr.ErrInvalidInput.WithMessage("code_challenge is required.")
	}
	if req.CodeChallengeMethod != PKCES256 && req.CodeChallengeMethod != PKCEPlain {
		return nil, autherr.ErrInvalidInput.WithMessage("code_challenge_method must be S256 or plain.")
	}
	return project, nil
}

// AuthenticatedUser es lo que devuelve el callback de autenticación.
type AuthenticatedUser struct {
	ID                       string
	NewUser                  bool
	AfterCallbackRedirectURL string
}

// AuthenticateFunc resuelve el usuario local. Corre solo si la request es válida.
type AuthenticateFunc func(ctx context.Context, project *repository.Project) (*AuthenticatedUser, error)

// AuthorizeResult es la redirección final al cliente.
type AuthorizeResult struct {
	RedirectURL string
	UserID      string
	NewUser     bool
}

// Authorize emite un authorization code para el usuario que resuelva authenticate.
func (s *Server) Authorize(ctx context.Context, req AuthorizeRequest, authenticate AuthenticateFunc) (*AuthorizeResult, error) {
	req.RedirectURI = StripFragment(req.RedirectURI)
	project, err := s.ValidateAuthorize(ctx, req)
	if err != nil {
		return nil, err
	}
	user, err := authenticate(ctx, project)
	if err != nil {
		return nil, err
	}

	raw, err := tokens.GenerateSecureRandomString()
	if err != nil {
		return nil, err
	}
	now := s.deps.Now()
	code := &repository.AuthorizationCode{
		CodeHash:                 tokens.SHA256Base64URL(raw),
		TenantID:                 project.ID,
		ClientID:                 req.ClientID,
		UserID:                   user.ID,
		RedirectURI:              req.RedirectURI,
		Scope:                    strings.Join(strings.Fields(req.Scope), " "),
		CodeChallenge:            req.CodeChallenge,
		CodeChallengeMethod:      req.CodeChallengeMethod,
		NewUser:                  user.NewUser,
		AfterCallbackRedirectURL: user.AfterCallbackRedirectURL,
		CreatedAt:                now,
		ExpiresAt:                now.Add(AuthorizationCodeTTL),
	}
	if err := s.deps.Codes.Create(ctx, code); err != nil {
		return nil, err
	}

	u, err := url.Parse(req.RedirectURI)
	if err != nil {
		return nil, autherr.ErrRedirectURLNotWhitelisted.WithCause(err)
	}
	q := u.Query()
	q.Set(codeParam, raw)
	if req.State != "" {
		q.Set(stateParam, req.State)
	}
	u.RawQuery = q.Encode()

	s.log(ctx, "Authorize").Info("authorization code issued",
		logger.TenantID(project.ID), logger.UserID(user.ID), logger.Bool("new_user", user.NewUser))
	return &AuthorizeResult{RedirectURL: u.String(), UserID: user.ID, NewUser: user.NewUser}, nil
}

// TokenRequest es el body de /token (client credentials ya extraídas de body o Basic).
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string
	RedirectURI  string
	RefreshToken string
}

// TokenResponse es el body de /token.
type TokenResponse struct {
	AccessToken              string `json:"access_token"`
	RefreshToken             string `json:"refresh_token"`
	TokenType                string `json:"token_type"`
	ExpiresIn                int64  `json:"expires_in"`
	Scope                    string `json:"scope"`
	IsNewUser                bool   `json:"is_new_user"`
	UserID                   string `json:"user_id"`
	AfterCallbackRedirectURL string `json:"after_callback_redirect_url,omitempty"`
}

// Token canjea un grant.
func (s *Server) Token(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	switch req.GrantType {
	case GrantAuthorizationCode, GrantRefreshToken:
	default:
		return nil, autherr.ErrUnsupportedGrantType
	}
	project, err := s.Client(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if req.GrantType == GrantRefreshToken {
		return s.refresh(ctx, project, req)
	}
	return s.exchange(ctx, project, req)
}

func (s *Server) exchange(ctx context.Context, project *repository.Project, req TokenRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, autherr.ErrInvalidGrant
	}
	code, err := s.deps.Codes.Take(ctx, project.ID, tokens.SHA256Base64URL(req.Code))
	if repository.IsNotFound(err) {
		return nil, autherr.ErrInvalidGrant
	}
	if err != nil {
		return nil, err
	}
	// el código ya se borró: cualquier falla de acá en adelante lo invalida
	if !code.ExpiresAt.After(s.deps.Now()) {
		return nil, autherr.ErrInvalidGrant
	}
	if code.ClientID != req.ClientID {
		return nil, autherr.ErrInvalidGrant
	}
	if req.RedirectURI != "" && StripFragment(req.RedirectURI) != code.RedirectURI {
		return nil, autherr.ErrInvalidGrant
	}
	if !VerifyPKCE(code.CodeChallenge, code.CodeChallengeMethod, req.CodeVerifier) {
		return nil, autherr.ErrInvalidGrant.WithMessage("PKCE verification failed.")
	}

	if s.deps.MFA != nil {
		if err := s.deps.MFA.RequireMfaOrContinue(ctx, project, code.UserID, code.NewUser); err != nil {
			return nil, err
		}
	}
	pair, err := s.deps.Sessions.CreateAuthTokens(ctx, project.ID, code.UserID, nil)
	if err != nil {
		return nil, err
	}
	s.log(ctx, "Token").Info("authorization code exchanged",
		logger.TenantID(project.ID), logger.UserID(code.UserID))
	return &TokenResponse{
		AccessToken:              pair.AccessToken,
		RefreshToken:             pair.RefreshToken,
		TokenType:                tokenType,
		ExpiresIn:                int64(pair.AccessExpiresAt.Sub(s.deps.Now()).Seconds()),
		Scope:                    code.Scope,
		IsNewUser:                code.NewUser,
		UserID:                   code.UserID,
		AfterCallbackRedirectURL: code.AfterCallbackRedirectURL,
	}, nil
}

func (s *Server) refresh(ctx context.Context, project *repository.Project, req TokenRequest) (*TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, autherr.ErrRefreshTokenNotFoundOrExpired
	}
	r, err := s.deps.Sessions.RefreshSession(ctx, project.ID, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  r.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    tokenType,
		ExpiresIn:    int64(r.AccessExpiresAt.Sub(s.deps.Now()).Seconds()),
		Scope:        ScopeLegacy,
		UserID:       r.UserID,
	}, nil
}

// VerifyPKCE compara el verifier con el challenge guardado. Sin challenge no hay PKCE
// que verificar.
func VerifyPKCE(challenge, method, verifier string) bool {
	if challenge == "" {
		return true
	}
	if len(verifier) < 43 || len(verifier) > 128 {
		return false
	}
	var got string
	switch method {
	case PKCES256:
		got = oauth2.S256ChallengeFromVerifier(verifier)
	case PKCEPlain:
		got = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(challenge)) == 1
}
