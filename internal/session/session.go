// Package session emite pares refresh/access token y los valida.
//
// El refresh token es opaco y se guarda hasheado; el access token es un JWT HS256 que se
// valida sin tocar el store.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	tokens "github.com/dropDatabas3/authcore/internal/security/token"
)

// Observer cuenta tokens emitidos (métricas). Opcional.
type Observer interface {
	TokenIssued(kind string)
}

// Tokens es el par emitido por CreateAuthTokens.
type Tokens struct {
	RefreshToken    string
	AccessToken     string
	AccessExpiresAt time.Time
}

// Deps del issuer.
type Deps struct {
	RefreshTokens repository.RefreshTokenRepository
	JWT           *jwt.Issuer
	Now           func() time.Time
	Observer      Observer
}

// Issuer implementa el ciclo de vida de las sesiones.
type Issuer struct {
	deps Deps
}

func NewIssuer(d Deps) *Issuer {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Issuer{deps: d}
}

func (i *Issuer) observe(kind string) {
	if i.deps.Observer != nil {
		i.deps.Observer.TokenIssued(kind)
	}
}

// CreateAuthTokens crea una sesión nueva. expiresAt opcional fija una vida absoluta al
// refresh token (sesiones de impersonación).
func (i *Issuer) CreateAuthTokens(ctx context.Context, tenantID, userID string, expiresAt *time.Time) (*Tokens, error) {
	raw, err := tokens.GenerateSecureRandomString()
	if err != nil {
		return nil, err
	}
	rt := &repository.RefreshToken{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		TokenHash: tokens.SHA256Base64URL(raw),
		CreatedAt: i.deps.Now(),
		ExpiresAt: expiresAt,
	}
	if err := i.deps.RefreshTokens.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("session: create refresh token: %w", err)
	}
	access, exp, err := i.deps.JWT.Sign(tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("session: sign access token: %w", err)
	}
	i.observe("refresh")
	i.observe("access")
	logger.From(ctx).Debug("session created",
		logger.Layer("session"), logger.TenantID(tenantID), logger.UserID(userID))
	return &Tokens{RefreshToken: raw, AccessToken: access, AccessExpiresAt: exp}, nil
}

// GenerateAccessToken firma un access token sin crear sesión.
func (i *Issuer) GenerateAccessToken(_ context.Context, tenantID, userID string) (string, error) {
	access, _, err := i.deps.JWT.Sign(tenantID, userID)
	if err != nil {
		return "", err
	}
	i.observe("access")
	return access, nil
}

// Refreshed es el resultado de RefreshSession.
type Refreshed struct {
	UserID          string
	AccessToken     string
	AccessExpiresAt time.Time
}

// RefreshAccessToken no rota el refresh token.
func (i *Issuer) RefreshAccessToken(ctx context.Context, tenantID, refreshToken string) (string, error) {
	r, err := i.RefreshSession(ctx, tenantID, refreshToken)
	if err != nil {
		return "", err
	}
	return r.AccessToken, nil
}

// RefreshSession es RefreshAccessToken con el usuario y la expiración (token endpoint).
func (i *Issuer) RefreshSession(ctx context.Context, tenantID, refreshToken string) (*Refreshed, error) {
	rt, err := i.deps.RefreshTokens.GetByHash(ctx, tenantID, tokens.SHA256Base64URL(refreshToken))
	if repository.IsNotFound(err) {
		return nil, autherr.ErrRefreshTokenNotFoundOrExpired
	}
	if err != nil {
		return nil, err
	}
	if rt.Expired(i.deps.Now()) {
		return nil, autherr.ErrRefreshTokenNotFoundOrExpired
	}
	access, exp, err := i.deps.JWT.Sign(tenantID, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("session: sign access token: %w", err)
	}
	i.observe("access")
	return &Refreshed{UserID: rt.UserID, AccessToken: access, AccessExpiresAt: exp}, nil
}

// RevokeSession borra el refresh token. Dos sign-outs concurrentes: uno gana, el otro
// recibe RefreshTokenNotFoundOrExpired.
func (i *Issuer) RevokeSession(ctx context.Context, tenantID, refreshToken string) error {
	err := i.deps.RefreshTokens.DeleteByHash(ctx, tenantID, tokens.SHA256Base64URL(refreshToken))
	if repository.IsNotFound(err) {
		return autherr.ErrRefreshTokenNotFoundOrExpired
	}
	return err
}

// DecodeAccessToken valida firma y expiración.
func (i *Issuer) DecodeAccessToken(token string) (*jwt.AccessClaims, error) {
	return i.deps.JWT.Decode(token)
}

// AuthenticateAccessToken además exige que el token sea del proyecto de la request.
func (i *Issuer) AuthenticateAccessToken(tenantID, token string) (*jwt.AccessClaims, error) {
	claims, err := i.deps.JWT.Decode(token)
	if err != nil {
		return nil, err
	}
	if claims.TenantID != tenantID {
		return nil, autherr.ErrAccessTokenProjectMismatch
	}
	return claims, nil
}

// AccessTTL expone la vida de los access tokens (expires_in del token endpoint).
func (i *Issuer) AccessTTL() time.Duration { return i.deps.JWT.AccessTTL }
