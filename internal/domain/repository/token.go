package repository

import (
	"context"
	"time"
)

// RefreshToken es la mitad durable de una sesión. TokenHash = sha256 del token opaco.
type RefreshToken struct {
	ID        string
	TenantID  string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	// ExpiresAt es opcional (sesiones de impersonación o con vida absoluta).
	ExpiresAt *time.Time
}

// Expired reporta si el token tiene expiración absoluta y ya pasó.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// RefreshTokenRepository persiste refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error

	// GetByHash retorna ErrNotFound si no existe para el tenant.
	GetByHash(ctx context.Context, tenantID, tokenHash string) (*RefreshToken, error)

	// DeleteByHash borra atómicamente; ErrNotFound si no había fila.
	DeleteByHash(ctx context.Context, tenantID, tokenHash string) error

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
