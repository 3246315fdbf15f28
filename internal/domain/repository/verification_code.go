package repository

import (
	"context"
	"encoding/json"
	"time"
)

// VerificationCodeType identifica el handler que creó el código.
type VerificationCodeType string

const (
	CodeTypePasswordReset                  VerificationCodeType = "PASSWORD_RESET"
	CodeTypeEmailVerification              VerificationCodeType = "EMAIL_VERIFICATION"
	CodeTypeOneTimePassword                VerificationCodeType = "ONE_TIME_PASSWORD"
	CodeTypePasskeyRegistrationChallenge   VerificationCodeType = "PASSKEY_REGISTRATION_CHALLENGE"
	CodeTypePasskeyAuthenticationChallenge VerificationCodeType = "PASSKEY_AUTHENTICATION_CHALLENGE"
	CodeTypeTeamInvitation                 VerificationCodeType = "TEAM_INVITATION"
	CodeTypeMFAAttempt                     VerificationCodeType = "MFA_ATTEMPT"
)

// VerificationCode es un secreto de un solo uso, con expiración, que autoriza una transición.
// El secreto en claro nunca se persiste: solo CodeHash.
type VerificationCode struct {
	ID          string
	TenantID    string
	Type        VerificationCodeType
	CodeHash    string
	Method      json.RawMessage
	Data        json.RawMessage
	RedirectURL string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// Expired reporta si el código venció respecto de now.
func (c *VerificationCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Used reporta si el código ya fue consumido o revocado.
func (c *VerificationCode) Used() bool {
	return c.UsedAt != nil
}

// VerificationCodeRepository persiste verification codes.
type VerificationCodeRepository interface {
	// Create inserta el código. ErrConflict si (tenant, code_hash) ya existe.
	Create(ctx context.Context, code *VerificationCode) error

	// GetByCodeHash lee sin mutar. ErrNotFound si no existe para ese tenant y tipo.
	GetByCodeHash(ctx context.Context, tenantID string, t VerificationCodeType, codeHash string) (*VerificationCode, error)

	// ConsumeIfValid marca used_at = now solo si el código no fue usado y no expiró,
	// y devuelve la fila ya marcada. ErrNotFound si ninguna fila cumplió el predicado.
	ConsumeIfValid(ctx context.Context, tenantID string, t VerificationCodeType, codeHash string, now time.Time) (*VerificationCode, error)

	// MarkUsed revoca por id sin side effect. ErrNotFound si no hay fila sin usar con ese id.
	MarkUsed(ctx context.Context, tenantID string, t VerificationCodeType, id string, now time.Time) error

	// ListActive devuelve los códigos del tipo que no fueron usados ni expiraron.
	ListActive(ctx context.Context, tenantID string, t VerificationCodeType, now time.Time) ([]*VerificationCode, error)

	// DeleteExpired borra filas expiradas antes de before. Limpieza opcional.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
