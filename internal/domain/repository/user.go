package repository

import (
	"context"
	"time"
)

// User es el sujeto local al que resuelve la autenticación.
type User struct {
	ID                      string
	TenantID                string
	PrimaryEmail            string
	PrimaryEmailVerified    bool
	PrimaryEmailAuthEnabled bool
	DisplayName             string
	ProfileImageURL         string
	PasswordHash            string
	RequiresTOTPMFA         bool
	// TOTPSecret va sellado con secretbox; vacío si no hay enrolamiento.
	TOTPSecret string
	CreatedAt  time.Time
}

// UserRepository es lo mínimo que el core necesita de usuarios.
type UserRepository interface {
	// Create inserta; ErrConflict si ya existe un usuario con el mismo email de auth.
	Create(ctx context.Context, u *User) error

	GetByID(ctx context.Context, tenantID, id string) (*User, error)

	// GetByAuthEmail busca entre usuarios con PrimaryEmailAuthEnabled.
	GetByAuthEmail(ctx context.Context, tenantID, email string) (*User, error)

	UpdatePassword(ctx context.Context, tenantID, id, passwordHash string) error

	// MarkEmailVerified solo actualiza si el email primario sigue siendo email.
	// ErrNotFound si el usuario no existe o el email cambió.
	MarkEmailVerified(ctx context.Context, tenantID, id, email string) error

	// SetTOTP guarda (o limpia con "") el secreto sellado y el flag de MFA.
	SetTOTP(ctx context.Context, tenantID, id, sealedSecret string, requiresMFA bool) error
}
