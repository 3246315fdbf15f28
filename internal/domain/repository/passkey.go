package repository

import (
	"context"
	"time"
)

// PasskeyCredential es una credencial WebAuthn registrada.
type PasskeyCredential struct {
	TenantID     string
	UserID       string
	CredentialID string
	UserHandle   string
	PublicKey    []byte
	Counter      uint32
	// BackupEligible no cambia durante la vida de la credencial.
	BackupEligible bool
	CreatedAt      time.Time
}

// PasskeyRepository persiste credenciales passkey (una por usuario).
type PasskeyRepository interface {
	GetByCredentialID(ctx context.Context, tenantID, credentialID string) (*PasskeyCredential, error)
	// Upsert reemplaza la credencial del usuario.
	Upsert(ctx context.Context, c *PasskeyCredential) error
	UpdateCounter(ctx context.Context, tenantID, credentialID string, counter uint32) error
}
