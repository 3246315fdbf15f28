package repository

import "context"

// Transactor ejecuta fn dentro de una transacción. Si fn devuelve error se hace rollback.
// El ctx que recibe fn transporta la transacción; los repositorios la detectan solos.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store agrupa los repositorios de un backend.
type Store interface {
	Transactor

	Projects() ProjectRepository
	Users() UserRepository
	VerificationCodes() VerificationCodeRepository
	RefreshTokens() RefreshTokenRepository
	OAuthStates() OAuthStateRepository
	OAuthAccounts() OAuthAccountRepository
	ProviderTokens() ProviderTokenRepository
	AuthorizationCodes() AuthorizationCodeRepository
	Teams() TeamRepository
	Passkeys() PasskeyRepository

	Ping(ctx context.Context) error
	Close() error
}
