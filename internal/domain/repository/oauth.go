package repository

import (
	"context"
	"time"
)

// FlowType distingue sign-in/sign-up de vinculación de cuenta.
type FlowType string

const (
	FlowAuthenticate FlowType = "authenticate"
	FlowLink         FlowType = "link"
)

// OAuthOuterState es el registro de un flujo OAuth en vuelo, correlacionado con el
// user-agent por la cookie "<prefix>-<InnerState>". De un solo uso.
type OAuthOuterState struct {
	InnerState               string
	TenantID                 string
	ClientID                 string
	ClientSecret             string
	RedirectURI              string
	Scope                    string
	CallerState              string
	CodeChallenge            string
	CodeChallengeMethod      string
	GrantType                string
	ResponseType             string
	InnerCodeVerifier        string
	FlowType                 FlowType
	LinkUserID               string
	ProviderScope            string
	ErrorRedirectURL         string
	AfterCallbackRedirectURL string
	CreatedAt                time.Time
	ExpiresAt                time.Time
}

// OAuthStateRepository persiste outer states.
type OAuthStateRepository interface {
	Create(ctx context.Context, s *OAuthOuterState) error

	// Take lee y borra en una sola operación. Devuelve la fila aunque esté expirada
	// (el caller distingue timeout). ErrNotFound si no existe.
	Take(ctx context.Context, innerState string) (*OAuthOuterState, error)

	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// OAuthAccount vincula (tenant, provider, provider_account_id) con un usuario local.
type OAuthAccount struct {
	TenantID          string
	ProviderID        string
	ProviderAccountID string
	UserID            string
	Email             string
	CreatedAt         time.Time
}

// OAuthAccountRepository persiste cuentas OAuth vinculadas.
type OAuthAccountRepository interface {
	Get(ctx context.Context, tenantID, providerID, providerAccountID string) (*OAuthAccount, error)
	GetByUser(ctx context.Context, tenantID, userID, providerID string) (*OAuthAccount, error)
	// Create retorna ErrConflict si la cuenta del proveedor ya está vinculada.
	Create(ctx context.Context, a *OAuthAccount) error
}

// ProviderTokenKind es refresh | access.
type ProviderTokenKind string

const (
	ProviderRefreshToken ProviderTokenKind = "refresh"
	ProviderAccessToken  ProviderTokenKind = "access"
)

// ProviderToken es un token del proveedor upstream guardado para usarlo en nombre del usuario.
type ProviderToken struct {
	ID                string
	TenantID          string
	ProviderID        string
	ProviderAccountID string
	Kind              ProviderTokenKind
	// Token va sellado con secretbox.
	Token     string
	Scopes    []string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// ProviderTokenRepository persiste tokens upstream.
type ProviderTokenRepository interface {
	Create(ctx context.Context, t *ProviderToken) error
	// List devuelve los tokens del tipo, más nuevos primero.
	List(ctx context.Context, tenantID, providerID, providerAccountID string, kind ProviderTokenKind) ([]*ProviderToken, error)
}

// AuthorizationCode es el código local que emite el grant engine después del callback.
type AuthorizationCode struct {
	CodeHash                 string
	TenantID                 string
	ClientID                 string
	UserID                   string
	RedirectURI              string
	Scope                    string
	CodeChallenge            string
	CodeChallengeMethod      string
	NewUser                  bool
	AfterCallbackRedirectURL string
	CreatedAt                time.Time
	ExpiresAt                time.Time
}

// AuthorizationCodeRepository persiste authorization codes locales.
type AuthorizationCodeRepository interface {
	Create(ctx context.Context, c *AuthorizationCode) error
	// Take borra y devuelve el código (single use). ErrNotFound si no existe.
	Take(ctx context.Context, tenantID, codeHash string) (*AuthorizationCode, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
