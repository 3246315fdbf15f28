// Package upstream implementa los proveedores de identidad externos (GitHub, Google, OIDC y
// OAuth2 genéricos) sobre golang.org/x/oauth2 y go-oidc.
//
// El core solo ve la interfaz Provider: arma la URL de autorización con PKCE S256 y canjea
// el callback por el perfil del usuario y los tokens del proveedor.
package upstream

import (
	"context"
	"net/url"
	"strings"
	"time"
)

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks -source=provider.go Provider

// DefaultAccessTokenTTL se usa cuando el proveedor no informa expires_in.
const DefaultAccessTokenTTL = time.Hour

// UserInfo es el perfil normalizado de la cuenta externa.
type UserInfo struct {
	AccountID       string
	DisplayName     string
	Email           string
	EmailVerified   bool
	ProfileImageURL string
}

// TokenSet son los tokens del proveedor. RefreshToken puede venir vacío.
type TokenSet struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
}

// CallbackInput es lo que el callback recibió del proveedor más el verifier guardado.
type CallbackInput struct {
	CodeVerifier string
	State        string
	Params       url.Values
}

// CallbackResult del canje.
type CallbackResult struct {
	UserInfo UserInfo
	Tokens   TokenSet
}

// Provider es un proveedor upstream ya configurado para un proyecto.
type Provider interface {
	ID() string
	// Scope es el scope base que se pide siempre.
	Scope() string
	AuthorizationURL(codeVerifier, state, extraScope string) string
	Callback(ctx context.Context, in CallbackInput) (*CallbackResult, error)
	// Refresh obtiene un access token nuevo con un refresh token guardado.
	Refresh(ctx context.Context, refreshToken, scope string) (*TokenSet, error)
}

// MergeScopes une dos listas separadas por espacios sin duplicados, respetando el orden.
func MergeScopes(base, extra string) string {
	seen := map[string]bool{}
	var out []string
	for _, s := range append(strings.Fields(base), strings.Fields(extra)...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
