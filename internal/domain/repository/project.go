package repository

import "context"

// ProviderCredentialType: shared usa credenciales del servidor, standard las del proyecto.
type ProviderCredentialType string

const (
	ProviderShared   ProviderCredentialType = "shared"
	ProviderStandard ProviderCredentialType = "standard"
)

// Domain es un dominio de confianza del proyecto. HandlerPath es la ruta del handler
// de callbacks OAuth del cliente (default "/handler").
type Domain struct {
	Domain      string `json:"domain" yaml:"domain"`
	HandlerPath string `json:"handler_path" yaml:"handler_path"`
}

// OAuthProviderConfig configura un proveedor upstream para un proyecto.
type OAuthProviderConfig struct {
	ID           string                 `json:"id" yaml:"id"`
	Type         ProviderCredentialType `json:"type" yaml:"type"`
	Enabled      bool                   `json:"enabled" yaml:"enabled"`
	ClientID     string                 `json:"client_id,omitempty" yaml:"client_id"`
	ClientSecret string                 `json:"client_secret,omitempty" yaml:"client_secret"`
	// Issuer solo para proveedores OIDC genéricos (id distinto de google/github).
	Issuer string `json:"issuer,omitempty" yaml:"issuer"`
	// Endpoints de un proveedor OAuth2 genérico sin discovery.
	AuthorizationURL string `json:"authorization_url,omitempty" yaml:"authorization_url"`
	TokenURL         string `json:"token_url,omitempty" yaml:"token_url"`
	UserInfoURL      string `json:"userinfo_url,omitempty" yaml:"userinfo_url"`
	// Scope base extra (se suma al default del proveedor).
	Scope string `json:"scope,omitempty" yaml:"scope"`
}

// ProjectConfig es la parte de la configuración del proyecto que lee el core.
type ProjectConfig struct {
	Domains           []Domain              `json:"domains" yaml:"domains"`
	AllowLocalhost    bool                  `json:"allow_localhost" yaml:"allow_localhost"`
	SignUpEnabled     bool                  `json:"sign_up_enabled" yaml:"sign_up_enabled"`
	CredentialEnabled bool                  `json:"credential_enabled" yaml:"credential_enabled"`
	MagicLinkEnabled  bool                  `json:"magic_link_enabled" yaml:"magic_link_enabled"`
	PasskeyEnabled    bool                  `json:"passkey_enabled" yaml:"passkey_enabled"`
	ClientSecrets     []string              `json:"client_secrets" yaml:"client_secrets"`
	OAuthProviders    []OAuthProviderConfig `json:"oauth_providers" yaml:"oauth_providers"`
}

// Project es un tenant aislado.
type Project struct {
	ID          string
	DisplayName string
	Config      ProjectConfig
}

// Provider busca un proveedor por id (habilitado o no).
func (p *Project) Provider(id string) (OAuthProviderConfig, bool) {
	for _, pc := range p.Config.OAuthProviders {
		if pc.ID == id {
			return pc, true
		}
	}
	return OAuthProviderConfig{}, false
}

// ProjectRepository lee (y para seeds, guarda) proyectos.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*Project, error)
	Upsert(ctx context.Context, p *Project) error
}
