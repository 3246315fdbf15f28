package upstream

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// providerTTL: los proveedores OIDC cachean discovery y JWKS; se rearman cada tanto.
const providerTTL = time.Hour

// Registry construye y cachea Providers a partir de la config del proyecto.
type Registry struct {
	// CallbackBaseURL es la base pública de la API; el redirect_uri upstream es
	// <base>/api/v1/auth/oauth/callback/<provider_id>.
	CallbackBaseURL string
	// Shared son las credenciales del servidor para proveedores type=shared.
	Shared map[string]Credentials
	Client *http.Client
	// GitHub opcional para GitHub Enterprise.
	GitHub *GitHubOptions

	c     *gocache.Cache
	group singleflight.Group
}

func NewRegistry(callbackBaseURL string, shared map[string]Credentials, client *http.Client) *Registry {
	return &Registry{
		CallbackBaseURL: strings.TrimRight(callbackBaseURL, "/"),
		Shared:          shared,
		Client:          client,
		c:               gocache.New(providerTTL, 10*time.Minute),
	}
}

// RedirectURL del callback upstream de un proveedor.
func (r *Registry) RedirectURL(providerID string) string {
	return r.CallbackBaseURL + "/api/v1/auth/oauth/callback/" + providerID
}

func (r *Registry) credentials(cfg repository.OAuthProviderConfig) (Credentials, error) {
	if cfg.Type == repository.ProviderShared {
		c, ok := r.Shared[cfg.ID]
		if !ok || c.ClientID == "" {
			return Credentials{}, fmt.Errorf("no shared credentials for provider %q", cfg.ID)
		}
		return c, nil
	}
	if cfg.ClientID == "" {
		return Credentials{}, fmt.Errorf("provider %q has no client id", cfg.ID)
	}
	return Credentials{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}, nil
}

// cacheKey incluye un hash de las credenciales para que rotarlas invalide la entrada.
func cacheKey(cfg repository.OAuthProviderConfig, c Credentials) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		cfg.ID, string(cfg.Type), cfg.Issuer, cfg.AuthorizationURL, cfg.TokenURL, cfg.UserInfoURL, cfg.Scope,
		c.ClientID, c.ClientSecret,
	}, "\x00")))
	return hex.EncodeToString(h[:])
}

// Get devuelve el Provider de la config. Un proveedor mal configurado se reporta como no
// habilitado; el detalle queda en el log.
func (r *Registry) Get(ctx context.Context, cfg repository.OAuthProviderConfig) (Provider, error) {
	creds, err := r.credentials(cfg)
	if err != nil {
		logger.From(ctx).Warn("oauth provider misconfigured", logger.Provider(cfg.ID), logger.Err(err))
		return nil, autherr.ErrOAuthProviderNotFoundOrNotEnabled.WithCause(err)
	}
	key := cacheKey(cfg, creds)
	if v, ok := r.c.Get(key); ok {
		return v.(Provider), nil
	}
	v, err, _ := r.group.Do(key, func() (any, error) {
		p, err := r.build(ctx, cfg, creds)
		if err != nil {
			return nil, err
		}
		r.c.SetDefault(key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

func (r *Registry) build(ctx context.Context, cfg repository.OAuthProviderConfig, creds Credentials) (Provider, error) {
	redirectURL := r.RedirectURL(cfg.ID)
	switch {
	case cfg.ID == "github":
		return NewGitHub(creds, redirectURL, cfg.Scope, r.Client, r.GitHub), nil
	case cfg.ID == "google":
		return NewGoogle(ctx, creds, redirectURL, cfg.Scope, r.Client)
	case cfg.Issuer != "":
		return NewOIDC(ctx, cfg.ID, cfg.Issuer, creds, redirectURL, cfg.Scope, r.Client)
	case cfg.AuthorizationURL != "" && cfg.TokenURL != "" && cfg.UserInfoURL != "":
		return NewGeneric(GenericConfig{
			ID:          cfg.ID,
			AuthURL:     cfg.AuthorizationURL,
			TokenURL:    cfg.TokenURL,
			UserInfoURL: cfg.UserInfoURL,
			Scope:       cfg.Scope,
		}, creds, redirectURL, r.Client), nil
	}
	err := fmt.Errorf("provider %q: unknown id and no issuer or endpoints configured", cfg.ID)
	logger.From(ctx).Warn("oauth provider misconfigured", logger.Provider(cfg.ID), logger.Err(err))
	return nil, autherr.ErrOAuthProviderNotFoundOrNotEnabled.WithCause(err)
}
