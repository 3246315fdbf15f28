// Package app arma el grafo de dependencias del servidor: store, issuers, servicios de
// dominio, controllers y router. cmd/authcore y los tests end-to-end lo usan igual.
package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/authcore/internal/cache"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/email"
	"github.com/dropDatabas3/authcore/internal/flows"
	authctl "github.com/dropDatabas3/authcore/internal/http/controllers/auth"
	emailctl "github.com/dropDatabas3/authcore/internal/http/controllers/email"
	healthctl "github.com/dropDatabas3/authcore/internal/http/controllers/health"
	oauthctl "github.com/dropDatabas3/authcore/internal/http/controllers/oauth"
	sessionctl "github.com/dropDatabas3/authcore/internal/http/controllers/session"
	teamctl "github.com/dropDatabas3/authcore/internal/http/controllers/team"
	"github.com/dropDatabas3/authcore/internal/http/router"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/metrics"
	"github.com/dropDatabas3/authcore/internal/mfa"
	"github.com/dropDatabas3/authcore/internal/oauth"
	"github.com/dropDatabas3/authcore/internal/oauth/grant"
	"github.com/dropDatabas3/authcore/internal/rate"
	"github.com/dropDatabas3/authcore/internal/security/password"
	"github.com/dropDatabas3/authcore/internal/security/secretbox"
	"github.com/dropDatabas3/authcore/internal/session"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// Options son las piezas que vienen de afuera (config, conexiones, fakes en tests).
type Options struct {
	Store        repository.Store
	ServerSecret string
	// JWTIssuer es el iss de los access tokens (la URL pública).
	JWTIssuer string
	AccessTTL time.Duration
	Box       *secretbox.Box
	Notifier  email.Notifier
	Providers oauth.Providers
	// Passkeys nil usa flows.WebAuthnVerifier.
	Passkeys flows.PasskeyVerifier
	Hasher   password.Hasher
	Policy   password.Policy

	ProjectCacheTTL time.Duration
	Limiter         rate.Limiter
	Metrics         *metrics.Metrics
	SecureCookies   bool
	// TOTPIssuer aparece en las apps autenticadoras.
	TOTPIssuer string
	Now        func() time.Time
}

// App es el contenedor ya cableado.
type App struct {
	Store    repository.Store
	Projects *cache.Projects
	JWT      *jwt.Issuer
	Sessions *session.Issuer
	MFA      *mfa.Service
	Flows    *flows.Service
	OAuth    *oauth.Service
	Handler  http.Handler
}

var errNoStore = errors.New("app: store is required")

func New(o Options) (*App, error) {
	if o.Store == nil {
		return nil, errNoStore
	}
	if o.ServerSecret == "" {
		return nil, errors.New("app: server secret is required")
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Hasher == nil {
		o.Hasher = password.NewArgon2Hasher(password.Default)
	}
	if o.Policy == (password.Policy{}) {
		o.Policy = password.DefaultPolicy
	}
	if o.Passkeys == nil {
		o.Passkeys = flows.WebAuthnVerifier{}
	}
	if o.TOTPIssuer == "" {
		o.TOTPIssuer = "authcore"
	}

	store := cache.WrapStore(o.Store, o.ProjectCacheTTL)
	projects := store.ProjectCache()

	j := jwt.NewIssuer(o.JWTIssuer, jwt.NewTenantKeys(o.ServerSecret), o.AccessTTL)
	j.Now = o.Now

	var codeObserver verification.Observer
	var tokenObserver session.Observer
	if o.Metrics != nil {
		codeObserver, tokenObserver = o.Metrics, o.Metrics
	}
	codes := verification.Deps{Codes: store.VerificationCodes(), Tx: store, Now: o.Now, Observer: codeObserver}

	sessions := session.NewIssuer(session.Deps{RefreshTokens: store.RefreshTokens(), JWT: j, Now: o.Now, Observer: tokenObserver})
	m := mfa.New(mfa.Deps{Codes: codes, Users: store.Users(), Box: o.Box, Sessions: sessions, Issuer: o.TOTPIssuer, Now: o.Now})
	f := flows.New(flows.Deps{
		Store:    store,
		Codes:    codes,
		Sessions: sessions,
		MFA:      m,
		Notifier: o.Notifier,
		Hasher:   o.Hasher,
		Policy:   o.Policy,
		Passkeys: o.Passkeys,
		Now:      o.Now,
	})
	oauthSvc := oauth.NewService(oauth.Deps{
		Store: store,
		Grant: grant.NewServer(grant.Deps{
			Projects: projects,
			Codes:    store.AuthorizationCodes(),
			Sessions: sessions,
			MFA:      m,
			Now:      o.Now,
		}),
		Sessions:      sessions,
		Providers:     o.Providers,
		Box:           o.Box,
		SecureCookies: o.SecureCookies,
		Now:           o.Now,
	})

	handler := router.New(router.Deps{
		Auth:     authctl.NewControllers(f, m),
		Contact:  emailctl.NewContactChannelsController(f),
		Teams:    teamctl.NewInvitationsController(f),
		Sessions: sessionctl.NewSessionsController(sessions),
		OAuth:    oauthctl.NewController(oauthSvc),
		Health:   healthctl.NewController(healthctl.Check{Name: "store", Pinger: store}),
		Projects: projects,
		Tokens:   sessions,
		Users:    store.Users(),
		Metrics:  o.Metrics,
		Limiter:  o.Limiter,
	})

	return &App{
		Store:    store,
		Projects: projects,
		JWT:      j,
		Sessions: sessions,
		MFA:      m,
		Flows:    f,
		OAuth:    oauthSvc,
		Handler:  handler,
	}, nil
}
