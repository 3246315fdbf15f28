// Package router arma el chi.Router con todas las rutas de la API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctl "github.com/dropDatabas3/authcore/internal/http/controllers/auth"
	emailctl "github.com/dropDatabas3/authcore/internal/http/controllers/email"
	healthctl "github.com/dropDatabas3/authcore/internal/http/controllers/health"
	oauthctl "github.com/dropDatabas3/authcore/internal/http/controllers/oauth"
	sessionctl "github.com/dropDatabas3/authcore/internal/http/controllers/session"
	teamctl "github.com/dropDatabas3/authcore/internal/http/controllers/team"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	mw "github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/metrics"
	"github.com/dropDatabas3/authcore/internal/rate"
)

// Deps son los controllers ya construidos más lo que necesitan los middlewares.
type Deps struct {
	Auth     *authctl.Controllers
	Contact  *emailctl.ContactChannelsController
	Teams    *teamctl.InvitationsController
	Sessions *sessionctl.SessionsController
	OAuth    *oauthctl.Controller
	Health   *healthctl.Controller

	Projects mw.ProjectLoader
	Tokens   mw.TokenAuthenticator
	Users    mw.UserLoader

	// Metrics y Limiter son opcionales.
	Metrics *metrics.Metrics
	Limiter rate.Limiter
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(mw.WithSecurityHeaders())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	var rateObserver mw.RateObserver
	if d.Metrics != nil {
		rateObserver = d.Metrics
	}
	limited := mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, Observer: rateObserver})
	requireUser := mw.RequireUser()

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.WithNoStore())

		// OAuth: el proyecto sale de client_id (o del outer state en el callback).
		r.Route("/auth/oauth", func(r chi.Router) {
			r.With(limited).Get("/authorize/{provider_id}", d.OAuth.Authorize)
			r.Get("/callback/{provider_id}", d.OAuth.Callback)
			r.Post("/callback/{provider_id}", d.OAuth.Callback)
			r.With(limited).Post("/token", d.OAuth.Token)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.WithProjectResolution(d.Projects))
			r.Use(mw.WithUserResolution(d.Tokens, d.Users))

			r.Route("/auth/password", func(r chi.Router) {
				r.With(limited).Post("/sign-in", d.Auth.Password.SignIn)
				r.With(limited).Post("/sign-up", d.Auth.Password.SignUp)
				r.With(limited).Post("/send-reset-code", d.Auth.Password.SendResetCode)
				r.Post("/reset", d.Auth.Password.Reset)
				r.Post("/reset/check-code", d.Auth.Password.CheckResetCode)
			})

			r.Route("/auth/otp", func(r chi.Router) {
				r.With(limited).Post("/send-sign-in-code", d.Auth.OTP.SendCode)
				r.With(limited).Post("/sign-in", d.Auth.OTP.SignIn)
				r.Post("/sign-in/check-code", d.Auth.OTP.CheckCode)
			})

			r.Route("/auth/mfa", func(r chi.Router) {
				r.With(limited).Post("/sign-in", d.Auth.MFA.SignIn)
				r.With(requireUser).Post("/totp/enroll", d.Auth.MFA.Enroll)
				r.With(requireUser).Post("/totp/confirm", d.Auth.MFA.Confirm)
				r.With(requireUser).Post("/totp/disable", d.Auth.MFA.Disable)
			})

			r.Route("/auth/passkey", func(r chi.Router) {
				r.Post("/initiate-passkey-authentication", d.Auth.Passkey.InitiateAuthentication)
				r.With(limited).Post("/sign-in", d.Auth.Passkey.SignIn)
				r.With(requireUser).Post("/initiate-passkey-registration", d.Auth.Passkey.InitiateRegistration)
				r.With(requireUser).Post("/register", d.Auth.Passkey.Register)
			})

			r.Route("/auth/sessions/current", func(r chi.Router) {
				r.Post("/refresh", d.Sessions.Refresh)
				r.Delete("/", d.Sessions.SignOut)
			})

			r.Route("/contact-channels", func(r chi.Router) {
				r.With(requireUser, limited).Post("/send-verification-code", d.Contact.SendVerificationCode)
				r.Post("/verify", d.Contact.Verify)
				r.Post("/verify/check-code", d.Contact.CheckCode)
			})

			r.Route("/team-invitations", func(r chi.Router) {
				r.With(requireUser).Get("/", d.Teams.List)
				r.With(requireUser).Delete("/{id}", d.Teams.Revoke)
				r.With(requireUser, limited).Post("/send-code", d.Teams.Send)
				r.With(requireUser).Post("/accept", d.Teams.Accept)
				r.Post("/accept/check-code", d.Teams.CheckCode)
				r.Post("/accept/details", d.Teams.Details)
			})

			r.With(requireUser).Get("/connected-accounts/{provider_id}/access-token", d.OAuth.ProviderAccessToken)
		})
	})

	return r
}
