package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// TokenAuthenticator valida un access token contra el proyecto de la request.
type TokenAuthenticator interface {
	AuthenticateAccessToken(tenantID, token string) (*jwt.AccessClaims, error)
}

// UserLoader carga el usuario del token.
type UserLoader interface {
	GetByID(ctx context.Context, tenantID, id string) (*repository.User, error)
}

func bearer(r *http.Request) (string, bool) {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(ah) < len("bearer ") || !strings.EqualFold(ah[:len("bearer ")], "bearer ") {
		return "", false
	}
	return strings.TrimSpace(ah[len("bearer "):]), true
}

// WithUserResolution resuelve Authorization: Bearer <access>. Sin header la request sigue anónima;
// un token presente pero inválido es un error. Va después de WithProjectResolution.
func WithUserResolution(auth TokenAuthenticator, users UserLoader) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			project := GetProject(r.Context())
			if !ok || project == nil {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.AuthenticateAccessToken(project.ID, raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				httperrors.Respond(w, r, err)
				return
			}
			u, err := users.GetByID(r.Context(), project.ID, claims.UserID())
			if repository.IsNotFound(err) {
				// usuario borrado con un access token todavía vigente
				httperrors.WriteError(w, autherr.ErrInvalidAccessToken)
				return
			}
			if err != nil {
				httperrors.Respond(w, r, err)
				return
			}
			ctx := logger.ToContext(r.Context(), logger.From(r.Context()).With(logger.UserID(u.ID)))
			next.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
		})
	}
}

// RequireUser corta con USER_AUTHENTICATION_REQUIRED si no hay usuario.
func RequireUser() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetUser(r.Context()) == nil {
				httperrors.WriteError(w, autherr.ErrUserAuthenticationRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
