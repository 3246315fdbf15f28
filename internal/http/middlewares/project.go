package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// HeaderProjectID identifica el proyecto de las rutas de la API.
const HeaderProjectID = "X-Project-Id"

// ProjectLoader es lo mínimo que hace falta para resolver proyectos (el cache lo cumple).
type ProjectLoader interface {
	GetByID(ctx context.Context, id string) (*repository.Project, error)
}

// WithProjectResolution carga el proyecto de X-Project-Id y lo deja en el contexto.
func WithProjectResolution(projects ProjectLoader) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(HeaderProjectID))
			if id == "" {
				httperrors.WriteError(w, autherr.ErrProjectNotFound.WithMessage("The X-Project-Id header is required."))
				return
			}
			p, err := projects.GetByID(r.Context(), id)
			if repository.IsNotFound(err) {
				httperrors.WriteError(w, autherr.ErrProjectNotFound)
				return
			}
			if err != nil {
				httperrors.Respond(w, r, err)
				return
			}
			ctx := logger.ToContext(r.Context(), logger.From(r.Context()).With(logger.TenantID(p.ID)))
			next.ServeHTTP(w, r.WithContext(WithProject(ctx, p)))
		})
	}
}
