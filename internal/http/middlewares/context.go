package middlewares

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// Middleware tiene la firma que espera chi.Router.Use.
type Middleware = func(http.Handler) http.Handler

type ctxKey string

const (
	ctxProjectKey   ctxKey = "project"
	ctxUserKey      ctxKey = "user"
	ctxRequestIDKey ctxKey = "request_id"
)

func WithProject(ctx context.Context, p *repository.Project) context.Context {
	return context.WithValue(ctx, ctxProjectKey, p)
}

func WithUser(ctx context.Context, u *repository.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetProject devuelve el proyecto resuelto por WithProjectResolution (nil si la ruta no
// lo resuelve).
func GetProject(ctx context.Context) *repository.Project {
	p, _ := ctx.Value(ctxProjectKey).(*repository.Project)
	return p
}

// GetUser devuelve el usuario del access token, o nil si la request es anónima.
func GetUser(ctx context.Context) *repository.User {
	u, _ := ctx.Value(ctxUserKey).(*repository.User)
	return u
}

func GetRequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxRequestIDKey).(string)
	return s
}
