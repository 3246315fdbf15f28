package helpers

import (
	"net/http"

	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/verification"
)

// CodeRequest arma la request de canje con el proyecto y el usuario del contexto.
func CodeRequest[B any](r *http.Request, code string, body B) verification.Request[B] {
	ctx := r.Context()
	return verification.Request[B]{
		Project: middlewares.GetProject(ctx),
		Code:    code,
		Body:    body,
		User:    middlewares.GetUser(ctx),
	}
}
