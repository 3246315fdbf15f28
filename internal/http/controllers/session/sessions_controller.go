// Package session expone refresh y sign-out de la sesión actual.
package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// HeaderRefreshToken lleva el refresh token de la sesión actual.
const HeaderRefreshToken = "X-Refresh-Token"

type Sessions interface {
	RefreshAccessToken(ctx context.Context, tenantID, refreshToken string) (string, error)
	RevokeSession(ctx context.Context, tenantID, refreshToken string) error
}

type SessionsController struct {
	sessions Sessions
}

func NewSessionsController(s Sessions) *SessionsController {
	return &SessionsController{sessions: s}
}

func refreshToken(r *http.Request) (string, error) {
	rt := strings.TrimSpace(r.Header.Get(HeaderRefreshToken))
	if rt == "" {
		return "", autherr.ErrRefreshTokenNotFoundOrExpired.WithMessage("The X-Refresh-Token header is required.")
	}
	return rt, nil
}

// Refresh maneja POST /api/v1/auth/sessions/current/refresh
func (c *SessionsController) Refresh(w http.ResponseWriter, r *http.Request) {
	rt, err := refreshToken(r)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	access, err := c.sessions.RefreshAccessToken(ctx, middlewares.GetProject(ctx).ID, rt)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.RefreshResponse{AccessToken: access})
}

// SignOut maneja DELETE /api/v1/auth/sessions/current
func (c *SessionsController) SignOut(w http.ResponseWriter, r *http.Request) {
	rt, err := refreshToken(r)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	if err := c.sessions.RevokeSession(ctx, middlewares.GetProject(ctx).ID, rt); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}
