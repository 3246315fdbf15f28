// Package email expone la verificación del email primario (contact channels).
package email

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/verification"
)

type VerificationFlows interface {
	SendVerificationCode(ctx context.Context, project *repository.Project, u *repository.User, callbackURL string) error
	VerifyEmail(ctx context.Context, req verification.Request[flows.NoBody]) error
	CheckEmailVerificationCode(ctx context.Context, req verification.Request[flows.NoBody]) error
}

// ContactChannelsController maneja /api/v1/contact-channels.
type ContactChannelsController struct {
	flows VerificationFlows
}

func NewContactChannelsController(f VerificationFlows) *ContactChannelsController {
	return &ContactChannelsController{flows: f}
}

// SendVerificationCode requiere usuario: se verifica su email primario.
func (c *ContactChannelsController) SendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req dto.SendVerificationCodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	if err := c.flows.SendVerificationCode(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx), req.CallbackURL); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

func (c *ContactChannelsController) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if err := c.flows.VerifyEmail(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{})); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

func (c *ContactChannelsController) CheckCode(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if err := c.flows.CheckEmailVerificationCode(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{})); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]bool{"is_code_valid": true})
}
