package auth

import (
	"net/http"

	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/mfa"
)

// MFAController maneja el segundo factor y la gestión de TOTP.
type MFAController struct {
	service MFAService
}

func NewMFAController(s MFAService) *MFAController {
	return &MFAController{service: s}
}

// SignIn maneja POST /api/v1/auth/mfa/sign-in: canjea el attempt code con el TOTP.
func (c *MFAController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.MFASignInRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	body := mfa.SignInBody{Type: req.Type, TOTP: req.TOTP}
	res, err := c.service.SignIn(r.Context(), helpers.CodeRequest(r, req.Code, body))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Enroll maneja POST /api/v1/auth/mfa/totp/enroll (usuario autenticado). Body opcional
// {totp}: obligatorio si el usuario ya tiene MFA activo.
func (c *MFAController) Enroll(w http.ResponseWriter, r *http.Request) {
	var req dto.TOTPRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	res, err := c.service.Enroll(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx).ID, req.TOTP)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Confirm maneja POST /api/v1/auth/mfa/totp/confirm
func (c *MFAController) Confirm(w http.ResponseWriter, r *http.Request) {
	var req dto.TOTPRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	if err := c.service.Confirm(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx).ID, req.TOTP); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

// Disable maneja POST /api/v1/auth/mfa/totp/disable
func (c *MFAController) Disable(w http.ResponseWriter, r *http.Request) {
	var req dto.TOTPRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	if err := c.service.Disable(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx).ID, req.TOTP); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}
