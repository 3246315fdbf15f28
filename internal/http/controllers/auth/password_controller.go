package auth

import (
	"net/http"

	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// PasswordController maneja sign-in/sign-up con password y el reset.
type PasswordController struct {
	flows PasswordFlows
}

func NewPasswordController(f PasswordFlows) *PasswordController {
	return &PasswordController{flows: f}
}

// SignIn maneja POST /api/v1/auth/password/sign-in
func (c *PasswordController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordSignInRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	res, err := c.flows.SignInWithPassword(ctx, middlewares.GetProject(ctx), req.Email, req.Password)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// SignUp maneja POST /api/v1/auth/password/sign-up
func (c *PasswordController) SignUp(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordSignUpRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	res, err := c.flows.SignUpWithPassword(ctx, middlewares.GetProject(ctx), req.Email, req.Password, req.VerificationCallbackURL)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// SendResetCode maneja POST /api/v1/auth/password/send-reset-code
func (c *PasswordController) SendResetCode(w http.ResponseWriter, r *http.Request) {
	var req dto.SendResetCodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	if err := c.flows.SendPasswordResetCode(ctx, middlewares.GetProject(ctx), req.Email, req.CallbackURL); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

// Reset maneja POST /api/v1/auth/password/reset
func (c *PasswordController) Reset(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	body := flows.ResetBody{Password: req.Password}
	if err := c.flows.ResetPassword(r.Context(), helpers.CodeRequest(r, req.Code, body)); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteSuccess(w)
}

// CheckResetCode maneja POST /api/v1/auth/password/reset/check-code
func (c *PasswordController) CheckResetCode(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if err := c.flows.CheckPasswordResetCode(r.Context(), helpers.CodeRequest(r, req.Code, flows.ResetBody{})); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]bool{"is_code_valid": true})
}
