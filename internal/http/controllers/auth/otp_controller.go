package auth

import (
	"net/http"

	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// OTPController maneja el sign-in con OTP / magic link.
type OTPController struct {
	flows OTPFlows
}

func NewOTPController(f OTPFlows) *OTPController {
	return &OTPController{flows: f}
}

// SendCode maneja POST /api/v1/auth/otp/send-sign-in-code
func (c *OTPController) SendCode(w http.ResponseWriter, r *http.Request) {
	var req dto.SendSignInCodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	ctx := r.Context()
	nonce, err := c.flows.SendSignInCode(ctx, middlewares.GetProject(ctx), req.Email, req.CallbackURL, req.Type)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.SendSignInCodeResponse{Nonce: nonce})
}

// SignIn maneja POST /api/v1/auth/otp/sign-in
func (c *OTPController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	res, err := c.flows.SignInWithCode(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{}))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// CheckCode maneja POST /api/v1/auth/otp/sign-in/check-code
func (c *OTPController) CheckCode(w http.ResponseWriter, r *http.Request) {
	var req dto.CodeRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	if err := c.flows.CheckSignInCode(r.Context(), helpers.CodeRequest(r, req.Code, flows.NoBody{})); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]bool{"is_code_valid": true})
}
