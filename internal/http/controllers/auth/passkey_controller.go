package auth

import (
	"net/http"

	"github.com/dropDatabas3/authcore/internal/flows"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
)

// PasskeyController maneja las ceremonias de registro y autenticación.
type PasskeyController struct {
	flows PasskeyFlows
}

func NewPasskeyController(f PasskeyFlows) *PasskeyController {
	return &PasskeyController{flows: f}
}

// InitiateAuthentication maneja POST /api/v1/auth/passkey/initiate-passkey-authentication
func (c *PasskeyController) InitiateAuthentication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts, err := c.flows.InitiatePasskeyAuthentication(ctx, middlewares.GetProject(ctx))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, opts)
}

// SignIn maneja POST /api/v1/auth/passkey/sign-in
func (c *PasskeyController) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.PasskeySignInRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	body := flows.PasskeySignInBody{AuthenticationResponse: req.AuthenticationResponse}
	res, err := c.flows.SignInWithPasskey(r.Context(), helpers.CodeRequest(r, req.Code, body))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// InitiateRegistration maneja POST /api/v1/auth/passkey/initiate-passkey-registration
func (c *PasskeyController) InitiateRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts, err := c.flows.InitiatePasskeyRegistration(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, opts)
}

// Register maneja POST /api/v1/auth/passkey/register
func (c *PasskeyController) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.PasskeyRegisterRequest
	if err := helpers.ReadJSON(w, r, &req); err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	body := flows.PasskeyRegisterBody{Credential: req.Credential}
	res, err := c.flows.RegisterPasskey(r.Context(), helpers.CodeRequest(r, req.Code, body))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}
