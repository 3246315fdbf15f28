// Package oauth expone authorize, callback y token del flujo OAuth externo, y el access
// token de las cuentas conectadas.
package oauth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/http/dto"
	httperrors "github.com/dropDatabas3/authcore/internal/http/errors"
	"github.com/dropDatabas3/authcore/internal/http/helpers"
	"github.com/dropDatabas3/authcore/internal/http/middlewares"
	"github.com/dropDatabas3/authcore/internal/oauth"
	"github.com/dropDatabas3/authcore/internal/oauth/grant"
)

type Service interface {
	Authorize(ctx context.Context, req oauth.AuthorizeRequest) (*oauth.AuthorizeResult, error)
	Callback(ctx context.Context, req oauth.CallbackRequest) (*oauth.CallbackResult, error)
	Token(ctx context.Context, req grant.TokenRequest) (*grant.TokenResponse, error)
	ProviderAccessToken(ctx context.Context, project *repository.Project, userID, providerID, scope string) (string, error)
	CookieName(innerState string) string
	ClearCookie(innerState string) *http.Cookie
}

type Controller struct {
	service Service
}

func NewController(s Service) *Controller {
	return &Controller{service: s}
}

// Authorize maneja GET /api/v1/auth/oauth/authorize/{provider_id}. El proyecto sale del
// client_id, no de X-Project-Id.
func (c *Controller) Authorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := c.service.Authorize(r.Context(), oauth.AuthorizeRequest{
		ProviderID:               chi.URLParam(r, "provider_id"),
		FlowType:                 repository.FlowType(q.Get("type")),
		Token:                    q.Get("token"),
		ProviderScope:            q.Get("provider_scope"),
		ErrorRedirectURL:         q.Get("error_redirect_url"),
		AfterCallbackRedirectURL: q.Get("after_callback_redirect_url"),
		OAuth: grant.AuthorizeRequest{
			ClientID:            q.Get("client_id"),
			ClientSecret:        q.Get("client_secret"),
			RedirectURI:         q.Get("redirect_uri"),
			Scope:               q.Get("scope"),
			State:               q.Get("state"),
			CodeChallenge:       q.Get("code_challenge"),
			CodeChallengeMethod: q.Get("code_challenge_method"),
			GrantType:           q.Get("grant_type"),
			ResponseType:        q.Get("response_type"),
		},
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	http.SetCookie(w, res.Cookie)
	http.Redirect(w, r, res.ProviderURL, http.StatusFound)
}

// Callback maneja GET|POST /api/v1/auth/oauth/callback/{provider_id}. Algunos proveedores
// (Apple) postean el resultado como form.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	for k, vs := range r.URL.Query() {
		params[k] = append(params[k], vs...)
	}
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, helpers.MaxBodySize)
		if err := r.ParseForm(); err != nil {
			httperrors.Respond(w, r, autherr.SchemaError(err))
			return
		}
		for k, vs := range r.PostForm {
			params[k] = append(params[k], vs...)
		}
	}
	state := params.Get("state")

	var cookieValue string
	if state != "" {
		if ck, err := r.Cookie(c.service.CookieName(state)); err == nil {
			cookieValue = ck.Value
		}
		http.SetCookie(w, c.service.ClearCookie(state))
	}

	res, err := c.service.Callback(r.Context(), oauth.CallbackRequest{
		ProviderID:  chi.URLParam(r, "provider_id"),
		State:       state,
		Params:      params,
		CookieValue: cookieValue,
	})
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}

// Token maneja POST /api/v1/auth/oauth/token (form-urlencoded). Las credenciales del
// cliente pueden venir en el body o por Basic auth.
func (c *Controller) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, helpers.MaxBodySize)
	if err := r.ParseForm(); err != nil {
		httperrors.Respond(w, r, autherr.SchemaError(err))
		return
	}
	f := r.PostForm
	req := grant.TokenRequest{
		GrantType:    f.Get("grant_type"),
		ClientID:     f.Get("client_id"),
		ClientSecret: f.Get("client_secret"),
		Code:         f.Get("code"),
		CodeVerifier: f.Get("code_verifier"),
		RedirectURI:  f.Get("redirect_uri"),
		RefreshToken: f.Get("refresh_token"),
	}
	if id, secret, ok := r.BasicAuth(); ok && req.ClientID == "" {
		req.ClientID, req.ClientSecret = id, secret
	}
	res, err := c.service.Token(r.Context(), req)
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// ProviderAccessToken maneja GET /api/v1/connected-accounts/{provider_id}/access-token?scope=
func (c *Controller) ProviderAccessToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token, err := c.service.ProviderAccessToken(ctx, middlewares.GetProject(ctx), middlewares.GetUser(ctx).ID,
		chi.URLParam(r, "provider_id"), r.URL.Query().Get("scope"))
	if err != nil {
		httperrors.Respond(w, r, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ProviderAccessTokenResponse{AccessToken: token})
}
