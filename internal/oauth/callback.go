package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/oauth/grant"
	"github.com/dropDatabas3/authcore/internal/oauth/upstream"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/redirect"
	"github.com/dropDatabas3/authcore/internal/validation"
)

// CallbackRequest es lo que llegó al callback: query y body ya mergeados en Params.
type CallbackRequest struct {
	ProviderID  string
	State       string
	Params      url.Values
	CookieValue string
}

// CallbackResult siempre es una redirección: al cliente con el authorization code, o a
// la error_redirect_url con el error.
type CallbackResult struct {
	RedirectURL string
	UserID      string
	NewUser     bool
}

// Callback completa el flujo interno y emite el authorization code del flujo externo.
func (s *Service) Callback(ctx context.Context, req CallbackRequest) (*CallbackResult, error) {
	log := s.log(ctx, "Callback").With(logger.Provider(req.ProviderID))

	// sin cookie no se toca el store
	if req.State == "" || req.CookieValue != cookieSentinel {
		return nil, autherr.ErrOAuthCookieNotFound
	}
	st, err := s.deps.Store.OAuthStates().Take(ctx, req.State)
	if repository.IsNotFound(err) {
		return nil, autherr.ErrInvalidOAuthState
	}
	if err != nil {
		return nil, err
	}
	project, err := s.deps.Store.Projects().GetByID(ctx, st.TenantID)
	if err != nil {
		// el proyecto existía en authorize: esto es un invariante roto, no un error del cliente
		log.Error("project of outer state not found", logger.TenantID(st.TenantID), logger.Err(err))
		return nil, autherr.ErrInternal.WithCause(fmt.Errorf("outer state project %s: %w", st.TenantID, err))
	}

	res, err := s.callback(ctx, project, st, req)
	if err != nil {
		if target, ok := s.errorRedirect(err, project, st.ErrorRedirectURL); ok {
			log.Info("oauth callback failed, redirecting", logger.TenantID(project.ID), logger.ErrorCode(string(autherr.CodeOf(err))))
			return &CallbackResult{RedirectURL: target}, nil
		}
		return nil, err
	}
	log.Info("oauth callback completed", logger.TenantID(project.ID), logger.UserID(res.UserID), logger.Bool("new_user", res.NewUser))
	return res, nil
}

func (s *Service) callback(ctx context.Context, project *repository.Project, st *repository.OAuthOuterState, req CallbackRequest) (*CallbackResult, error) {
	if !st.ExpiresAt.After(s.deps.Now()) {
		return nil, autherr.ErrOuterOAuthTimeout
	}
	cfg, ok := project.Provider(req.ProviderID)
	if !ok || !cfg.Enabled {
		return nil, autherr.ErrOAuthProviderNotFoundOrNotEnabled
	}
	provider, err := s.deps.Providers.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	up, err := provider.Callback(ctx, upstream.CallbackInput{
		CodeVerifier: st.InnerCodeVerifier,
		State:        st.InnerState,
		Params:       req.Params,
	})
	if err != nil {
		return nil, err
	}

	accounts := s.deps.Store.OAuthAccounts()
	if st.FlowType == repository.FlowLink {
		if st.LinkUserID == "" {
			return nil, autherr.ErrInternal.WithCause(fmt.Errorf("link flow without user in outer state"))
		}
		existing, err := accounts.GetByUser(ctx, project.ID, st.LinkUserID, cfg.ID)
		if err != nil && !repository.IsNotFound(err) {
			return nil, err
		}
		if existing != nil && existing.ProviderAccountID != up.UserInfo.AccountID {
			return nil, autherr.ErrUserAlreadyConnectedToAnotherOAuthConnection
		}
	}

	oauthReq := grant.AuthorizeRequest{
		ClientID:            st.ClientID,
		ClientSecret:        st.ClientSecret,
		RedirectURI:         st.RedirectURI,
		Scope:               st.Scope,
		State:               st.CallerState,
		CodeChallenge:       st.CodeChallenge,
		CodeChallengeMethod: st.CodeChallengeMethod,
		GrantType:           st.GrantType,
		ResponseType:        st.ResponseType,
	}
	scopes := strings.Fields(upstream.MergeScopes(provider.Scope(), st.ProviderScope))
	authenticate := func(ctx context.Context, project *repository.Project) (*grant.AuthenticatedUser, error) {
		return s.authenticate(ctx, project, st, cfg.ID, up, scopes)
	}

	var out *grant.AuthorizeResult
	err = s.deps.Store.WithTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.deps.Grant.Authorize(ctx, oauthReq, authenticate)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &CallbackResult{RedirectURL: out.RedirectURL, UserID: out.UserID, NewUser: out.NewUser}, nil
}

// authenticate resuelve el usuario local: vincula, inicia sesión o registra.
func (s *Service) authenticate(ctx context.Context, project *repository.Project, st *repository.OAuthOuterState, providerID string, up *upstream.CallbackResult, scopes []string) (*grant.AuthenticatedUser, error) {
	accounts := s.deps.Store.OAuthAccounts()
	info := up.UserInfo
	old, err := accounts.Get(ctx, project.ID, providerID, info.AccountID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}

	if st.FlowType == repository.FlowLink {
		if old != nil && old.UserID != st.LinkUserID {
			return nil, autherr.ErrOAuthConnectionAlreadyConnectedToAnotherUser
		}
		if old == nil {
			if err := accounts.Create(ctx, &repository.OAuthAccount{
				TenantID:          project.ID,
				ProviderID:        providerID,
				ProviderAccountID: info.AccountID,
				UserID:            st.LinkUserID,
				Email:             validation.NormalizeEmail(info.Email),
				CreatedAt:         s.deps.Now(),
			}); err != nil {
				if repository.IsConflict(err) {
					return nil, autherr.ErrOAuthConnectionAlreadyConnectedToAnotherUser
				}
				return nil, err
			}
		}
		if err := s.storeTokens(ctx, project.ID, providerID, info.AccountID, up.Tokens, scopes); err != nil {
			return nil, err
		}
		return &grant.AuthenticatedUser{ID: st.LinkUserID, AfterCallbackRedirectURL: st.AfterCallbackRedirectURL}, nil
	}

	if old != nil {
		if err := s.storeTokens(ctx, project.ID, providerID, info.AccountID, up.Tokens, scopes); err != nil {
			return nil, err
		}
		return &grant.AuthenticatedUser{ID: old.UserID, AfterCallbackRedirectURL: st.AfterCallbackRedirectURL}, nil
	}

	if !project.Config.SignUpEnabled {
		return nil, autherr.ErrSignUpNotEnabled
	}
	now := s.deps.Now()
	// el email de un proveedor no habilita login por email
	user := &repository.User{
		ID:                      uuid.NewString(),
		TenantID:                project.ID,
		PrimaryEmail:            validation.NormalizeEmail(info.Email),
		PrimaryEmailVerified:    info.EmailVerified,
		PrimaryEmailAuthEnabled: false,
		DisplayName:             info.DisplayName,
		ProfileImageURL:         info.ProfileImageURL,
		CreatedAt:               now,
	}
	if err := s.deps.Store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	if err := accounts.Create(ctx, &repository.OAuthAccount{
		TenantID:          project.ID,
		ProviderID:        providerID,
		ProviderAccountID: info.AccountID,
		UserID:            user.ID,
		Email:             user.PrimaryEmail,
		CreatedAt:         now,
	}); err != nil {
		return nil, err
	}
	if err := s.storeTokens(ctx, project.ID, providerID, info.AccountID, up.Tokens, scopes); err != nil {
		return nil, err
	}
	return &grant.AuthenticatedUser{ID: user.ID, NewUser: true, AfterCallbackRedirectURL: st.AfterCallbackRedirectURL}, nil
}

// storeTokens guarda sellados el refresh token (si vino) y el access token del proveedor.
func (s *Service) storeTokens(ctx context.Context, tenantID, providerID, accountID string, ts upstream.TokenSet, scopes []string) error {
	repo := s.deps.Store.ProviderTokens()
	now := s.deps.Now()
	if ts.RefreshToken != "" {
		sealed, err := s.deps.Box.Seal(ts.RefreshToken)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, &repository.ProviderToken{
			ID:                uuid.NewString(),
			TenantID:          tenantID,
			ProviderID:        providerID,
			ProviderAccountID: accountID,
			Kind:              repository.ProviderRefreshToken,
			Token:             sealed,
			Scopes:            scopes,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
	}
	sealed, err := s.deps.Box.Seal(ts.AccessToken)
	if err != nil {
		return err
	}
	exp := ts.AccessTokenExpiresAt
	return repo.Create(ctx, &repository.ProviderToken{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		ProviderID:        providerID,
		ProviderAccountID: accountID,
		Kind:              repository.ProviderAccessToken,
		Token:             sealed,
		Scopes:            scopes,
		ExpiresAt:         &exp,
		CreatedAt:         now,
	})
}

// errorRedirect arma la URL de error si el error es conocido y la URL está permitida.
func (s *Service) errorRedirect(err error, project *repository.Project, errorRedirectURL string) (string, bool) {
	ae, ok := autherr.As(err)
	if !ok || ae.Code == autherr.CodeInternal || errorRedirectURL == "" {
		return "", false
	}
	if !redirect.IsAllowed(errorRedirectURL, project.Config.Domains, project.Config.AllowLocalhost) {
		return "", false
	}
	u, perr := url.Parse(errorRedirectURL)
	if perr != nil {
		return "", false
	}
	details := ae.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, jerr := json.Marshal(details)
	if jerr != nil {
		raw = []byte("{}")
	}
	q := u.Query()
	q.Set("errorCode", string(ae.Code))
	q.Set("message", ae.Message)
	q.Set("details", string(raw))
	u.RawQuery = q.Encode()
	return u.String(), true
}
