package oauth

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

func coversScopes(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}

// ProviderAccessToken devuelve un access token del proveedor con al menos scope para la
// cuenta conectada del usuario. Usa uno guardado vigente o refresca con un refresh token.
func (s *Service) ProviderAccessToken(ctx context.Context, project *repository.Project, userID, providerID, scope string) (string, error) {
	log := s.log(ctx, "ProviderAccessToken").With(logger.TenantID(project.ID), logger.UserID(userID), logger.Provider(providerID))

	cfg, ok := project.Provider(providerID)
	if !ok || !cfg.Enabled {
		return "", autherr.ErrOAuthProviderNotFoundOrNotEnabled
	}
	acct, err := s.deps.Store.OAuthAccounts().GetByUser(ctx, project.ID, userID, providerID)
	if repository.IsNotFound(err) {
		return "", autherr.ErrOAuthConnectionNotConnectedToUser
	}
	if err != nil {
		return "", err
	}
	want := strings.Fields(scope)
	repo := s.deps.Store.ProviderTokens()
	now := s.deps.Now()

	access, err := repo.List(ctx, project.ID, providerID, acct.ProviderAccountID, repository.ProviderAccessToken)
	if err != nil {
		return "", err
	}
	for _, t := range access {
		if t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			continue
		}
		if !coversScopes(t.Scopes, want) {
			continue
		}
		plain, err := s.deps.Box.Open(t.Token)
		if err != nil {
			log.Warn("skipping unreadable provider token", logger.Err(err))
			continue
		}
		return plain, nil
	}

	refresh, err := repo.List(ctx, project.ID, providerID, acct.ProviderAccountID, repository.ProviderRefreshToken)
	if err != nil {
		return "", err
	}
	var rt *repository.ProviderToken
	for _, t := range refresh {
		if coversScopes(t.Scopes, want) {
			rt = t
			break
		}
	}
	if rt == nil {
		return "", autherr.ErrOAuthConnectionDoesNotHaveRequiredScope
	}
	plainRT, err := s.deps.Box.Open(rt.Token)
	if err != nil {
		return "", autherr.ErrInternal.WithCause(err)
	}

	provider, err := s.deps.Providers.Get(ctx, cfg)
	if err != nil {
		return "", err
	}
	ts, err := provider.Refresh(ctx, plainRT, scope)
	if err != nil {
		log.Warn("provider refresh failed", logger.Err(err))
		return "", err
	}

	// si el proveedor rotó el refresh token se guarda el nuevo; List devuelve el más nuevo primero
	if ts.RefreshToken != "" && ts.RefreshToken != plainRT {
		sealed, err := s.deps.Box.Seal(ts.RefreshToken)
		if err != nil {
			return "", err
		}
		if err := repo.Create(ctx, &repository.ProviderToken{
			ID:                uuid.NewString(),
			TenantID:          project.ID,
			ProviderID:        providerID,
			ProviderAccountID: acct.ProviderAccountID,
			Kind:              repository.ProviderRefreshToken,
			Token:             sealed,
			Scopes:            rt.Scopes,
			CreatedAt:         now,
		}); err != nil {
			return "", err
		}
	}
	sealed, err := s.deps.Box.Seal(ts.AccessToken)
	if err != nil {
		return "", err
	}
	exp := ts.AccessTokenExpiresAt
	if err := repo.Create(ctx, &repository.ProviderToken{
		ID:                uuid.NewString(),
		TenantID:          project.ID,
		ProviderID:        providerID,
		ProviderAccountID: acct.ProviderAccountID,
		Kind:              repository.ProviderAccessToken,
		Token:             sealed,
		Scopes:            rt.Scopes,
		ExpiresAt:         &exp,
		CreatedAt:         now,
	}); err != nil {
		return "", err
	}
	return ts.AccessToken, nil
}
