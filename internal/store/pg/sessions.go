package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type refreshRepo struct{ s *Store }

func (r refreshRepo) Create(ctx context.Context, t *repository.RefreshToken) error {
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO refresh_token (tenant_id, id, user_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.TenantID, t.ID, t.UserID, t.TokenHash, t.CreatedAt, t.ExpiresAt)
	return mapErr(err)
}

func (r refreshRepo) GetByHash(ctx context.Context, tenantID, hash string) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := r.s.db(ctx).QueryRow(ctx, `
		SELECT tenant_id, id, user_id, token_hash, created_at, expires_at
		FROM refresh_token WHERE tenant_id = $1 AND token_hash = $2`,
		tenantID, hash).Scan(&t.TenantID, &t.ID, &t.UserID, &t.TokenHash, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r refreshRepo) DeleteByHash(ctx context.Context, tenantID, hash string) error {
	return affected(r.s.db(ctx).Exec(ctx,
		`DELETE FROM refresh_token WHERE tenant_id = $1 AND token_hash = $2`, tenantID, hash))
}

func (r refreshRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.s.db(ctx).Exec(ctx,
		`DELETE FROM refresh_token WHERE expires_at IS NOT NULL AND expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type authCodeRepo struct{ s *Store }

func (r authCodeRepo) Create(ctx context.Context, c *repository.AuthorizationCode) error {
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO authorization_code (tenant_id, code_hash, client_id, user_id, redirect_uri, scope,
			code_challenge, code_challenge_method, new_user, after_callback_redirect_url, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.TenantID, c.CodeHash, c.ClientID, c.UserID, c.RedirectURI, c.Scope,
		c.CodeChallenge, c.CodeChallengeMethod, c.NewUser, c.AfterCallbackRedirectURL, c.CreatedAt, c.ExpiresAt)
	return mapErr(err)
}

// Take es DELETE ... RETURNING: dos canjes concurrentes no pueden ver la misma fila.
func (r authCodeRepo) Take(ctx context.Context, tenantID, hash string) (*repository.AuthorizationCode, error) {
	var c repository.AuthorizationCode
	err := r.s.db(ctx).QueryRow(ctx, `
		DELETE FROM authorization_code WHERE tenant_id = $1 AND code_hash = $2
		RETURNING tenant_id, code_hash, client_id, user_id, redirect_uri, scope,
			code_challenge, code_challenge_method, new_user, after_callback_redirect_url, created_at, expires_at`,
		tenantID, hash).Scan(&c.TenantID, &c.CodeHash, &c.ClientID, &c.UserID, &c.RedirectURI, &c.Scope,
		&c.CodeChallenge, &c.CodeChallengeMethod, &c.NewUser, &c.AfterCallbackRedirectURL, &c.CreatedAt, &c.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (r authCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.s.db(ctx).Exec(ctx, `DELETE FROM authorization_code WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
