package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type stateRepo struct{ s *Store }

func (r stateRepo) Create(ctx context.Context, st *repository.OAuthOuterState) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("pg: encode outer state: %w", err)
	}
	_, err = r.s.db(ctx).Exec(ctx, `
		INSERT INTO oauth_outer_state (inner_state, tenant_id, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		st.InnerState, st.TenantID, string(payload), st.CreatedAt, st.ExpiresAt)
	return mapErr(err)
}

func (r stateRepo) Take(ctx context.Context, innerState string) (*repository.OAuthOuterState, error) {
	var payload []byte
	err := r.s.db(ctx).QueryRow(ctx,
		`DELETE FROM oauth_outer_state WHERE inner_state = $1 RETURNING payload`, innerState).Scan(&payload)
	if err != nil {
		return nil, mapErr(err)
	}
	var st repository.OAuthOuterState
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("pg: decode outer state: %w", err)
	}
	return &st, nil
}

func (r stateRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.s.db(ctx).Exec(ctx, `DELETE FROM oauth_outer_state WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type accountRepo struct{ s *Store }

const accountColumns = `tenant_id, provider_id, provider_account_id, user_id, email, created_at`

func scanAccount(row pgx.Row) (*repository.OAuthAccount, error) {
	var a repository.OAuthAccount
	var email *string
	if err := row.Scan(&a.TenantID, &a.ProviderID, &a.ProviderAccountID, &a.UserID, &email, &a.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	a.Email = deref(email)
	return &a, nil
}

func (r accountRepo) Get(ctx context.Context, tenantID, providerID, accountID string) (*repository.OAuthAccount, error) {
	return scanAccount(r.s.db(ctx).QueryRow(ctx, `
		SELECT `+accountColumns+` FROM oauth_account
		WHERE tenant_id = $1 AND provider_id = $2 AND provider_account_id = $3`,
		tenantID, providerID, accountID))
}

func (r accountRepo) GetByUser(ctx context.Context, tenantID, userID, providerID string) (*repository.OAuthAccount, error) {
	return scanAccount(r.s.db(ctx).QueryRow(ctx, `
		SELECT `+accountColumns+` FROM oauth_account
		WHERE tenant_id = $1 AND user_id = $2 AND provider_id = $3
		ORDER BY created_at LIMIT 1`,
		tenantID, userID, providerID))
}

func (r accountRepo) Create(ctx context.Context, a *repository.OAuthAccount) error {
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO oauth_account (`+accountColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.TenantID, a.ProviderID, a.ProviderAccountID, a.UserID, nullIfEmpty(a.Email), a.CreatedAt)
	return mapErr(err)
}

type providerTokenRepo struct{ s *Store }

func (r providerTokenRepo) Create(ctx context.Context, t *repository.ProviderToken) error {
	scopes := t.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO provider_token (id, tenant_id, provider_id, provider_account_id, kind, token, scopes, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.TenantID, t.ProviderID, t.ProviderAccountID, string(t.Kind), t.Token, scopes, t.ExpiresAt, t.CreatedAt)
	return mapErr(err)
}

func (r providerTokenRepo) List(ctx context.Context, tenantID, providerID, accountID string, kind repository.ProviderTokenKind) ([]*repository.ProviderToken, error) {
	rows, err := r.s.db(ctx).Query(ctx, `
		SELECT id, tenant_id, provider_id, provider_account_id, kind, token, scopes, expires_at, created_at
		FROM provider_token
		WHERE tenant_id = $1 AND provider_id = $2 AND provider_account_id = $3 AND kind = $4
		ORDER BY created_at DESC`,
		tenantID, providerID, accountID, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.ProviderToken
	for rows.Next() {
		var t repository.ProviderToken
		if err := rows.Scan(&t.ID, &t.TenantID, &t.ProviderID, &t.ProviderAccountID, &t.Kind,
			&t.Token, &t.Scopes, &t.ExpiresAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
