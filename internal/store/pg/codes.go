package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type codeRepo struct{ s *Store }

const codeColumns = `id, tenant_id, type, code_hash, method, data, redirect_url, created_at, expires_at, used_at`

func scanCode(row pgx.Row) (*repository.VerificationCode, error) {
	var c repository.VerificationCode
	var redirect *string
	if err := row.Scan(&c.ID, &c.TenantID, &c.Type, &c.CodeHash, &c.Method, &c.Data,
		&redirect, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt); err != nil {
		return nil, mapErr(err)
	}
	c.RedirectURL = deref(redirect)
	return &c, nil
}

func jsonOrEmpty(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}

func (r codeRepo) Create(ctx context.Context, c *repository.VerificationCode) error {
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO verification_code (`+codeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)`,
		c.ID, c.TenantID, string(c.Type), c.CodeHash, string(jsonOrEmpty(c.Method)), string(jsonOrEmpty(c.Data)),
		nullIfEmpty(c.RedirectURL), c.CreatedAt, c.ExpiresAt)
	return mapErr(err)
}

func (r codeRepo) GetByCodeHash(ctx context.Context, tenantID string, t repository.VerificationCodeType, hash string) (*repository.VerificationCode, error) {
	return scanCode(r.s.db(ctx).QueryRow(ctx, `
		SELECT `+codeColumns+` FROM verification_code
		WHERE tenant_id = $1 AND type = $2 AND code_hash = $3`,
		tenantID, string(t), hash))
}

// ConsumeIfValid es el compare-and-swap: una sola fila pasa el predicado por código.
func (r codeRepo) ConsumeIfValid(ctx context.Context, tenantID string, t repository.VerificationCodeType, hash string, now time.Time) (*repository.VerificationCode, error) {
	return scanCode(r.s.db(ctx).QueryRow(ctx, `
		UPDATE verification_code SET used_at = $4
		WHERE tenant_id = $1 AND type = $2 AND code_hash = $3
		  AND used_at IS NULL AND expires_at > $4
		RETURNING `+codeColumns,
		tenantID, string(t), hash, now))
}

func (r codeRepo) MarkUsed(ctx context.Context, tenantID string, t repository.VerificationCodeType, id string, now time.Time) error {
	return affected(r.s.db(ctx).Exec(ctx, `
		UPDATE verification_code SET used_at = $4
		WHERE tenant_id = $1 AND type = $2 AND id = $3 AND used_at IS NULL`,
		tenantID, string(t), id, now))
}

func (r codeRepo) ListActive(ctx context.Context, tenantID string, t repository.VerificationCodeType, now time.Time) ([]*repository.VerificationCode, error) {
	rows, err := r.s.db(ctx).Query(ctx, `
		SELECT `+codeColumns+` FROM verification_code
		WHERE tenant_id = $1 AND type = $2 AND used_at IS NULL AND expires_at > $3
		ORDER BY created_at, id`,
		tenantID, string(t), now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*repository.VerificationCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r codeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.s.db(ctx).Exec(ctx, `DELETE FROM verification_code WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
