package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type projectRepo struct{ s *Store }

func (r projectRepo) GetByID(ctx context.Context, id string) (*repository.Project, error) {
	var p repository.Project
	var cfg []byte
	err := r.s.db(ctx).QueryRow(ctx,
		`SELECT id, display_name, config FROM project WHERE id = $1`, id).Scan(&p.ID, &p.DisplayName, &cfg)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := json.Unmarshal(cfg, &p.Config); err != nil {
		return nil, fmt.Errorf("pg: decode project config %s: %w", id, err)
	}
	return &p, nil
}

func (r projectRepo) Upsert(ctx context.Context, p *repository.Project) error {
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return err
	}
	_, err = r.s.db(ctx).Exec(ctx, `
		INSERT INTO project (id, display_name, config) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name,
			config = EXCLUDED.config, updated_at = NOW()`,
		p.ID, p.DisplayName, string(cfg))
	return mapErr(err)
}

type userRepo struct{ s *Store }

const userColumns = `tenant_id, id, primary_email, primary_email_verified, primary_email_auth_enabled,
	display_name, profile_image_url, password_hash, requires_totp_mfa, totp_secret, created_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	var email, pwd, totp *string
	if err := row.Scan(&u.TenantID, &u.ID, &email, &u.PrimaryEmailVerified, &u.PrimaryEmailAuthEnabled,
		&u.DisplayName, &u.ProfileImageURL, &pwd, &u.RequiresTOTPMFA, &totp, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	u.PrimaryEmail, u.PasswordHash, u.TOTPSecret = deref(email), deref(pwd), deref(totp)
	return &u, nil
}

func (r userRepo) Create(ctx context.Context, u *repository.User) error {
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO app_user (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.TenantID, u.ID, nullIfEmpty(u.PrimaryEmail), u.PrimaryEmailVerified, u.PrimaryEmailAuthEnabled,
		u.DisplayName, u.ProfileImageURL, nullIfEmpty(u.PasswordHash), u.RequiresTOTPMFA, nullIfEmpty(u.TOTPSecret), u.CreatedAt)
	return mapErr(err)
}

func (r userRepo) GetByID(ctx context.Context, tenantID, id string) (*repository.User, error) {
	return scanUser(r.s.db(ctx).QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r userRepo) GetByAuthEmail(ctx context.Context, tenantID, email string) (*repository.User, error) {
	return scanUser(r.s.db(ctx).QueryRow(ctx, `
		SELECT `+userColumns+` FROM app_user
		WHERE tenant_id = $1 AND primary_email_auth_enabled AND lower(primary_email) = lower($2)`,
		tenantID, email))
}

func (r userRepo) UpdatePassword(ctx context.Context, tenantID, id, hash string) error {
	return affected(r.s.db(ctx).Exec(ctx,
		`UPDATE app_user SET password_hash = $3 WHERE tenant_id = $1 AND id = $2`, tenantID, id, hash))
}

func (r userRepo) MarkEmailVerified(ctx context.Context, tenantID, id, email string) error {
	return affected(r.s.db(ctx).Exec(ctx, `
		UPDATE app_user SET primary_email_verified = TRUE
		WHERE tenant_id = $1 AND id = $2 AND lower(primary_email) = lower($3)`, tenantID, id, email))
}

func (r userRepo) SetTOTP(ctx context.Context, tenantID, id, sealed string, requiresMFA bool) error {
	return affected(r.s.db(ctx).Exec(ctx, `
		UPDATE app_user SET totp_secret = $3, requires_totp_mfa = $4
		WHERE tenant_id = $1 AND id = $2`, tenantID, id, nullIfEmpty(sealed), requiresMFA))
}

type teamRepo struct{ s *Store }

func (r teamRepo) Create(ctx context.Context, t *repository.Team) error {
	_, err := r.s.db(ctx).Exec(ctx,
		`INSERT INTO team (tenant_id, id, display_name) VALUES ($1, $2, $3)`, t.TenantID, t.ID, t.DisplayName)
	return mapErr(err)
}

func (r teamRepo) GetByID(ctx context.Context, tenantID, id string) (*repository.Team, error) {
	var t repository.Team
	err := r.s.db(ctx).QueryRow(ctx,
		`SELECT tenant_id, id, display_name FROM team WHERE tenant_id = $1 AND id = $2`, tenantID, id).
		Scan(&t.TenantID, &t.ID, &t.DisplayName)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r teamRepo) AddMember(ctx context.Context, tenantID, teamID, userID string) error {
	_, err := r.s.db(ctx).Exec(ctx,
		`INSERT INTO team_member (tenant_id, team_id, user_id) VALUES ($1, $2, $3)`, tenantID, teamID, userID)
	return mapErr(err)
}

func (r teamRepo) IsMember(ctx context.Context, tenantID, teamID, userID string) (bool, error) {
	var ok bool
	err := r.s.db(ctx).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM team_member WHERE tenant_id = $1 AND team_id = $2 AND user_id = $3)`,
		tenantID, teamID, userID).Scan(&ok)
	return ok, err
}

type passkeyRepo struct{ s *Store }

func (r passkeyRepo) GetByCredentialID(ctx context.Context, tenantID, credentialID string) (*repository.PasskeyCredential, error) {
	var c repository.PasskeyCredential
	var counter int64
	err := r.s.db(ctx).QueryRow(ctx, `
		SELECT tenant_id, credential_id, user_id, user_handle, public_key, counter, backup_eligible, created_at
		FROM passkey_credential WHERE tenant_id = $1 AND credential_id = $2`, tenantID, credentialID).
		Scan(&c.TenantID, &c.CredentialID, &c.UserID, &c.UserHandle, &c.PublicKey, &counter, &c.BackupEligible, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	c.Counter = uint32(counter)
	return &c, nil
}

func (r passkeyRepo) Upsert(ctx context.Context, c *repository.PasskeyCredential) error {
	_, err := r.s.db(ctx).Exec(ctx, `
		INSERT INTO passkey_credential (tenant_id, credential_id, user_id, user_handle, public_key, counter, backup_eligible, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, user_id) DO UPDATE SET credential_id = EXCLUDED.credential_id,
			user_handle = EXCLUDED.user_handle, public_key = EXCLUDED.public_key,
			counter = EXCLUDED.counter, backup_eligible = EXCLUDED.backup_eligible,
			created_at = EXCLUDED.created_at`,
		c.TenantID, c.CredentialID, c.UserID, c.UserHandle, c.PublicKey, int64(c.Counter), c.BackupEligible, c.CreatedAt)
	return mapErr(err)
}

func (r passkeyRepo) UpdateCounter(ctx context.Context, tenantID, credentialID string, counter uint32) error {
	return affected(r.s.db(ctx).Exec(ctx, `
		UPDATE passkey_credential SET counter = $3 WHERE tenant_id = $1 AND credential_id = $2`,
		tenantID, credentialID, int64(counter)))
}
