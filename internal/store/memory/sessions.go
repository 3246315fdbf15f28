package memory

import (
	"context"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type refreshRepo struct{ s *Store }

func (r refreshRepo) Create(ctx context.Context, t *repository.RefreshToken) error {
	defer r.s.lock(ctx)()
	k := key(t.TenantID, t.TokenHash)
	if _, ok := r.s.t.refresh[k]; ok {
		return repository.ErrConflict
	}
	r.s.t.refresh[k] = *t
	return nil
}

func (r refreshRepo) GetByHash(ctx context.Context, tenantID, hash string) (*repository.RefreshToken, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.t.refresh[key(tenantID, hash)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r refreshRepo) DeleteByHash(ctx context.Context, tenantID, hash string) error {
	defer r.s.lock(ctx)()
	k := key(tenantID, hash)
	if _, ok := r.s.t.refresh[k]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.t.refresh, k)
	return nil
}

func (r refreshRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for k, t := range r.s.t.refresh {
		if t.ExpiresAt != nil && t.ExpiresAt.Before(before) {
			delete(r.s.t.refresh, k)
			n++
		}
	}
	return n, nil
}

type authCodeRepo struct{ s *Store }

func (r authCodeRepo) Create(ctx context.Context, c *repository.AuthorizationCode) error {
	defer r.s.lock(ctx)()
	k := key(c.TenantID, c.CodeHash)
	if _, ok := r.s.t.authCodes[k]; ok {
		return repository.ErrConflict
	}
	r.s.t.authCodes[k] = *c
	return nil
}

func (r authCodeRepo) Take(ctx context.Context, tenantID, hash string) (*repository.AuthorizationCode, error) {
	defer r.s.lock(ctx)()
	k := key(tenantID, hash)
	c, ok := r.s.t.authCodes[k]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.s.t.authCodes, k)
	return &c, nil
}

func (r authCodeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for k, c := range r.s.t.authCodes {
		if c.ExpiresAt.Before(before) {
			delete(r.s.t.authCodes, k)
			n++
		}
	}
	return n, nil
}
