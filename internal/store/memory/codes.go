package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type codeRepo struct{ s *Store }

func (r codeRepo) Create(ctx context.Context, c *repository.VerificationCode) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.t.codes[c.ID]; ok {
		return repository.ErrConflict
	}
	for _, ex := range r.s.t.codes {
		if ex.TenantID == c.TenantID && ex.CodeHash == c.CodeHash {
			return repository.ErrConflict
		}
	}
	r.s.t.codes[c.ID] = *c
	return nil
}

// find devuelve el id de la fila (tenant, type, hash), o "" si no existe.
func (r codeRepo) find(tenantID string, t repository.VerificationCodeType, hash string) string {
	for id, c := range r.s.t.codes {
		if c.TenantID == tenantID && c.Type == t && c.CodeHash == hash {
			return id
		}
	}
	return ""
}

func (r codeRepo) GetByCodeHash(ctx context.Context, tenantID string, t repository.VerificationCodeType, hash string) (*repository.VerificationCode, error) {
	defer r.s.lock(ctx)()
	id := r.find(tenantID, t, hash)
	if id == "" {
		return nil, repository.ErrNotFound
	}
	c := r.s.t.codes[id]
	return &c, nil
}

func (r codeRepo) ConsumeIfValid(ctx context.Context, tenantID string, t repository.VerificationCodeType, hash string, now time.Time) (*repository.VerificationCode, error) {
	defer r.s.lock(ctx)()
	id := r.find(tenantID, t, hash)
	if id == "" {
		return nil, repository.ErrNotFound
	}
	c := r.s.t.codes[id]
	if c.Used() || c.Expired(now) {
		return nil, repository.ErrNotFound
	}
	used := now
	c.UsedAt = &used
	r.s.t.codes[id] = c
	return &c, nil
}

func (r codeRepo) MarkUsed(ctx context.Context, tenantID string, t repository.VerificationCodeType, id string, now time.Time) error {
	defer r.s.lock(ctx)()
	c, ok := r.s.t.codes[id]
	if !ok || c.TenantID != tenantID || c.Type != t || c.Used() {
		return repository.ErrNotFound
	}
	used := now
	c.UsedAt = &used
	r.s.t.codes[id] = c
	return nil
}

func (r codeRepo) ListActive(ctx context.Context, tenantID string, t repository.VerificationCodeType, now time.Time) ([]*repository.VerificationCode, error) {
	defer r.s.lock(ctx)()
	var out []*repository.VerificationCode
	for _, c := range r.s.t.codes {
		if c.TenantID != tenantID || c.Type != t || c.Used() || c.Expired(now) {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return strings.Compare(out[i].ID, out[j].ID) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r codeRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id, c := range r.s.t.codes {
		if c.ExpiresAt.Before(before) {
			delete(r.s.t.codes, id)
			n++
		}
	}
	return n, nil
}
