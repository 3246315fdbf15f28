package memory

import (
	"context"
	"strings"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type projectRepo struct{ s *Store }

func (r projectRepo) GetByID(ctx context.Context, id string) (*repository.Project, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.t.projects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r projectRepo) Upsert(ctx context.Context, p *repository.Project) error {
	defer r.s.lock(ctx)()
	r.s.t.projects[p.ID] = *p
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, u *repository.User) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.t.users[key(u.TenantID, u.ID)]; ok {
		return repository.ErrConflict
	}
	if u.PrimaryEmailAuthEnabled && u.PrimaryEmail != "" {
		if _, found := r.byAuthEmail(u.TenantID, u.PrimaryEmail); found {
			return repository.ErrConflict
		}
	}
	r.s.t.users[key(u.TenantID, u.ID)] = *u
	return nil
}

func (r userRepo) byAuthEmail(tenantID, email string) (repository.User, bool) {
	for _, u := range r.s.t.users {
		if u.TenantID == tenantID && u.PrimaryEmailAuthEnabled && strings.EqualFold(u.PrimaryEmail, email) {
			return u, true
		}
	}
	return repository.User{}, false
}

func (r userRepo) GetByID(ctx context.Context, tenantID, id string) (*repository.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.t.users[key(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByAuthEmail(ctx context.Context, tenantID, email string) (*repository.User, error) {
	defer r.s.lock(ctx)()
	u, ok := r.byAuthEmail(tenantID, email)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) update(ctx context.Context, tenantID, id string, fn func(u *repository.User) bool) error {
	defer r.s.lock(ctx)()
	k := key(tenantID, id)
	u, ok := r.s.t.users[k]
	if !ok || !fn(&u) {
		return repository.ErrNotFound
	}
	r.s.t.users[k] = u
	return nil
}

func (r userRepo) UpdatePassword(ctx context.Context, tenantID, id, hash string) error {
	return r.update(ctx, tenantID, id, func(u *repository.User) bool {
		u.PasswordHash = hash
		return true
	})
}

func (r userRepo) MarkEmailVerified(ctx context.Context, tenantID, id, email string) error {
	return r.update(ctx, tenantID, id, func(u *repository.User) bool {
		if !strings.EqualFold(u.PrimaryEmail, email) {
			return false
		}
		u.PrimaryEmailVerified = true
		return true
	})
}

func (r userRepo) SetTOTP(ctx context.Context, tenantID, id, sealed string, requiresMFA bool) error {
	return r.update(ctx, tenantID, id, func(u *repository.User) bool {
		u.TOTPSecret = sealed
		u.RequiresTOTPMFA = requiresMFA
		return true
	})
}

type teamRepo struct{ s *Store }

func (r teamRepo) Create(ctx context.Context, t *repository.Team) error {
	defer r.s.lock(ctx)()
	k := key(t.TenantID, t.ID)
	if _, ok := r.s.t.teams[k]; ok {
		return repository.ErrConflict
	}
	r.s.t.teams[k] = *t
	return nil
}

func (r teamRepo) GetByID(ctx context.Context, tenantID, id string) (*repository.Team, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.t.teams[key(tenantID, id)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r teamRepo) AddMember(ctx context.Context, tenantID, teamID, userID string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.t.teams[key(tenantID, teamID)]; !ok {
		return repository.ErrNotFound
	}
	k := key(tenantID, teamID, userID)
	if _, ok := r.s.t.members[k]; ok {
		return repository.ErrConflict
	}
	r.s.t.members[k] = struct{}{}
	return nil
}

func (r teamRepo) IsMember(ctx context.Context, tenantID, teamID, userID string) (bool, error) {
	defer r.s.lock(ctx)()
	_, ok := r.s.t.members[key(tenantID, teamID, userID)]
	return ok, nil
}

type passkeyRepo struct{ s *Store }

func (r passkeyRepo) GetByCredentialID(ctx context.Context, tenantID, credentialID string) (*repository.PasskeyCredential, error) {
	defer r.s.lock(ctx)()
	c, ok := r.s.t.passkeys[key(tenantID, credentialID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r passkeyRepo) Upsert(ctx context.Context, c *repository.PasskeyCredential) error {
	defer r.s.lock(ctx)()
	for k, ex := range r.s.t.passkeys {
		if ex.TenantID == c.TenantID && ex.UserID == c.UserID {
			delete(r.s.t.passkeys, k)
		}
	}
	r.s.t.passkeys[key(c.TenantID, c.CredentialID)] = *c
	return nil
}

func (r passkeyRepo) UpdateCounter(ctx context.Context, tenantID, credentialID string, counter uint32) error {
	defer r.s.lock(ctx)()
	k := key(tenantID, credentialID)
	c, ok := r.s.t.passkeys[k]
	if !ok {
		return repository.ErrNotFound
	}
	c.Counter = counter
	r.s.t.passkeys[k] = c
	return nil
}
