package memory

import (
	"context"
	"sort"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type stateRepo struct{ s *Store }

func (r stateRepo) Create(ctx context.Context, st *repository.OAuthOuterState) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.t.states[st.InnerState]; ok {
		return repository.ErrConflict
	}
	r.s.t.states[st.InnerState] = *st
	return nil
}

func (r stateRepo) Take(ctx context.Context, innerState string) (*repository.OAuthOuterState, error) {
	defer r.s.lock(ctx)()
	st, ok := r.s.t.states[innerState]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(r.s.t.states, innerState)
	return &st, nil
}

func (r stateRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for k, st := range r.s.t.states {
		if st.ExpiresAt.Before(before) {
			delete(r.s.t.states, k)
			n++
		}
	}
	return n, nil
}

type accountRepo struct{ s *Store }

func (r accountRepo) Get(ctx context.Context, tenantID, providerID, accountID string) (*repository.OAuthAccount, error) {
	defer r.s.lock(ctx)()
	a, ok := r.s.t.accounts[key(tenantID, providerID, accountID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (r accountRepo) GetByUser(ctx context.Context, tenantID, userID, providerID string) (*repository.OAuthAccount, error) {
	defer r.s.lock(ctx)()
	for _, a := range r.s.t.accounts {
		if a.TenantID == tenantID && a.UserID == userID && a.ProviderID == providerID {
			return &a, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r accountRepo) Create(ctx context.Context, a *repository.OAuthAccount) error {
	defer r.s.lock(ctx)()
	k := key(a.TenantID, a.ProviderID, a.ProviderAccountID)
	if _, ok := r.s.t.accounts[k]; ok {
		return repository.ErrConflict
	}
	r.s.t.accounts[k] = *a
	return nil
}

type providerTokenRepo struct{ s *Store }

func (r providerTokenRepo) Create(ctx context.Context, t *repository.ProviderToken) error {
	defer r.s.lock(ctx)()
	r.s.t.ptokens = append(r.s.t.ptokens, *t)
	return nil
}

func (r providerTokenRepo) List(ctx context.Context, tenantID, providerID, accountID string, kind repository.ProviderTokenKind) ([]*repository.ProviderToken, error) {
	defer r.s.lock(ctx)()
	var out []*repository.ProviderToken
	for i := len(r.s.t.ptokens) - 1; i >= 0; i-- {
		t := r.s.t.ptokens[i]
		if t.TenantID == tenantID && t.ProviderID == providerID && t.ProviderAccountID == accountID && t.Kind == kind {
			out = append(out, &t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
