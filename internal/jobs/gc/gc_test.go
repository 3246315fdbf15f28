package gc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/store/memory"
)

type counting map[string]int64

func (c counting) RowsDeleted(table string, n int64) { c[table] += n }

type failing struct{}

func (failing) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, exp := range []time.Time{now.Add(-2 * time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		require.NoError(t, s.VerificationCodes().Create(ctx, &repository.VerificationCode{
			ID:        string(rune('a' + i)),
			TenantID:  "p1",
			Type:      repository.CodeTypeOneTimePassword,
			CodeHash:  string(rune('a' + i)),
			CreatedAt: now.Add(-3 * time.Hour),
			ExpiresAt: exp,
		}))
	}
	require.NoError(t, s.OAuthStates().Create(ctx, &repository.OAuthOuterState{
		InnerState: "inner", TenantID: "p1", ExpiresAt: now.Add(-time.Second),
	}))

	obs := counting{}
	sw := &Sweeper{Targets: Targets(s, nil), Observer: obs, Now: func() time.Time { return now }}
	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, int64(2), obs["verification_codes"])
	assert.Equal(t, int64(1), obs["oauth_outer_states"])

	_, err = s.OAuthStates().Take(ctx, "inner")
	assert.True(t, repository.IsNotFound(err))
}

func TestSweep_GraceKeepsRecentRows(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.VerificationCodes().Create(ctx, &repository.VerificationCode{
		ID: "a", TenantID: "p1", Type: repository.CodeTypeOneTimePassword, CodeHash: "a",
		CreatedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-time.Minute),
	}))

	sw := &Sweeper{Targets: Targets(s, nil), Grace: time.Hour, Now: func() time.Time { return now }}
	n, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweep_OneTableFails(t *testing.T) {
	s := memory.New()
	sw := &Sweeper{Targets: append(Targets(s, nil), Target{Table: "broken", Repo: failing{}})}
	_, err := sw.Sweep(context.Background())
	assert.EqualError(t, err, "db down")
}
