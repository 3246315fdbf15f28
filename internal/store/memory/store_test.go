package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCode(t *testing.T, s *Store, id, hash string, exp time.Time) {
	t.Helper()
	require.NoError(t, s.VerificationCodes().Create(context.Background(), &repository.VerificationCode{
		ID: id, TenantID: "p1", Type: repository.CodeTypeOneTimePassword, CodeHash: hash,
		CreatedAt: exp.Add(-time.Hour), ExpiresAt: exp,
	}))
}

func TestConsumeIfValid_ExactlyOnce(t *testing.T) {
	s := New()
	now := time.Now()
	seedCode(t, s, "c1", "h1", now.Add(time.Hour))

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.VerificationCodes().ConsumeIfValid(context.Background(), "p1", repository.CodeTypeOneTimePassword, "h1", now)
			if err == nil {
				atomic.AddInt32(&ok, 1)
			} else {
				assert.True(t, repository.IsNotFound(err))
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok)
}

func TestConsumeIfValid_RejectsExpiredAndForeignTenant(t *testing.T) {
	s := New()
	now := time.Now()
	seedCode(t, s, "c1", "h1", now)

	_, err := s.VerificationCodes().ConsumeIfValid(context.Background(), "p1", repository.CodeTypeOneTimePassword, "h1", now)
	assert.True(t, repository.IsNotFound(err), "expires_at == now counts as expired")

	seedCode(t, s, "c2", "h2", now.Add(time.Hour))
	_, err = s.VerificationCodes().ConsumeIfValid(context.Background(), "p2", repository.CodeTypeOneTimePassword, "h2", now)
	assert.True(t, repository.IsNotFound(err))
	_, err = s.VerificationCodes().ConsumeIfValid(context.Background(), "p1", repository.CodeTypeTeamInvitation, "h2", now)
	assert.True(t, repository.IsNotFound(err))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	now := time.Now()
	seedCode(t, s, "c1", "h1", now.Add(time.Hour))
	boom := errors.New("boom")

	err := s.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := s.VerificationCodes().ConsumeIfValid(ctx, "p1", repository.CodeTypeOneTimePassword, "h1", now)
		require.NoError(t, err)
		require.NoError(t, s.Users().Create(ctx, &repository.User{ID: "u1", TenantID: "p1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := s.VerificationCodes().GetByCodeHash(context.Background(), "p1", repository.CodeTypeOneTimePassword, "h1")
	require.NoError(t, err)
	assert.Nil(t, c.UsedAt)
	_, err = s.Users().GetByID(context.Background(), "p1", "u1")
	assert.True(t, repository.IsNotFound(err))
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := New()
	now := time.Now()
	seedCode(t, s, "c1", "h1", now.Add(time.Hour))

	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := s.VerificationCodes().ConsumeIfValid(ctx, "p1", repository.CodeTypeOneTimePassword, "h1", now)
		return err
	}))
	c, err := s.VerificationCodes().GetByCodeHash(context.Background(), "p1", repository.CodeTypeOneTimePassword, "h1")
	require.NoError(t, err)
	assert.NotNil(t, c.UsedAt)
}

func TestTakeIsSingleUse(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.OAuthStates().Create(ctx, &repository.OAuthOuterState{InnerState: "in", TenantID: "p1"}))

	st, err := s.OAuthStates().Take(ctx, "in")
	require.NoError(t, err)
	assert.Equal(t, "p1", st.TenantID)
	_, err = s.OAuthStates().Take(ctx, "in")
	assert.True(t, repository.IsNotFound(err))

	require.NoError(t, s.AuthorizationCodes().Create(ctx, &repository.AuthorizationCode{CodeHash: "a", TenantID: "p1"}))
	_, err = s.AuthorizationCodes().Take(ctx, "p2", "a")
	assert.True(t, repository.IsNotFound(err))
	_, err = s.AuthorizationCodes().Take(ctx, "p1", "a")
	require.NoError(t, err)
}

func TestRefreshTokens_DeleteByHash(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.RefreshTokens().Create(ctx, &repository.RefreshToken{ID: "r", TenantID: "p1", UserID: "u", TokenHash: "x"}))
	require.NoError(t, s.RefreshTokens().DeleteByHash(ctx, "p1", "x"))
	assert.True(t, repository.IsNotFound(s.RefreshTokens().DeleteByHash(ctx, "p1", "x")))
}

func TestUsers_AuthEmailUnique(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := &repository.User{ID: "u1", TenantID: "p1", PrimaryEmail: "a@x.io", PrimaryEmailAuthEnabled: true}
	require.NoError(t, s.Users().Create(ctx, u))
	err := s.Users().Create(ctx, &repository.User{ID: "u2", TenantID: "p1", PrimaryEmail: "A@x.io", PrimaryEmailAuthEnabled: true})
	assert.True(t, repository.IsConflict(err))
	require.NoError(t, s.Users().Create(ctx, &repository.User{ID: "u3", TenantID: "p2", PrimaryEmail: "a@x.io", PrimaryEmailAuthEnabled: true}))

	got, err := s.Users().GetByAuthEmail(ctx, "p1", "A@X.IO")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	assert.True(t, repository.IsNotFound(s.Users().MarkEmailVerified(ctx, "p1", "u1", "b@x.io")))
	require.NoError(t, s.Users().MarkEmailVerified(ctx, "p1", "u1", "a@x.io"))
}
