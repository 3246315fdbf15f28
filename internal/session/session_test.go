package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/autherr"
	"github.com/dropDatabas3/authcore/internal/jwt"
	"github.com/dropDatabas3/authcore/internal/store/memory"
)

func newIssuer(now *time.Time) *Issuer {
	clock := func() time.Time { return *now }
	j := jwt.NewIssuer("https://auth.test", jwt.NewTenantKeys("secret"), time.Hour)
	j.Now = clock
	return NewIssuer(Deps{RefreshTokens: memory.New().RefreshTokens(), JWT: j, Now: clock})
}

func TestCreateAndRefresh(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	iss := newIssuer(&now)
	ctx := context.Background()

	pair, err := iss.CreateAuthTokens(ctx, "p1", "u1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	claims, err := iss.DecodeAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims.TenantID)
	assert.Equal(t, "u1", claims.UserID())

	now = now.Add(2 * time.Hour)
	_, err = iss.DecodeAccessToken(pair.AccessToken)
	assert.True(t, autherr.HasCode(err, autherr.CodeAccessTokenExpired))

	fresh, err := iss.RefreshAccessToken(ctx, "p1", pair.RefreshToken)
	require.NoError(t, err)
	claims, err = iss.DecodeAccessToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID())

	// refrescar no rota: el mismo refresh sigue sirviendo
	_, err = iss.RefreshAccessToken(ctx, "p1", pair.RefreshToken)
	require.NoError(t, err)

	_, err = iss.RefreshAccessToken(ctx, "p2", pair.RefreshToken)
	assert.True(t, autherr.HasCode(err, autherr.CodeRefreshTokenNotFoundOrExpired))
}

func TestRefresh_AbsoluteExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	iss := newIssuer(&now)
	ctx := context.Background()

	exp := now.Add(30 * time.Minute)
	pair, err := iss.CreateAuthTokens(ctx, "p1", "u1", &exp)
	require.NoError(t, err)

	_, err = iss.RefreshAccessToken(ctx, "p1", pair.RefreshToken)
	require.NoError(t, err)

	now = exp
	_, err = iss.RefreshAccessToken(ctx, "p1", pair.RefreshToken)
	assert.True(t, autherr.HasCode(err, autherr.CodeRefreshTokenNotFoundOrExpired))
}

func TestRevokeSession_ConcurrentSingleWinner(t *testing.T) {
	now := time.Now()
	iss := newIssuer(&now)
	ctx := context.Background()
	pair, err := iss.CreateAuthTokens(ctx, "p1", "u1", nil)
	require.NoError(t, err)

	var ok, notFound int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := iss.RevokeSession(ctx, "p1", pair.RefreshToken)
			if err == nil {
				atomic.AddInt32(&ok, 1)
			} else if autherr.HasCode(err, autherr.CodeRefreshTokenNotFoundOrExpired) {
				atomic.AddInt32(&notFound, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok)
	assert.EqualValues(t, 9, notFound)

	_, err = iss.RefreshAccessToken(ctx, "p1", pair.RefreshToken)
	assert.True(t, autherr.HasCode(err, autherr.CodeRefreshTokenNotFoundOrExpired))
}

func TestAuthenticateAccessToken_ProjectMismatch(t *testing.T) {
	now := time.Now()
	iss := newIssuer(&now)
	tok, err := iss.GenerateAccessToken(context.Background(), "p1", "u1")
	require.NoError(t, err)

	_, err = iss.AuthenticateAccessToken("p1", tok)
	require.NoError(t, err)
	_, err = iss.AuthenticateAccessToken("p2", tok)
	assert.True(t, autherr.HasCode(err, autherr.CodeAccessTokenProjectMismatch))
}
