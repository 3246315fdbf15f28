package pg

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/migrations/postgres"
)

// Integración: requiere AUTHCORE_TEST_PG_DSN apuntando a una base descartable.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AUTHCORE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AUTHCORE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := Connect(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Migrate(ctx, postgres.FS)
	require.NoError(t, err)
	return s
}

func TestParseMigrations(t *testing.T) {
	migs, err := ParseMigrations(postgres.FS)
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	assert.Equal(t, 1, migs[0].Version)
	assert.Equal(t, "init", migs[0].Name)
	require.Len(t, migs, 2)
	assert.Equal(t, 2, migs[1].Version)
	assert.Equal(t, "passkey_backup_eligible", migs[1].Name)
}

func TestPG_ConsumeIfValidExactlyOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tenant := "t-" + uuid.NewString()
	require.NoError(t, s.Projects().Upsert(ctx, &repository.Project{ID: tenant}))

	now := time.Now().UTC()
	hash := uuid.NewString()
	require.NoError(t, s.VerificationCodes().Create(ctx, &repository.VerificationCode{
		ID: uuid.NewString(), TenantID: tenant, Type: repository.CodeTypeOneTimePassword,
		CodeHash: hash, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.VerificationCodes().ConsumeIfValid(ctx, tenant, repository.CodeTypeOneTimePassword, hash, time.Now().UTC()); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, ok)
}

func TestPG_WithTxRollback(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tenant := "t-" + uuid.NewString()
	require.NoError(t, s.Projects().Upsert(ctx, &repository.Project{ID: tenant}))

	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Users().Create(ctx, &repository.User{ID: "u1", TenantID: tenant, CreatedAt: time.Now()}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	_, err = s.Users().GetByID(ctx, tenant, "u1")
	assert.True(t, repository.IsNotFound(err))
}
