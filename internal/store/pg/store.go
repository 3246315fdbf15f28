// Package pg implementa repository.Store sobre PostgreSQL con pgxpool.
// La transacción viaja en el context: los repositorios usan la tx si hay una.
package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Config del pool.
type Config struct {
	DSN      string
	MaxConns int32
	MinConns int32
}

// Store es el backend Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

// Connect abre el pool y verifica la conexión.
func Connect(ctx context.Context, cfg Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	} else {
		poolCfg.MinConns = 2
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewFromPool envuelve un pool existente.
func NewFromPool(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

type txKey struct{}

// querier es lo común entre *pgxpool.Pool y pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) db(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// WithTx corre fn en una transacción READ COMMITTED. Anidado reutiliza la tx externa.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.From(ctx).Warn("pg rollback failed", logger.Layer("store"), logger.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg: commit: %w", err)
	}
	return nil
}

func (s *Store) Projects() repository.ProjectRepository                     { return projectRepo{s} }
func (s *Store) Users() repository.UserRepository                           { return userRepo{s} }
func (s *Store) VerificationCodes() repository.VerificationCodeRepository   { return codeRepo{s} }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository           { return refreshRepo{s} }
func (s *Store) OAuthStates() repository.OAuthStateRepository               { return stateRepo{s} }
func (s *Store) OAuthAccounts() repository.OAuthAccountRepository           { return accountRepo{s} }
func (s *Store) ProviderTokens() repository.ProviderTokenRepository         { return providerTokenRepo{s} }
func (s *Store) AuthorizationCodes() repository.AuthorizationCodeRepository { return authCodeRepo{s} }
func (s *Store) Teams() repository.TeamRepository                           { return teamRepo{s} }
func (s *Store) Passkeys() repository.PasskeyRepository                     { return passkeyRepo{s} }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Pool expone el pool para migraciones.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// mapErr traduce no-rows y unique_violation a los sentinels del repositorio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
