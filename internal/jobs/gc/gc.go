// Package gc borra filas expiradas. No tiene rol de correctitud: la expiración siempre se
// chequea al leer, el sweep solo mantiene las tablas chicas.
package gc

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
)

// Expirer es lo que comparten los repos con filas expirables.
type Expirer interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Observer recibe las filas borradas por tabla.
type Observer interface {
	RowsDeleted(table string, n int64)
}

type Target struct {
	Table string
	Repo  Expirer
}

// Targets arma la lista estándar a partir del store. states puede venir de otro backend
// (redis) y reemplaza al del store.
func Targets(s repository.Store, states repository.OAuthStateRepository) []Target {
	if states == nil {
		states = s.OAuthStates()
	}
	return []Target{
		{Table: "verification_codes", Repo: s.VerificationCodes()},
		{Table: "refresh_tokens", Repo: s.RefreshTokens()},
		{Table: "oauth_outer_states", Repo: states},
		{Table: "authorization_codes", Repo: s.AuthorizationCodes()},
	}
}

type Sweeper struct {
	Targets  []Target
	Observer Observer
	// Grace deja las filas recién expiradas un rato más (útil para soporte/debug).
	Grace time.Duration
	Now   func() time.Time
}

// Sweep corre un barrido de todas las tablas en paralelo y devuelve el total borrado.
// Si una tabla falla el resto sigue; se devuelve el primer error.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	before := now().Add(-s.Grace)
	log := logger.From(ctx).With(logger.Layer("jobs"), logger.Op("gc.Sweep"))

	var total atomic.Int64
	var g errgroup.Group
	for _, t := range s.Targets {
		g.Go(func() error {
			n, err := t.Repo.DeleteExpired(ctx, before)
			if err != nil {
				log.Warn("sweep failed", logger.String("table", t.Table), logger.Err(err))
				return err
			}
			total.Add(n)
			if s.Observer != nil && n > 0 {
				s.Observer.RowsDeleted(t.Table, n)
			}
			if n > 0 {
				log.Debug("expired rows deleted", logger.String("table", t.Table), logger.Int64("rows", n))
			}
			return nil
		})
	}
	err := g.Wait()
	return total.Load(), err
}

// Run barre cada interval hasta que ctx se cancele.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err == nil && n > 0 {
				logger.From(ctx).Info("gc sweep done", logger.Component("gc"), logger.Int64("rows", n))
			}
		}
	}
}
