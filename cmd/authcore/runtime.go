package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authcore/internal/config"
	"github.com/dropDatabas3/authcore/internal/domain/repository"
	"github.com/dropDatabas3/authcore/internal/observability/logger"
	"github.com/dropDatabas3/authcore/internal/security/secretbox"
	"github.com/dropDatabas3/authcore/internal/store/memory"
	"github.com/dropDatabas3/authcore/internal/store/pg"
	"github.com/dropDatabas3/authcore/internal/store/redisstate"
)

// runtime son las conexiones abiertas a partir del config.
type runtime struct {
	cfg   *config.Config
	store repository.Store
	pg    *pg.Store // nil con driver memory
	redis *rdb.Client

	closers []func() error
}

func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	switch cfg.Storage.Driver {
	case "postgres":
		s, err := pg.Connect(ctx, pg.Config{
			DSN:      cfg.Storage.DSN,
			MaxConns: cfg.Storage.Postgres.MaxConns,
			MinConns: cfg.Storage.Postgres.MinConns,
		})
		if err != nil {
			return nil, err
		}
		rt.pg, rt.store = s, s
		rt.closers = append(rt.closers, s.Close)
	default:
		logger.L().Warn("using in-memory store; data is lost on restart")
		rt.store = memory.New()
	}

	if cfg.Redis.Addr != "" {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB, Password: cfg.Redis.Password})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = rt.Close()
			_ = client.Close()
			return nil, fmt.Errorf("redis: ping %s: %w", cfg.Redis.Addr, err)
		}
		rt.redis = client
		rt.closers = append(rt.closers, client.Close)
		rt.store = redisstate.Wrap(rt.store, redisstate.New(client, cfg.Redis.Prefix+"oauth:"))
	}
	return rt, nil
}

// Close cierra en orden inverso.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// box devuelve el secretbox del config. En dev sin clave se genera una efímera: los
// secretos TOTP sellados no sobreviven un reinicio.
func (rt *runtime) box() (*secretbox.Box, error) {
	key := rt.cfg.Security.SecretBoxMasterKey
	if key == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		key = base64.StdEncoding.EncodeToString(buf)
		logger.L().Warn("SECRETBOX_MASTER_KEY not set; using an ephemeral key")
	}
	return secretbox.New(key)
}
