// Package redisstate guarda los outer states de OAuth en Redis.
// Cada estado vive bajo su inner state; Take usa GETDEL para que sea de un solo uso.
package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// DefaultGrace mantiene la clave un rato después de ExpiresAt, así un callback tardío
// recibe OuterOAuthTimeout en vez de InvalidOAuthState.
const DefaultGrace = time.Hour

// Repo implementa repository.OAuthStateRepository.
type Repo struct {
	Client *rdb.Client
	Prefix string
	Grace  time.Duration
	Now    func() time.Time
}

var _ repository.OAuthStateRepository = (*Repo)(nil)

func New(client *rdb.Client, prefix string) *Repo {
	if prefix == "" {
		prefix = "authcore:oauth:state:"
	}
	return &Repo{Client: client, Prefix: prefix, Grace: DefaultGrace, Now: time.Now}
}

func (r *Repo) key(inner string) string { return r.Prefix + inner }

// Create usa SET NX: un inner state repetido es ErrConflict.
func (r *Repo) Create(ctx context.Context, st *repository.OAuthOuterState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redisstate: encode: %w", err)
	}
	ttl := st.ExpiresAt.Sub(r.Now()) + r.Grace
	if ttl <= 0 {
		ttl = r.Grace
	}
	ok, err := r.Client.SetNX(ctx, r.key(st.InnerState), b, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrConflict
	}
	return nil
}

func (r *Repo) Take(ctx context.Context, innerState string) (*repository.OAuthOuterState, error) {
	b, err := r.Client.GetDel(ctx, r.key(innerState)).Bytes()
	if errors.Is(err, rdb.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var st repository.OAuthOuterState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("redisstate: decode: %w", err)
	}
	return &st, nil
}

// DeleteExpired no hace nada: Redis expira las claves solo.
func (r *Repo) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// Store compone un repository.Store con los outer states en Redis.
type Store struct {
	repository.Store
	states *Repo
}

// Wrap reemplaza OAuthStates() de base.
func Wrap(base repository.Store, states *Repo) *Store {
	return &Store{Store: base, states: states}
}

func (s *Store) OAuthStates() repository.OAuthStateRepository { return s.states }

// Ping verifica la base y Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.Store.Ping(ctx); err != nil {
		return err
	}
	return s.states.Client.Ping(ctx).Err()
}
