// Package memory implementa repository.Store en memoria. Pensado para tests y modo dev:
// las transacciones serializan todo el store y hacen rollback restaurando un snapshot.
package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

type txKey struct{}

type tables struct {
	projects  map[string]repository.Project
	users     map[string]repository.User
	codes     map[string]repository.VerificationCode
	refresh   map[string]repository.RefreshToken
	states    map[string]repository.OAuthOuterState
	accounts  map[string]repository.OAuthAccount
	ptokens   []repository.ProviderToken
	authCodes map[string]repository.AuthorizationCode
	teams     map[string]repository.Team
	members   map[string]struct{}
	passkeys  map[string]repository.PasskeyCredential
}

func newTables() tables {
	return tables{
		projects:  map[string]repository.Project{},
		users:     map[string]repository.User{},
		codes:     map[string]repository.VerificationCode{},
		refresh:   map[string]repository.RefreshToken{},
		states:    map[string]repository.OAuthOuterState{},
		accounts:  map[string]repository.OAuthAccount{},
		authCodes: map[string]repository.AuthorizationCode{},
		teams:     map[string]repository.Team{},
		members:   map[string]struct{}{},
		passkeys:  map[string]repository.PasskeyCredential{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t tables) snapshot() tables {
	return tables{
		projects:  copyMap(t.projects),
		users:     copyMap(t.users),
		codes:     copyMap(t.codes),
		refresh:   copyMap(t.refresh),
		states:    copyMap(t.states),
		accounts:  copyMap(t.accounts),
		ptokens:   append([]repository.ProviderToken(nil), t.ptokens...),
		authCodes: copyMap(t.authCodes),
		teams:     copyMap(t.teams),
		members:   copyMap(t.members),
		passkeys:  copyMap(t.passkeys),
	}
}

// Store guarda las filas por valor, así el snapshot de un map alcanza para el rollback.
type Store struct {
	mu sync.Mutex
	t  tables
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{t: newTables()}
}

// WithTx serializa fn contra cualquier otro acceso al store. Si fn falla, las
// escrituras hechas dentro se descartan.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.t.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.t = snap
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock toma el mutex salvo que ctx ya esté dentro de una tx de este store.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
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

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func key(parts ...string) string {
	n := 0
	for _, p := range parts {
		n += len(p) + 1
	}
	b := make([]byte, 0, n)
	for i, p := range parts {
		if i > 0 {
			b = append(b, 0)
		}
		b = append(b, p...)
	}
	return string(b)
}
