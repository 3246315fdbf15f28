// Package cache cachea en proceso la configuración de proyectos, que se lee en cada request.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/authcore/internal/domain/repository"
)

// DefaultTTL de una entrada de proyecto.
const DefaultTTL = 30 * time.Second

// Projects envuelve un ProjectRepository. Lecturas concurrentes del mismo id comparten
// una sola consulta al store.
type Projects struct {
	next  repository.ProjectRepository
	c     *gocache.Cache
	group singleflight.Group
}

var _ repository.ProjectRepository = (*Projects)(nil)

func NewProjects(next repository.ProjectRepository, ttl time.Duration) *Projects {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Projects{next: next, c: gocache.New(ttl, time.Minute)}
}

// GetByID devuelve una copia superficial del proyecto cacheado.
func (p *Projects) GetByID(ctx context.Context, id string) (*repository.Project, error) {
	if v, ok := p.c.Get(id); ok {
		cp := v.(repository.Project)
		return &cp, nil
	}
	v, err, _ := p.group.Do(id, func() (any, error) {
		proj, err := p.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		p.c.SetDefault(id, *proj)
		return *proj, nil
	})
	if err != nil {
		return nil, err
	}
	cp := v.(repository.Project)
	return &cp, nil
}

// Upsert escribe en el store e invalida la entrada.
func (p *Projects) Upsert(ctx context.Context, proj *repository.Project) error {
	if err := p.next.Upsert(ctx, proj); err != nil {
		return err
	}
	p.c.Delete(proj.ID)
	return nil
}

// Invalidate descarta una entrada.
func (p *Projects) Invalidate(id string) { p.c.Delete(id) }

// Store expone un repository.Store con Projects() cacheado.
type Store struct {
	repository.Store
	projects *Projects
}

func WrapStore(base repository.Store, ttl time.Duration) *Store {
	return &Store{Store: base, projects: NewProjects(base.Projects(), ttl)}
}

func (s *Store) Projects() repository.ProjectRepository { return s.projects }

// ProjectCache expone el cache concreto (invalidación, middleware de proyecto).
func (s *Store) ProjectCache() *Projects { return s.projects }
