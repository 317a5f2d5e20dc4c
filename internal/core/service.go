// Package core wraps a strata store in a Service that logs, meters and traces
// every operation, and selects the storage engine from configuration.
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"strata/internal/infra/persistence/memory"
	"strata/pkg/domain"
)

var _ domain.Store = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer attaches a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Service exposes the store contract with logging, metrics and tracing
// around every write, plus id-based helpers that resolve the current record
// before mutating.
type Service struct {
	store   PersistentStore
	logger  zerolog.Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// NewService constructs a service backed by store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zerolog.Nop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying store.
func (s *Service) Store() PersistentStore { return s.store }

// Close closes the underlying store.
func (s *Service) Close() error { return s.store.Close() }

func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) (domain.Resource, error)) (domain.Resource, error) {
	ctx, span := s.tracer.Start(ctx, op)
	started := s.now()
	r, err := fn(ctx)
	elapsed := s.now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)
	if err != nil {
		s.logger.Warn().Str("op", op).Str("kind", domain.ErrorKind(err)).Err(err).Msg("operation failed")
		return domain.Resource{}, err
	}
	s.logger.Debug().
		Str("op", op).
		Stringer("id", r.ID()).
		Stringer("type", r.Type()).
		Stringer("version", r.CurrentVersion()).
		Stringer("tx", s.store.Transaction()).
		Dur("elapsed", elapsed).
		Msg("operation committed")
	return r, nil
}

// Transaction returns the current transaction.
func (s *Service) Transaction() domain.Transaction { return s.store.Transaction() }

// CreateWorkspace creates a new root workspace.
func (s *Service) CreateWorkspace(ctx context.Context) (domain.Workspace, error) {
	r, err := s.run(ctx, "create_workspace", func(ctx context.Context) (domain.Resource, error) {
		ws, err := s.store.CreateWorkspace(ctx)
		return ws.Resource, err
	})
	return domain.Workspace{Resource: r}, err
}

// CreateCollection creates a collection under parent.
func (s *Service) CreateCollection(ctx context.Context, parent domain.Container) (domain.Collection, error) {
	r, err := s.run(ctx, "create_collection", func(ctx context.Context) (domain.Resource, error) {
		c, err := s.store.CreateCollection(ctx, parent)
		return c.Resource, err
	})
	return domain.Collection{Resource: r}, err
}

// DeleteWorkspace tombstones ws.
func (s *Service) DeleteWorkspace(ctx context.Context, ws domain.Workspace, recursive bool) (domain.Workspace, error) {
	r, err := s.run(ctx, "delete_workspace", func(ctx context.Context) (domain.Resource, error) {
		deleted, err := s.store.DeleteWorkspace(ctx, ws, recursive)
		return deleted.Resource, err
	})
	return domain.Workspace{Resource: r}, err
}

// DeleteCollection tombstones c.
func (s *Service) DeleteCollection(ctx context.Context, c domain.Collection, recursive bool) (domain.Collection, error) {
	r, err := s.run(ctx, "delete_collection", func(ctx context.Context) (domain.Resource, error) {
		deleted, err := s.store.DeleteCollection(ctx, c, recursive)
		return deleted.Resource, err
	})
	return domain.Collection{Resource: r}, err
}

// CreateCollectionUnder creates a collection under the current record of
// parentID, which must be a live container.
func (s *Service) CreateCollectionUnder(ctx context.Context, parentID uuid.UUID) (domain.Collection, error) {
	r, err := s.run(ctx, "create_collection", func(ctx context.Context) (domain.Resource, error) {
		parent, err := s.container(parentID)
		if err != nil {
			return domain.Resource{}, err
		}
		c, err := s.store.CreateCollection(ctx, parent)
		return c.Resource, err
	})
	return domain.Collection{Resource: r}, err
}

// DeleteByID tombstones the current record of id, whatever its kind.
func (s *Service) DeleteByID(ctx context.Context, id uuid.UUID, recursive bool) (domain.Resource, error) {
	r, ok := s.store.Find(id)
	if !ok {
		if tomb, dead := s.store.FindTombstone(id); dead {
			return tomb, nil
		}
		return domain.Resource{}, domain.NotFoundError{ID: id}
	}
	switch h := handleOf(r).(type) {
	case domain.Workspace:
		ws, err := s.DeleteWorkspace(ctx, h, recursive)
		return ws.Resource, err
	case domain.Collection:
		c, err := s.DeleteCollection(ctx, h, recursive)
		return c.Resource, err
	default:
		return domain.Resource{}, domain.KindMismatchError{ID: id, Expected: domain.TypeCollection, Actual: r.Type()}
	}
}

func (s *Service) container(id uuid.UUID) (domain.Container, error) {
	r, ok := s.store.Find(id)
	if !ok {
		return nil, domain.NotFoundError{ID: id}
	}
	return domain.ContainerOf(r)
}

func handleOf(r domain.Resource) domain.Handle {
	h, err := domain.HandleOf(r)
	if err != nil {
		return nil
	}
	return h
}

// Export returns the serialisable form of the current state.
func (s *Service) Export() memory.Snapshot { return s.store.Export() }

// Import replaces the store state with snap.
func (s *Service) Import(ctx context.Context, snap memory.Snapshot) error {
	ctx, span := s.tracer.Start(ctx, "import")
	started := s.now()
	err := s.store.Import(ctx, snap)
	span.End(err)
	s.metrics.Observe(ctx, "import", err == nil, s.now().Sub(started))
	if err != nil {
		s.logger.Warn().Str("op", "import").Err(err).Msg("operation failed")
		return err
	}
	s.logger.Info().Stringer("tx", snap.Transaction).Int("resources", len(snap.Resources)).Msg("state imported")
	return nil
}

// Find returns the live record for id.
func (s *Service) Find(id uuid.UUID) (domain.Resource, bool) { return s.store.Find(id) }

// FindOfType returns the live record for id when it has kind t.
func (s *Service) FindOfType(id uuid.UUID, t domain.ResourceType) (domain.Resource, bool) {
	return s.store.FindOfType(id, t)
}

// FindWorkspace returns the live workspace for id.
func (s *Service) FindWorkspace(id uuid.UUID) (domain.Workspace, bool) { return s.store.FindWorkspace(id) }

// FindCollection returns the live collection for id.
func (s *Service) FindCollection(id uuid.UUID) (domain.Collection, bool) {
	return s.store.FindCollection(id)
}

// FindTombstone returns the deleted record for id.
func (s *Service) FindTombstone(id uuid.UUID) (domain.Resource, bool) { return s.store.FindTombstone(id) }

// FindTombstoneOfType returns the deleted record for id when it has kind t.
func (s *Service) FindTombstoneOfType(id uuid.UUID, t domain.ResourceType) (domain.Resource, bool) {
	return s.store.FindTombstoneOfType(id, t)
}

// LinksFrom returns every link with id as the source.
func (s *Service) LinksFrom(id uuid.UUID) []domain.Link { return s.store.LinksFrom(id) }

// LinksTo returns every link with id as the target.
func (s *Service) LinksTo(id uuid.UUID) []domain.Link { return s.store.LinksTo(id) }

// ChildCollections returns the live collections directly under parent.
func (s *Service) ChildCollections(parent domain.Container) []domain.Collection {
	return s.store.ChildCollections(parent)
}

// Parent returns the live parent of c.
func (s *Service) Parent(c domain.Collection) (domain.Container, error) { return s.store.Parent(c) }
