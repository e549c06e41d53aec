package inventory

import (
	"context"
	"strconv"
	"strings"

	"github.com/torqueshop/torqueshop/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	Create(ctx context.Context, item Item) (Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, limit, offset int) ([]Item, int, error)
	Search(ctx context.Context, filter SearchFilter) ([]Item, error)
	Update(ctx context.Context, id int64, patch Patch) (Item, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort records catalog mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service holds catalog business rules.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) Create(ctx context.Context, actorID int64, item Item) (Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	created, err := s.repo.Create(ctx, item)
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, actorID, "inventory:create", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Item, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Search(ctx context.Context, filter SearchFilter) ([]Item, error) {
	filter.Name = strings.TrimSpace(filter.Name)
	filter.Description = strings.TrimSpace(filter.Description)
	return s.repo.Search(ctx, filter)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, patch Patch) (Item, error) {
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, actorID, "inventory:update", id, map[string]any{"name": updated.Name})
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "inventory:delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_item",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
