package ticket

import (
	"context"
	"strconv"
	"time"

	"github.com/torqueshop/torqueshop/internal/shared"
)

// RepositoryPort abstracts ticket persistence.
type RepositoryPort interface {
	Create(ctx context.Context, t Ticket) (Ticket, error)
	Get(ctx context.Context, id int64) (Ticket, error)
	List(ctx context.Context, filter ListFilter) ([]Ticket, int, error)
	Update(ctx context.Context, id int64, patch Patch) (Ticket, error)
	Delete(ctx context.Context, id int64) error
	TicketExists(ctx context.Context, id int64) (bool, error)
	MechanicExists(ctx context.Context, id int64) (bool, error)
	Assign(ctx context.Context, ticketID, mechanicID int64) error
	Unassign(ctx context.Context, ticketID, mechanicID int64) error
	Mechanics(ctx context.Context, ticketID int64) ([]AssignedMechanic, error)
}

// AuditPort records ticket mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service holds ticket business rules.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) Create(ctx context.Context, actorID int64, t Ticket) (Ticket, error) {
	if t.ServiceDate.IsZero() {
		t.ServiceDate = time.Now().UTC()
	}
	created, err := s.repo.Create(ctx, t)
	if err != nil {
		return Ticket{}, err
	}
	s.record(ctx, actorID, "ticket:create", created.ID, map[string]any{"customer_id": created.CustomerID})
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Ticket, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]Ticket, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Update(ctx context.Context, actorID, id int64, patch Patch) (Ticket, error) {
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Ticket{}, err
	}
	s.record(ctx, actorID, "ticket:update", id, nil)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "ticket:delete", id, nil)
	return nil
}

// AssignMechanics links each mechanic to the ticket. A pair is recorded at
// most once; ids already assigned are skipped, unknown mechanic ids fail the
// whole call.
func (s *Service) AssignMechanics(ctx context.Context, actorID, ticketID int64, mechanicIDs []int64) error {
	if len(mechanicIDs) == 0 {
		return ErrNoMechanics
	}
	if err := s.requireTicket(ctx, ticketID); err != nil {
		return err
	}
	for _, mechanicID := range mechanicIDs {
		ok, err := s.repo.MechanicExists(ctx, mechanicID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrMechanicNotFound
		}
		if err := s.repo.Assign(ctx, ticketID, mechanicID); err != nil {
			return err
		}
	}
	s.record(ctx, actorID, "ticket:assign_mechanics", ticketID, map[string]any{"mechanic_ids": mechanicIDs})
	return nil
}

// UnassignMechanics removes the pairs; ids not currently assigned are
// ignored.
func (s *Service) UnassignMechanics(ctx context.Context, actorID, ticketID int64, mechanicIDs []int64) error {
	if len(mechanicIDs) == 0 {
		return ErrNoMechanics
	}
	if err := s.requireTicket(ctx, ticketID); err != nil {
		return err
	}
	for _, mechanicID := range mechanicIDs {
		if err := s.repo.Unassign(ctx, ticketID, mechanicID); err != nil {
			return err
		}
	}
	s.record(ctx, actorID, "ticket:unassign_mechanics", ticketID, map[string]any{"mechanic_ids": mechanicIDs})
	return nil
}

// Mechanics lists the mechanics assigned to a ticket.
func (s *Service) Mechanics(ctx context.Context, ticketID int64) ([]AssignedMechanic, error) {
	if err := s.requireTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	return s.repo.Mechanics(ctx, ticketID)
}

func (s *Service) requireTicket(ctx context.Context, id int64) error {
	ok, err := s.repo.TicketExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrTicketNotFound
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "service_ticket",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}
