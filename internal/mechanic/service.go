package mechanic

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/torqueshop/torqueshop/internal/auth"
	"github.com/torqueshop/torqueshop/internal/shared"
)

// RepositoryPort abstracts mechanic persistence.
type RepositoryPort interface {
	Create(ctx context.Context, m Mechanic) (Mechanic, error)
	Get(ctx context.Context, id int64) (Mechanic, error)
	GetByEmail(ctx context.Context, email string) (Mechanic, error)
	List(ctx context.Context, limit, offset int) ([]Mechanic, int, error)
	Update(ctx context.Context, id int64, patch Patch) (Mechanic, error)
	Delete(ctx context.Context, id int64) error
	TopByTicketCount(ctx context.Context, limit int) ([]RankedMechanic, error)
}

// AuditPort records account mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service holds staff account business rules.
type Service struct {
	repo  RepositoryPort
	codec *auth.Codec
	audit AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, codec *auth.Codec, audit AuditPort) *Service {
	return &Service{repo: repo, codec: codec, audit: audit}
}

// Register creates a staff account. The admin flag defaults to false and is
// honored only when the creating actor is an administrator.
func (s *Service) Register(ctx context.Context, actor auth.Identity, m Mechanic, password string) (Mechanic, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return Mechanic{}, err
	}
	if actor.Role != auth.RoleAdmin {
		m.IsAdmin = false
	}
	m.Email = normalizeEmail(m.Email)
	m.PasswordHash = hash
	created, err := s.repo.Create(ctx, m)
	if err != nil {
		return Mechanic{}, err
	}
	s.record(ctx, actor.SubjectID, "mechanic:register", created.ID, map[string]any{"is_admin": created.IsAdmin})
	return created, nil
}

// Login verifies the credential pair. The issued role depends on the stored
// admin flag, so promoting a mechanic takes effect at their next login.
func (s *Service) Login(ctx context.Context, email, password string) (Mechanic, string, error) {
	m, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrMechanicNotFound) {
			return Mechanic{}, "", ErrBadCredentials
		}
		return Mechanic{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)) != nil {
		return Mechanic{}, "", ErrBadCredentials
	}
	role := auth.RoleMechanic
	if m.IsAdmin {
		role = auth.RoleAdmin
	}
	token, err := s.codec.Issue(m.ID, role)
	if err != nil {
		return Mechanic{}, "", err
	}
	return m, token, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Mechanic, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Mechanic, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// TopByTicketCount returns the busiest mechanics by assignment count.
func (s *Service) TopByTicketCount(ctx context.Context, limit int) ([]RankedMechanic, error) {
	return s.repo.TopByTicketCount(ctx, limit)
}

// Update applies a patch. Only administrators may change the admin flag;
// for anyone else it is silently dropped rather than rejected, matching the
// update contract for unknown fields.
func (s *Service) Update(ctx context.Context, actor auth.Identity, id int64, patch Patch, password *string) (Mechanic, error) {
	if actor.Role != auth.RoleAdmin {
		patch.IsAdmin = nil
	}
	if password != nil && *password != "" {
		hash, err := hashPassword(*password)
		if err != nil {
			return Mechanic{}, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Email != nil {
		normalized := normalizeEmail(*patch.Email)
		patch.Email = &normalized
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Mechanic{}, err
	}
	s.record(ctx, actor.SubjectID, "mechanic:update", id, nil)
	return updated, nil
}

// Delete removes a staff record. Admins belong to this collection, so the
// endpoint refuses the caller's own id to prevent lockout.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "mechanic:delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "mechanic",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
