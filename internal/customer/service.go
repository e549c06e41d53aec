package customer

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/torqueshop/torqueshop/internal/auth"
	"github.com/torqueshop/torqueshop/internal/shared"
)

// RepositoryPort abstracts customer persistence.
type RepositoryPort interface {
	Create(ctx context.Context, c Customer) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	GetByEmail(ctx context.Context, email string) (Customer, error)
	List(ctx context.Context, limit, offset int) ([]Customer, int, error)
	Update(ctx context.Context, id int64, patch Patch) (Customer, error)
	Delete(ctx context.Context, id int64) error
}

// AuditPort records account mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service holds customer account business rules.
type Service struct {
	repo  RepositoryPort
	codec *auth.Codec
	audit AuditPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort, codec *auth.Codec, audit AuditPort) *Service {
	return &Service{repo: repo, codec: codec, audit: audit}
}

// Register creates an account from a plaintext password. Registration is
// open; the resulting account always carries the customer role.
func (s *Service) Register(ctx context.Context, c Customer, password string) (Customer, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return Customer{}, err
	}
	c.Email = normalizeEmail(c.Email)
	c.PasswordHash = hash
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return Customer{}, err
	}
	s.record(ctx, created.ID, "customer:register", created.ID, nil)
	return created, nil
}

// Login verifies the credential pair and issues a customer token. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Customer, string, error) {
	c, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			return Customer{}, "", ErrBadCredentials
		}
		return Customer{}, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return Customer{}, "", ErrBadCredentials
	}
	token, err := s.codec.Issue(c.ID, auth.RoleCustomer)
	if err != nil {
		return Customer{}, "", err
	}
	return c, token, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update applies a patch, hashing the password when one is supplied.
func (s *Service) Update(ctx context.Context, actorID, id int64, patch Patch, password *string) (Customer, error) {
	if password != nil && *password != "" {
		hash, err := hashPassword(*password)
		if err != nil {
			return Customer{}, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Email != nil {
		normalized := normalizeEmail(*patch.Email)
		patch.Email = &normalized
	}
	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return Customer{}, err
	}
	s.record(ctx, actorID, "customer:update", id, nil)
	return updated, nil
}

// Delete removes a customer record. The administrative endpoint refuses to
// delete the caller's own account.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "customer:delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "customer",
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
