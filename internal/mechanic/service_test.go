package mechanic

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/torqueshop/torqueshop/internal/auth"
)

type memoryRepo struct {
	mechanics map[int64]Mechanic
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{mechanics: make(map[int64]Mechanic)}
}

func (r *memoryRepo) Create(ctx context.Context, m Mechanic) (Mechanic, error) {
	for _, existing := range r.mechanics {
		if existing.Email == m.Email {
			return Mechanic{}, ErrEmailInUse
		}
	}
	r.nextID++
	m.ID = r.nextID
	r.mechanics[m.ID] = m
	return m, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Mechanic, error) {
	m, ok := r.mechanics[id]
	if !ok {
		return Mechanic{}, ErrMechanicNotFound
	}
	return m, nil
}

func (r *memoryRepo) GetByEmail(ctx context.Context, email string) (Mechanic, error) {
	for _, m := range r.mechanics {
		if m.Email == email {
			return m, nil
		}
	}
	return Mechanic{}, ErrMechanicNotFound
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]Mechanic, int, error) {
	result := []Mechanic{}
	for _, m := range r.mechanics {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, patch Patch) (Mechanic, error) {
	m, ok := r.mechanics[id]
	if !ok {
		return Mechanic{}, ErrMechanicNotFound
	}
	if patch.FirstName != nil {
		m.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		m.LastName = *patch.LastName
	}
	if patch.Email != nil {
		m.Email = *patch.Email
	}
	if patch.Salary != nil {
		m.Salary = *patch.Salary
	}
	if patch.Address != nil {
		m.Address = *patch.Address
	}
	if patch.IsAdmin != nil {
		m.IsAdmin = *patch.IsAdmin
	}
	if patch.PasswordHash != nil {
		m.PasswordHash = *patch.PasswordHash
	}
	r.mechanics[id] = m
	return m, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.mechanics[id]; !ok {
		return ErrMechanicNotFound
	}
	delete(r.mechanics, id)
	return nil
}

func (r *memoryRepo) TopByTicketCount(ctx context.Context, limit int) ([]RankedMechanic, error) {
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *auth.Codec) {
	t.Helper()
	codec, err := auth.NewCodec("test-signing-secret", time.Hour)
	require.NoError(t, err)
	repo := newMemoryRepo()
	return NewService(repo, codec, nil), repo, codec
}

func TestLoginRoleFollowsAdminFlag(t *testing.T) {
	svc, _, codec := newTestService(t)
	ctx := context.Background()
	admin := auth.Identity{SubjectID: 1, Role: auth.RoleAdmin}

	_, err := svc.Register(ctx, admin, Mechanic{FirstName: "Pat", LastName: "Jones", Email: "pat@shop.test", IsAdmin: true}, "hunter2hunter2")
	require.NoError(t, err)
	_, err = svc.Register(ctx, admin, Mechanic{FirstName: "Sam", LastName: "Smith", Email: "sam@shop.test"}, "hunter2hunter2")
	require.NoError(t, err)

	_, adminToken, err := svc.Login(ctx, "pat@shop.test", "hunter2hunter2")
	require.NoError(t, err)
	id, err := codec.Verify(adminToken)
	require.NoError(t, err)
	require.Equal(t, auth.RoleAdmin, id.Role)

	_, mechToken, err := svc.Login(ctx, "sam@shop.test", "hunter2hunter2")
	require.NoError(t, err)
	id, err = codec.Verify(mechToken)
	require.NoError(t, err)
	require.Equal(t, auth.RoleMechanic, id.Role)
}

func TestRegisterDropsAdminFlagForAnonymous(t *testing.T) {
	svc, repo, _ := newTestService(t)

	m, err := svc.Register(context.Background(), auth.Identity{}, Mechanic{
		FirstName: "Eve",
		LastName:  "Mallory",
		Email:     "eve@shop.test",
		IsAdmin:   true,
	}, "hunter2hunter2")
	require.NoError(t, err)
	require.False(t, m.IsAdmin)
	require.False(t, repo.mechanics[m.ID].IsAdmin)
}

func TestUpdateAdminFlagRequiresAdmin(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	admin := auth.Identity{SubjectID: 1, Role: auth.RoleAdmin}

	m, err := svc.Register(ctx, admin, Mechanic{FirstName: "Sam", LastName: "Smith", Email: "sam@shop.test"}, "hunter2hunter2")
	require.NoError(t, err)

	elevate := true
	// Mechanic updating their own record cannot self-promote.
	_, err = svc.Update(ctx, auth.Identity{SubjectID: m.ID, Role: auth.RoleMechanic}, m.ID, Patch{IsAdmin: &elevate}, nil)
	require.NoError(t, err)
	require.False(t, repo.mechanics[m.ID].IsAdmin)

	_, err = svc.Update(ctx, admin, m.ID, Patch{IsAdmin: &elevate}, nil)
	require.NoError(t, err)
	require.True(t, repo.mechanics[m.ID].IsAdmin)
}

func TestLoginBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.Identity{}, Mechanic{FirstName: "Sam", LastName: "Smith", Email: "sam@shop.test"}, "hunter2hunter2")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "sam@shop.test", "nope")
	require.ErrorIs(t, err, ErrBadCredentials)
	_, _, err = svc.Login(ctx, "ghost@shop.test", "hunter2hunter2")
	require.ErrorIs(t, err, ErrBadCredentials)
}

func TestDeleteRefusesOwnAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	admin := auth.Identity{SubjectID: 99, Role: auth.RoleAdmin}

	m, err := svc.Register(ctx, admin, Mechanic{FirstName: "Sam", LastName: "Smith", Email: "sam@shop.test"}, "hunter2hunter2")
	require.NoError(t, err)

	err = svc.Delete(ctx, m.ID, m.ID)
	require.ErrorIs(t, err, ErrSelfDelete)

	require.NoError(t, svc.Delete(ctx, 99, m.ID))
}
