package customer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/torqueshop/torqueshop/internal/auth"
)

type memoryRepo struct {
	customers map[int64]Customer
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{customers: make(map[int64]Customer)}
}

func (r *memoryRepo) Create(ctx context.Context, c Customer) (Customer, error) {
	for _, existing := range r.customers {
		if existing.Email == c.Email {
			return Customer{}, ErrEmailInUse
		}
	}
	r.nextID++
	c.ID = r.nextID
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

func (r *memoryRepo) GetByEmail(ctx context.Context, email string) (Customer, error) {
	for _, c := range r.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return Customer{}, ErrCustomerNotFound
}

func (r *memoryRepo) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	result := []Customer{}
	for _, c := range r.customers {
		result = append(result, c)
	}
	return result, len(result), nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, patch Patch) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	if patch.FirstName != nil {
		c.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		c.LastName = *patch.LastName
	}
	if patch.Email != nil {
		c.Email = *patch.Email
	}
	if patch.Phone != nil {
		c.Phone = *patch.Phone
	}
	if patch.Address != nil {
		c.Address = *patch.Address
	}
	if patch.PasswordHash != nil {
		c.PasswordHash = *patch.PasswordHash
	}
	r.customers[id] = c
	return c, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.customers[id]; !ok {
		return ErrCustomerNotFound
	}
	delete(r.customers, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *auth.Codec) {
	t.Helper()
	codec, err := auth.NewCodec("test-signing-secret", time.Hour)
	require.NoError(t, err)
	repo := newMemoryRepo()
	return NewService(repo, codec, nil), repo, codec
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo, _ := newTestService(t)

	c, err := svc.Register(context.Background(), Customer{
		FirstName: "Ada",
		LastName:  "Byron",
		Email:     "  Ada@Example.COM ",
	}, "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", c.Email)

	stored := repo.customers[c.ID]
	require.NotEqual(t, "hunter2hunter2", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Customer{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}, "hunter2hunter2")
	require.NoError(t, err)

	_, err = svc.Register(ctx, Customer{FirstName: "Other", LastName: "Person", Email: "ada@example.com"}, "hunter2hunter2")
	require.ErrorIs(t, err, ErrEmailInUse)
}

func TestLoginIssuesCustomerToken(t *testing.T) {
	svc, _, codec := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, Customer{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}, "hunter2hunter2")
	require.NoError(t, err)

	c, token, err := svc.Login(ctx, "ada@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.Equal(t, created.ID, c.ID)

	id, err := codec.Verify(token)
	require.NoError(t, err)
	require.Equal(t, created.ID, id.SubjectID)
	require.Equal(t, auth.RoleCustomer, id.Role)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, Customer{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}, "hunter2hunter2")
	require.NoError(t, err)

	_, _, wrongPass := svc.Login(ctx, "ada@example.com", "wrong")
	_, _, unknownEmail := svc.Login(ctx, "nobody@example.com", "hunter2hunter2")

	require.ErrorIs(t, wrongPass, ErrBadCredentials)
	require.ErrorIs(t, unknownEmail, ErrBadCredentials)
	require.Equal(t, wrongPass.Error(), unknownEmail.Error())
}

func TestUpdateRehashesPassword(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, Customer{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}, "hunter2hunter2")
	require.NoError(t, err)
	oldHash := repo.customers[c.ID].PasswordHash

	newPass := "correcthorsebattery"
	_, err = svc.Update(ctx, c.ID, c.ID, Patch{}, &newPass)
	require.NoError(t, err)

	newHash := repo.customers[c.ID].PasswordHash
	require.NotEqual(t, oldHash, newHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(newHash), []byte(newPass)))
}

func TestDeleteRefusesOwnAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.Register(ctx, Customer{FirstName: "Ada", LastName: "Byron", Email: "ada@example.com"}, "hunter2hunter2")
	require.NoError(t, err)

	err = svc.Delete(ctx, c.ID, c.ID)
	require.ErrorIs(t, err, ErrSelfDelete)

	// A different admin may delete the record.
	require.NoError(t, svc.Delete(ctx, c.ID+100, c.ID))
}

func TestDeleteMissingCustomer(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Delete(context.Background(), 1, 42)
	require.ErrorIs(t, err, ErrCustomerNotFound)
}
