package customer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository persists customers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, first_name, last_name, email, phone, address, password_hash`

func (r *Repository) Create(ctx context.Context, c Customer) (Customer, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (first_name, last_name, email, phone, address, password_hash)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		c.FirstName, c.LastName, c.Email, c.Phone, c.Address, c.PasswordHash).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Customer{}, ErrEmailInUse
		}
		return Customer{}, err
	}
	return c, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id)
	return scanCustomer(row)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE email=$1`, email)
	return scanCustomer(row)
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Customer, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := []Customer{}
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.PasswordHash); err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (Customer, error) {
	row := r.pool.QueryRow(ctx, `UPDATE customers SET
first_name = COALESCE($2, first_name),
last_name = COALESCE($3, last_name),
email = COALESCE($4, email),
phone = COALESCE($5, phone),
address = COALESCE($6, address),
password_hash = COALESCE($7, password_hash)
WHERE id=$1
RETURNING `+customerColumns,
		id, patch.FirstName, patch.LastName, patch.Email, patch.Phone, patch.Address, patch.PasswordHash)
	c, err := scanCustomer(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Customer{}, ErrEmailInUse
		}
		return Customer{}, err
	}
	return c, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Address, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
