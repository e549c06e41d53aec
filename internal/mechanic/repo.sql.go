package mechanic

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torqueshop/torqueshop/internal/platform/db"
)

const uniqueViolation = "23505"

// Repository persists mechanics in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const mechanicColumns = `id, first_name, last_name, email, salary, address, is_admin, password_hash`

func (r *Repository) Create(ctx context.Context, m Mechanic) (Mechanic, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO mechanics (first_name, last_name, email, salary, address, is_admin, password_hash)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		m.FirstName, m.LastName, m.Email, m.Salary, m.Address, m.IsAdmin, m.PasswordHash).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Mechanic{}, ErrEmailInUse
		}
		return Mechanic{}, err
	}
	return m, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Mechanic, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mechanicColumns+` FROM mechanics WHERE id=$1`, id)
	return scanMechanic(row)
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Mechanic, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+mechanicColumns+` FROM mechanics WHERE email=$1`, email)
	return scanMechanic(row)
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Mechanic, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM mechanics`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+mechanicColumns+` FROM mechanics ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	mechanics := []Mechanic{}
	for rows.Next() {
		var m Mechanic
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Salary, &m.Address, &m.IsAdmin, &m.PasswordHash); err != nil {
			return nil, 0, err
		}
		mechanics = append(mechanics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return mechanics, total, nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (Mechanic, error) {
	row := r.pool.QueryRow(ctx, `UPDATE mechanics SET
first_name = COALESCE($2, first_name),
last_name = COALESCE($3, last_name),
email = COALESCE($4, email),
salary = COALESCE($5, salary),
address = COALESCE($6, address),
is_admin = COALESCE($7, is_admin),
password_hash = COALESCE($8, password_hash)
WHERE id=$1
RETURNING `+mechanicColumns,
		id, patch.FirstName, patch.LastName, patch.Email, patch.Salary, patch.Address, patch.IsAdmin, patch.PasswordHash)
	m, err := scanMechanic(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Mechanic{}, ErrEmailInUse
		}
		return Mechanic{}, err
	}
	return m, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_mechanics WHERE mechanic_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM mechanics WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrMechanicNotFound
		}
		return nil
	})
}

// TopByTicketCount returns the mechanics with the most ticket assignments.
func (r *Repository) TopByTicketCount(ctx context.Context, limit int) ([]RankedMechanic, error) {
	if limit <= 0 {
		limit = 3
	}
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.first_name, m.last_name, m.email, COUNT(tm.service_ticket_id) AS ticket_count
FROM mechanics m
JOIN ticket_mechanics tm ON tm.mechanic_id = m.id
GROUP BY m.id
ORDER BY ticket_count DESC, m.id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := []RankedMechanic{}
	for rows.Next() {
		var rm RankedMechanic
		if err := rows.Scan(&rm.ID, &rm.FirstName, &rm.LastName, &rm.Email, &rm.TicketCount); err != nil {
			return nil, err
		}
		ranked = append(ranked, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ranked, nil
}

func scanMechanic(row pgx.Row) (Mechanic, error) {
	var m Mechanic
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Salary, &m.Address, &m.IsAdmin, &m.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mechanic{}, ErrMechanicNotFound
		}
		return Mechanic{}, err
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
