package ticket

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torqueshop/torqueshop/internal/platform/db"
)

// Repository persists tickets and assignments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ticketColumns = `id, customer_id, service_description, price, vin, service_date`

func (r *Repository) Create(ctx context.Context, t Ticket) (Ticket, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO service_tickets (customer_id, service_description, price, vin, service_date)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		t.CustomerID, t.ServiceDescription, t.Price, t.VIN, t.ServiceDate).Scan(&t.ID)
	return t, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Ticket, error) {
	var t Ticket
	err := r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM service_tickets WHERE id=$1`, id).
		Scan(&t.ID, &t.CustomerID, &t.ServiceDescription, &t.Price, &t.VIN, &t.ServiceDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrTicketNotFound
		}
		return Ticket{}, err
	}
	return t, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Ticket, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_tickets WHERE ($1 = 0 OR customer_id = $1)`, filter.CustomerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM service_tickets
WHERE ($1 = 0 OR customer_id = $1)
ORDER BY id ASC LIMIT $2 OFFSET $3`, filter.CustomerID, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets := []Ticket{}
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.CustomerID, &t.ServiceDescription, &t.Price, &t.VIN, &t.ServiceDate); err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (Ticket, error) {
	var t Ticket
	err := r.pool.QueryRow(ctx, `UPDATE service_tickets SET
customer_id = COALESCE($2, customer_id),
service_description = COALESCE($3, service_description),
price = COALESCE($4, price),
vin = COALESCE($5, vin),
service_date = COALESCE($6, service_date)
WHERE id=$1
RETURNING `+ticketColumns,
		id, patch.CustomerID, patch.ServiceDescription, patch.Price, patch.VIN, patch.ServiceDate).
		Scan(&t.ID, &t.CustomerID, &t.ServiceDescription, &t.Price, &t.VIN, &t.ServiceDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ticket{}, ErrTicketNotFound
		}
		return Ticket{}, err
	}
	return t, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ticket_mechanics WHERE service_ticket_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM service_tickets WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrTicketNotFound
		}
		return nil
	})
}

func (r *Repository) TicketExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_tickets WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *Repository) MechanicExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM mechanics WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

// Assign records the pair at most once; repeated assignment is a no-op.
func (r *Repository) Assign(ctx context.Context, ticketID, mechanicID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO ticket_mechanics (service_ticket_id, mechanic_id)
VALUES ($1,$2) ON CONFLICT (service_ticket_id, mechanic_id) DO NOTHING`, ticketID, mechanicID)
	return err
}

func (r *Repository) Unassign(ctx context.Context, ticketID, mechanicID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM ticket_mechanics WHERE service_ticket_id=$1 AND mechanic_id=$2`, ticketID, mechanicID)
	return err
}

// Mechanics returns the mechanics assigned to a ticket.
func (r *Repository) Mechanics(ctx context.Context, ticketID int64) ([]AssignedMechanic, error) {
	rows, err := r.pool.Query(ctx, `SELECT m.id, m.first_name, m.last_name, m.email
FROM mechanics m
JOIN ticket_mechanics tm ON tm.mechanic_id = m.id
WHERE tm.service_ticket_id = $1
ORDER BY m.id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	mechanics := []AssignedMechanic{}
	for rows.Next() {
		var m AssignedMechanic
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email); err != nil {
			return nil, err
		}
		mechanics = append(mechanics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mechanics, nil
}
