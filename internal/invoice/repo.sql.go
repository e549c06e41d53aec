package invoice

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torqueshop/torqueshop/internal/platform/db"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction; the
// ledger takes row locks itself where it needs them.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("invoice repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO invoices (customer_id, service_ticket_id, total, submitted, created_at)
VALUES ($1,$2,$3,$4,NOW()) RETURNING id, created_at`, inv.CustomerID, inv.ServiceTicketID, inv.Total, inv.Submitted).
		Scan(&inv.ID, &inv.CreatedAt)
	return inv, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `SELECT id, customer_id, service_ticket_id, total, submitted, created_at
FROM invoices WHERE id=$1`, id).
		Scan(&inv.ID, &inv.CustomerID, &inv.ServiceTicketID, &inv.Total, &inv.Submitted, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices WHERE ($1 = 0 OR customer_id = $1)`, filter.CustomerID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, customer_id, service_ticket_id, total, submitted, created_at
FROM invoices
WHERE ($1 = 0 OR customer_id = $1)
ORDER BY id ASC
LIMIT $2 OFFSET $3`, filter.CustomerID, limit, filter.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	invoices := []Invoice{}
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.ServiceTicketID, &inv.Total, &inv.Submitted, &inv.CreatedAt); err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (Invoice, error) {
	var inv Invoice
	err := r.pool.QueryRow(ctx, `UPDATE invoices SET
customer_id = COALESCE($2, customer_id),
service_ticket_id = COALESCE($3, service_ticket_id),
total = COALESCE($4, total),
submitted = COALESCE($5, submitted)
WHERE id=$1
RETURNING id, customer_id, service_ticket_id, total, submitted, created_at`,
		id, patch.CustomerID, patch.ServiceTicketID, patch.Total, patch.Submitted).
		Scan(&inv.ID, &inv.CustomerID, &inv.ServiceTicketID, &inv.Total, &inv.Submitted, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *Repository) Lines(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT invoice_id, inventory_item_id, quantity
FROM invoice_items WHERE invoice_id=$1 ORDER BY inventory_item_id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []LineItem{}
	for rows.Next() {
		var line LineItem
		if err := rows.Scan(&line.InvoiceID, &line.InventoryItemID, &line.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *txRepository) InvoiceExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) ItemExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM inventory_items WHERE id=$1)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetLineForUpdate(ctx context.Context, invoiceID, itemID int64) (LineItem, error) {
	var line LineItem
	err := r.tx.QueryRow(ctx, `SELECT invoice_id, inventory_item_id, quantity
FROM invoice_items WHERE invoice_id=$1 AND inventory_item_id=$2 FOR UPDATE`, invoiceID, itemID).
		Scan(&line.InvoiceID, &line.InventoryItemID, &line.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineItem{}, ErrLineNotFound
		}
		return LineItem{}, err
	}
	return line, nil
}

// AddLineQuantity merges a delta into the line atomically. The increment
// happens inside the upsert itself, so two concurrent adds on a fresh pair
// cannot clobber each other: the second insert waits on the unique index and
// then increments the committed row.
func (r *txRepository) AddLineQuantity(ctx context.Context, invoiceID, itemID int64, delta int32) (int32, error) {
	var quantity int32
	err := r.tx.QueryRow(ctx, `INSERT INTO invoice_items (invoice_id, inventory_item_id, quantity)
VALUES ($1,$2,$3)
ON CONFLICT (invoice_id, inventory_item_id) DO UPDATE SET quantity = invoice_items.quantity + EXCLUDED.quantity
RETURNING quantity`,
		invoiceID, itemID, delta).Scan(&quantity)
	return quantity, err
}

func (r *txRepository) MoveLine(ctx context.Context, invoiceID, itemID, newItemID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE invoice_items SET inventory_item_id=$3
WHERE invoice_id=$1 AND inventory_item_id=$2`, invoiceID, itemID, newItemID)
	return err
}

func (r *txRepository) DeleteLine(ctx context.Context, invoiceID, itemID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id=$1 AND inventory_item_id=$2`, invoiceID, itemID)
	return err
}

func (r *txRepository) DeleteInvoiceLines(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id=$1`, invoiceID)
	return err
}

func (r *txRepository) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, invoiceID)
	return err
}
