package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/torqueshop/torqueshop/internal/platform/db"
)

// Repository persists catalog items in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, item Item) (Item, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO inventory_items (name, description, price)
VALUES ($1,$2,$3) RETURNING id`, item.Name, item.Description, item.Price).Scan(&item.ID)
	return item, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, price FROM inventory_items WHERE id=$1`, id).
		Scan(&item.ID, &item.Name, &item.Description, &item.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Item, int, error) {
	if limit <= 0 {
		limit = 20
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, price FROM inventory_items
ORDER BY id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Search matches name/description substrings case-insensitively.
func (r *Repository) Search(ctx context.Context, filter SearchFilter) ([]Item, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, price FROM inventory_items
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
  AND ($2 = '' OR description ILIKE '%' || $2 || '%')
ORDER BY name ASC LIMIT $3 OFFSET $4`, filter.Name, filter.Description, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanItems(rows)
}

func (r *Repository) Update(ctx context.Context, id int64, patch Patch) (Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `UPDATE inventory_items SET
name = COALESCE($2, name),
description = COALESCE($3, description),
price = COALESCE($4, price)
WHERE id=$1
RETURNING id, name, description, price`, id, patch.Name, patch.Description, patch.Price).
		Scan(&item.ID, &item.Name, &item.Description, &item.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// Delete removes the item and its dependent invoice lines in one
// transaction.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE inventory_item_id=$1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
