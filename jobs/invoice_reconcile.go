package jobs

import (
	"context"
	"log/slog"
	"math"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Invoice totals are entered by hand and are not derived from line items, so
// the two drift. The reconciler reports divergence instead of rewriting
// totals; fixing a total is a deliberate human action.
type Reconciler struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(pool *pgxpool.Pool, logger *slog.Logger) *Reconciler {
	return &Reconciler{pool: pool, logger: logger}
}

type divergence struct {
	InvoiceID   int64
	StoredTotal float64
	LineTotal   float64
}

// Handle processes TaskInvoiceReconcile tasks.
func (r *Reconciler) Handle(ctx context.Context, t *asynq.Task) error {
	diverged, err := r.sweep(ctx)
	if err != nil {
		return err
	}
	if len(diverged) == 0 {
		r.logger.Info("invoice reconcile sweep clean")
		return nil
	}
	for _, d := range diverged {
		r.logger.Warn("invoice total diverges from line items",
			slog.Int64("invoice_id", d.InvoiceID),
			slog.Float64("stored_total", d.StoredTotal),
			slog.Float64("line_total", d.LineTotal),
		)
	}
	return nil
}

func (r *Reconciler) sweep(ctx context.Context) ([]divergence, error) {
	rows, err := r.pool.Query(ctx, `SELECT i.id, i.total, COALESCE(SUM(ii.quantity * inv.price), 0) AS line_total
FROM invoices i
LEFT JOIN invoice_items ii ON ii.invoice_id = i.id
LEFT JOIN inventory_items inv ON inv.id = ii.inventory_item_id
WHERE NOT i.submitted
GROUP BY i.id, i.total`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	diverged := []divergence{}
	for rows.Next() {
		var d divergence
		if err := rows.Scan(&d.InvoiceID, &d.StoredTotal, &d.LineTotal); err != nil {
			return nil, err
		}
		if math.Abs(d.StoredTotal-d.LineTotal) > 0.005 {
			diverged = append(diverged, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return diverged, nil
}
