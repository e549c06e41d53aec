package invoice

import "context"

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	Update(ctx context.Context, id int64, patch Patch) (Invoice, error)
	Lines(ctx context.Context, invoiceID int64) ([]LineItem, error)
}

// TxRepository exposes the transactional operations the ledger needs. Every
// ledger mutation runs entirely inside one transaction so a partial failure
// rolls back cleanly.
type TxRepository interface {
	InvoiceExists(ctx context.Context, id int64) (bool, error)
	ItemExists(ctx context.Context, id int64) (bool, error)
	GetLineForUpdate(ctx context.Context, invoiceID, itemID int64) (LineItem, error)
	AddLineQuantity(ctx context.Context, invoiceID, itemID int64, delta int32) (int32, error)
	MoveLine(ctx context.Context, invoiceID, itemID, newItemID int64) error
	DeleteLine(ctx context.Context, invoiceID, itemID int64) error
	DeleteInvoiceLines(ctx context.Context, invoiceID int64) error
	DeleteInvoice(ctx context.Context, invoiceID int64) error
}
