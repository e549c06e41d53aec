package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/torqueshop/torqueshop/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates invoice and line-item operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create inserts a new invoice header.
func (s *Service) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	return s.repo.Create(ctx, inv)
}

// Get returns one invoice.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices plus the unfiltered total for pagination.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	return s.repo.List(ctx, filter)
}

// Update applies an explicit patch to an invoice header.
func (s *Service) Update(ctx context.Context, id int64, patch Patch) (Invoice, error) {
	return s.repo.Update(ctx, id, patch)
}

// Lines returns the invoice's line items.
func (s *Service) Lines(ctx context.Context, invoiceID int64) ([]LineItem, error) {
	return s.repo.Lines(ctx, invoiceID)
}

// AddItem attaches quantity units of an inventory item to an invoice. When a
// line for the pair already exists its quantity is incremented inside the
// upsert itself, so two concurrent adds for the same pair both land even when
// neither sees a row to lock. Returns the resulting quantity.
func (s *Service) AddItem(ctx context.Context, actorID, invoiceID, itemID int64, quantity int32) (int32, error) {
	if quantity < 1 {
		return 0, ErrInvalidQuantity
	}
	var result int32
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireInvoice(ctx, tx, invoiceID); err != nil {
			return err
		}
		if err := requireItem(ctx, tx, itemID); err != nil {
			return err
		}
		qty, err := tx.AddLineQuantity(ctx, invoiceID, itemID, quantity)
		if err != nil {
			return err
		}
		result = qty
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.record(ctx, actorID, "invoice:add_item", invoiceID, map[string]any{
		"inventory_item_id": itemID,
		"quantity":          quantity,
		"resulting":         result,
	})
	return result, nil
}

// ReplaceItem points an existing line at a different inventory item,
// preserving its quantity. A line already present for the destination pair
// is a conflict; merging two lines silently was judged too surprising for
// an update call.
func (s *Service) ReplaceItem(ctx context.Context, actorID, invoiceID, itemID, newItemID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetLineForUpdate(ctx, invoiceID, itemID); err != nil {
			return err
		}
		if err := requireItem(ctx, tx, newItemID); err != nil {
			return err
		}
		if _, err := tx.GetLineForUpdate(ctx, invoiceID, newItemID); err == nil {
			return ErrDuplicateLine
		} else if !errors.Is(err, ErrLineNotFound) {
			return err
		}
		return tx.MoveLine(ctx, invoiceID, itemID, newItemID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "invoice:replace_item", invoiceID, map[string]any{
		"inventory_item_id": itemID,
		"new_item_id":       newItemID,
	})
	return nil
}

// RemoveItem deletes the line for the pair.
func (s *Service) RemoveItem(ctx context.Context, actorID, invoiceID, itemID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetLineForUpdate(ctx, invoiceID, itemID); err != nil {
			return err
		}
		return tx.DeleteLine(ctx, invoiceID, itemID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "invoice:remove_item", invoiceID, map[string]any{
		"inventory_item_id": itemID,
	})
	return nil
}

// Delete removes the invoice and all of its lines in one transaction.
func (s *Service) Delete(ctx context.Context, actorID, invoiceID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireInvoice(ctx, tx, invoiceID); err != nil {
			return err
		}
		if err := tx.DeleteInvoiceLines(ctx, invoiceID); err != nil {
			return err
		}
		return tx.DeleteInvoice(ctx, invoiceID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "invoice:delete", invoiceID, nil)
	return nil
}

func requireInvoice(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.InvoiceExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvoiceNotFound
	}
	return nil
}

func requireItem(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.ItemExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", invoiceID),
		Meta:     meta,
	})
}
