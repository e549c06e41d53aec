// Package invoice manages invoices and their part line items. A line item is
// the quantity-bearing association between one invoice and one inventory
// item; at most one line exists per pair.
package invoice

import (
	"fmt"
	"time"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// Invoice is an invoice header. Total is set by the clerk, not derived from
// line items; the reconcile job reports divergence.
type Invoice struct {
	ID              int64     `json:"id"`
	CustomerID      int64     `json:"customer_id"`
	ServiceTicketID int64     `json:"service_ticket_id"`
	Total           float64   `json:"total"`
	Submitted       bool      `json:"submitted"`
	CreatedAt       time.Time `json:"created_at"`
}

// LineItem associates an inventory item with an invoice.
type LineItem struct {
	InvoiceID       int64 `json:"invoice_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Quantity        int32 `json:"quantity"`
}

// Patch enumerates the invoice fields a caller may change. Unknown fields
// are rejected at the validation boundary, not copied by reflection.
type Patch struct {
	CustomerID      *int64
	ServiceTicketID *int64
	Total           *float64
	Submitted       *bool
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	CustomerID int64 // 0 means all customers
	Limit      int
	Offset     int
}

// Domain failures, each classified into exactly one taxonomy kind.
var (
	ErrInvoiceNotFound = fmt.Errorf("%w: invoice not found", httpx.ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("%w: inventory item not found", httpx.ErrNotFound)
	ErrLineNotFound    = fmt.Errorf("%w: invoice item not found", httpx.ErrNotFound)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be a positive integer", httpx.ErrInvalidArgument)
	ErrDuplicateLine   = fmt.Errorf("%w: invoice already has a line for that inventory item", httpx.ErrConflict)
)
