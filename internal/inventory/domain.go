// Package inventory manages the parts catalog referenced by invoice line
// items.
package inventory

import (
	"fmt"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// Item is a catalog part. Items live independently of invoices; deleting an
// item cascades to the line items referencing it.
type Item struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
}

// Patch enumerates the mutable item fields.
type Patch struct {
	Name        *string
	Description *string
	Price       *float64
}

// SearchFilter narrows catalog searches; empty fields match everything.
type SearchFilter struct {
	Name        string
	Description string
	Limit       int
	Offset      int
}

// ErrItemNotFound is returned when an id does not resolve to a catalog item.
var ErrItemNotFound = fmt.Errorf("%w: inventory item not found", httpx.ErrNotFound)
