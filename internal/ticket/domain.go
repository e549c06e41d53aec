// Package ticket manages service tickets and their mechanic assignments.
package ticket

import (
	"fmt"
	"time"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// Ticket is a unit of shop work booked for a customer vehicle.
type Ticket struct {
	ID                 int64     `json:"id"`
	CustomerID         int64     `json:"customer_id"`
	ServiceDescription string    `json:"service_description"`
	Price              float64   `json:"price"`
	VIN                string    `json:"vin"`
	ServiceDate        time.Time `json:"service_date"`
}

// Patch enumerates the mutable ticket fields.
type Patch struct {
	CustomerID         *int64
	ServiceDescription *string
	Price              *float64
	VIN                *string
	ServiceDate        *time.Time
}

// ListFilter narrows ticket listings. A zero CustomerID matches all
// customers.
type ListFilter struct {
	CustomerID int64
	Limit      int
	Offset     int
}

// AssignedMechanic is the projection of a mechanic exposed on ticket
// assignment listings.
type AssignedMechanic struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

var (
	ErrTicketNotFound   = fmt.Errorf("%w: service ticket not found", httpx.ErrNotFound)
	ErrMechanicNotFound = fmt.Errorf("%w: mechanic not found", httpx.ErrNotFound)
	ErrNoMechanics      = fmt.Errorf("%w: no mechanics provided", httpx.ErrInvalidArgument)
)
