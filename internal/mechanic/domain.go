// Package mechanic manages staff accounts. A mechanic with the admin flag
// set logs in as an administrator; there is no separate admin collection.
package mechanic

import (
	"fmt"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// Mechanic is a staff account.
type Mechanic struct {
	ID           int64   `json:"id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Salary       float64 `json:"salary"`
	Address      string  `json:"address,omitempty"`
	IsAdmin      bool    `json:"is_admin"`
	PasswordHash string  `json:"-"`
}

// Patch enumerates the mutable mechanic fields. IsAdmin may only be set by
// an administrator; the service drops it for anyone else.
type Patch struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Salary       *float64
	Address      *string
	IsAdmin      *bool
	PasswordHash *string
}

// RankedMechanic pairs a mechanic with their ticket assignment count for
// the leaderboard endpoint.
type RankedMechanic struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	TicketCount int64  `json:"ticket_count"`
}

var (
	ErrMechanicNotFound = fmt.Errorf("%w: mechanic not found", httpx.ErrNotFound)
	ErrEmailInUse       = fmt.Errorf("%w: email already in use", httpx.ErrConflict)
	ErrBadCredentials   = fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthenticated)
	ErrSelfDelete       = fmt.Errorf("%w: cannot delete your own account", httpx.ErrForbidden)
)
