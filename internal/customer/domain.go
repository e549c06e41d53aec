// Package customer manages customer accounts and their credential-based
// login.
package customer

import (
	"fmt"

	"github.com/torqueshop/torqueshop/internal/platform/httpx"
)

// Customer is an account that owns service tickets and invoices. The
// password hash never leaves the package boundary in responses.
type Customer struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	PasswordHash string `json:"-"`
}

// Patch enumerates the mutable customer fields. PasswordHash carries an
// already-hashed credential.
type Patch struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Phone        *string
	Address      *string
	PasswordHash *string
}

var (
	ErrCustomerNotFound = fmt.Errorf("%w: customer not found", httpx.ErrNotFound)
	ErrEmailInUse       = fmt.Errorf("%w: email already in use", httpx.ErrConflict)
	// ErrBadCredentials covers both unknown email and wrong password so the
	// response does not leak which one failed.
	ErrBadCredentials = fmt.Errorf("%w: invalid email or password", httpx.ErrUnauthenticated)
	// ErrSelfDelete trips when an admin targets their own record through the
	// administrative delete endpoint.
	ErrSelfDelete = fmt.Errorf("%w: cannot delete your own account", httpx.ErrForbidden)
)
