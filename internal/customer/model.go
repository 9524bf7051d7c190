package customer

import (
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

var (
	ErrNotFound    = errors.New("customer not found")
	ErrEmailExists = errors.New("customer with this email already exists")
	// ErrDirectoryUnavailable means the directory could not be reached or answered unexpectedly.
	ErrDirectoryUnavailable = errors.New("customer directory unavailable")
)

type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Phone     string    `json:"phone" db:"phone"`
	Address   string    `json:"address" db:"address"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Draft carries the fields needed to create a customer. The directory assigns the identity.
type Draft struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// NormalizeEmail is the canonical form of the reconciliation key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
