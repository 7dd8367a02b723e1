package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an authenticated user account.
type User struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Email          string
	PasswordHash   string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
