package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the authenticated principal behind a browser binding.
// Profile management lives elsewhere; only the fields the SSO flows and the
// sreg/ax attribute payloads need are kept here.
type User struct {
	UserID       uuid.UUID
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName builds the sreg fullname attribute. Either part may be empty.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}
