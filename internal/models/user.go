package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles and approval states for local dashboard accounts.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

// User is a local dashboard account (username/password), independent of
// the Google identity used for Drive access. Permissions hold the
// uploader emails and page names this user may view.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Password     string    `db:"password" json:"-"`
	Role         string    `db:"role" json:"role"`
	StatusAccess string    `db:"status_access" json:"statusaccess"`
	Permissions  []string  `db:"permissions" json:"permissions"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the account has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
