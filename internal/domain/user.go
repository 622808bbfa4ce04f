package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// UnlimitedCredits is the reserved balance stored for admin accounts. The
// ledger never trusts the number itself; privilege is decided by role.
const UnlimitedCredits = 1_000_000_000

// User represents an account that owns photos and spends credits.
type User struct {
	ID        string
	Email     string
	Role      UserRole
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPrivileged reports whether the user bypasses credit deduction.
func (u User) IsPrivileged() bool {
	return u.Role == UserRoleAdmin
}
