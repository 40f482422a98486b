package model

import "time"

// Role is the privilege level of a Principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Principal is an identity record as stored in the `users` table.
// PasswordHash is never serialized outward.
//
// Fields:
//
//	ID           – users.id, immutable once created.
//	Username     – users.user_name, unique.
//	Email        – users.email, unique.
//	Role         – users.role (user | admin).
//	PasswordHash – bcrypt hash in users.password.
type Principal struct {
	ID           uint64    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Claims returns the token snapshot of p. Role is always included.
func (p Principal) Claims() Claims {
	return Claims{Sub: p.ID, Username: p.Username, Email: p.Email, Role: p.Role}
}

// NewPrincipal carries the fields needed to create a Principal. Password is
// the plain text; the identity store hashes it.
type NewPrincipal struct {
	Username string
	Email    string
	Password string
	Role     Role
}
