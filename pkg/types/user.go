package types

import "time"

// UserRole represents the different user roles in the portal
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleBHW     UserRole = "bhw"
	RoleBNS     UserRole = "bns"
	RoleMidwife UserRole = "midwife"
	RoleMother  UserRole = "mother"
)

// IsFieldWorker reports whether the role submits change requests
// instead of editing canonical records directly.
func (r UserRole) IsFieldWorker() bool {
	return r == RoleBHW || r == RoleBNS || r == RoleMidwife
}

// User represents a portal user
type User struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         UserRole  `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the identity acting on a record, resolved from the auth token
type Actor struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// DisplayName returns the actor's human-readable identity for audit details
func (a Actor) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	return a.Username
}

// Credentials represents login credentials
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthToken represents an authentication token response
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
