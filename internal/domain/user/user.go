package user

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the identity and credential record. Secret fields never serialise.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	PasswordHash      string     `json:"-"`
	PhoneNumber       *string    `json:"phoneNumber,omitempty"`
	Address           *string    `json:"address,omitempty"`
	Role              Role       `json:"role"`
	Verified          bool       `json:"verified"`
	Active            bool       `json:"active"`
	HashedToken       *string    `json:"-"`
	TokenExpiresAt    *time.Time `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`
	RegisteredAt      time.Time  `json:"registeredAt"`
}

// NewUser is what the store needs to insert a row. The store assigns the ID.
type NewUser struct {
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	PhoneNumber    *string
	Address        *string
	Role           Role
	HashedToken    string
	TokenExpiresAt time.Time
}

// Public is the sanitized view returned to callers.
type Public struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhoneNumber  *string   `json:"phoneNumber,omitempty"`
	Address      *string   `json:"address,omitempty"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registeredAt"`
}

func (u User) Public() Public {
	return Public{
		ID:           u.ID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		PhoneNumber:  u.PhoneNumber,
		Address:      u.Address,
		Role:         u.Role,
		Verified:     u.Verified,
		Active:       u.Active,
		RegisteredAt: u.RegisteredAt,
	}
}

// HasTokenAt reports whether the token slot holds a token usable at now.
func (u User) HasTokenAt(now time.Time) bool {
	return u.HashedToken != nil && u.TokenExpiresAt != nil && now.Before(*u.TokenExpiresAt)
}

// PasswordChangedAfter reports whether a session issued at issuedAt predates
// the last password change. Comparison is at millisecond precision, which is
// what session tokens carry.
func (u User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.UnixMilli() > issuedAt.UnixMilli()
}

// NormalizeEmail is applied before every store access so that uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
