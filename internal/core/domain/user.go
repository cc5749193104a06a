package domain

import "time"

// UserType distinguishes the two marketplace roles.
type UserType string

const (
	UserTypeClient   UserType = "client"
	UserTypeProvider UserType = "provider"
)

// User is the client-side copy of the account. Balance is a display cache;
// the server remains the source of truth.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"fullName"`
	Email    string   `json:"email"`
	NIF      string   `json:"nif"`
	UserType UserType `json:"userType"`
	Balance  float64  `json:"balance"`
	IsActive bool     `json:"isActive"`
}

// IsProvider reports whether the user publishes services.
func (u *User) IsProvider() bool { return u != nil && u.UserType == UserTypeProvider }

// Session is the bearer token and its expiry. A present token does not
// guarantee validity; it must be verified against the server.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether the session has a known expiry that has passed.
// A zero ExpiresAt means the expiry is unknown.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// PersistedSession is the single user-data object kept between runs.
type PersistedSession struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	SavedAt   time.Time `json:"savedAt"`
}

// RegisterInput carries account creation data.
type RegisterInput struct {
	FullName string   `json:"fullName" validate:"required,min=3,max=100"`
	Email    string   `json:"email"    validate:"required,email"`
	NIF      string   `json:"nif"      validate:"required,numeric,len=9"`
	Password string   `json:"password" validate:"required,min=6"`
	UserType UserType `json:"userType" validate:"required,oneof=client provider"`
}

// LoginInput carries credentials.
type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is what a successful login or registration yields.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
