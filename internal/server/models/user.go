// Package models defines the server-side records persisted by the credential
// store and their client-facing projections.
package models

import "time"

// User is a persisted identity record. Password always holds a bcrypt hash.
type User struct {
	ID        string
	Username  string
	Password  string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// PublicUser is the serialized form of a User. The password never leaves
// the server.
type PublicUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// Public projects u for clients.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}

// Envelope wraps user-affecting responses as {"user": {...}}.
type Envelope struct {
	User PublicUser `json:"user"`
}

// Page is one page of a paginated listing.
type Page struct {
	Rows       []PublicUser `json:"rows"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	PageSize   int          `json:"pageSize"`
	TotalPages int          `json:"totalPages"`
}
