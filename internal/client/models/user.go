// Package models defines the client-side data models exchanged with the
// invoice service and kept in the local session store.
package models

import "time"

// User is the profile returned by the invoice service on login.
type User struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LoginResult is the body of a successful POST /login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// RefreshResult is the body of a successful POST /refresh.
type RefreshResult struct {
	AccessToken string `json:"access_token"`
}

// Credentials is the body of POST /login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
