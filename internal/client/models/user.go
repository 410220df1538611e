// Package models defines the client-side data model of DrinkShelf accounts.
package models

import "time"

// User is the authenticated identity as returned by the API.
type User struct {
	// ID is the opaque, immutable identifier assigned by the server.
	ID string

	// Username is unique and fixed at registration.
	Username string

	// Email is unique; it can be changed by a profile update.
	Email string

	// DisplayName and Bio are optional profile fields.
	DisplayName string
	Bio         string

	CreatedAt time.Time
	// UpdatedAt advances on every mutation of the account.
	UpdatedAt time.Time
}

// Clone returns a copy of u, or nil when u is nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// ProfileUpdate carries the mutable profile fields. Nil fields are left
// unchanged by the server.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.DisplayName == nil && p.Bio == nil
}

// AuthResult is the outcome of a successful credential exchange or account
// creation: the user record and the opaque access token proving the session.
type AuthResult struct {
	User  *User
	Token string
}
