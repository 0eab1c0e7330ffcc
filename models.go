package main

import (
	"errors"
	"strings"
	"time"
)

// User represents an account principal. PasswordHash is the bcrypt output of
// whatever plaintext the user last supplied; the plaintext itself is never
// stored or logged.
type User struct {
	ID           string
	Name         string
	Email        string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the externally visible projection of a User. The password
// hash and issued tokens never leave the service.
type PublicUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Username: u.Username, Email: u.Email}
}

// AuthToken is an outstanding bearer token issued to a user. A user may hold
// several at once (one per session); deleting the user removes them all.
type AuthToken struct {
	Token    string
	UserID   string
	IssuedAt time.Time
}

const (
	maxUsernameLen = 5
	minPasswordLen = 8
)

// normalizeEmail lowercases and trims an email address so uniqueness checks
// are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateNewUser checks the registration fields against the account schema.
func validateNewUser(name, email, username, password string) error {
	switch {
	case name == "":
		return errors.New("name is required")
	case email == "":
		return errors.New("email is required")
	case username == "":
		return errors.New("username is required")
	case len(username) > maxUsernameLen:
		return errors.New("username must be at most 5 characters")
	case len(password) < minPasswordLen:
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
