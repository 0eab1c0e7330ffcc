package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Authentication failure taxonomy. Bearer-auth clients see every member as
// the same opaque 401; the distinctions exist for logging and tests only.
var (
	ErrMissingCredential = errors.New("missing bearer credential")
	ErrMalformedToken    = errors.New("malformed token")
	ErrSignatureInvalid  = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
	ErrPrincipalNotFound = errors.New("principal not found")

	// ErrUnauthenticated is the collapsed local-strategy failure. Unknown
	// email and wrong password both surface as this one error so callers
	// cannot enumerate accounts.
	ErrUnauthenticated = errors.New("invalid email or password")

	// ErrStoreUnavailable marks a collaborator fault, not an auth failure.
	// It maps to a 5xx response, never a 401.
	ErrStoreUnavailable = errors.New("user store unavailable")
)

// ErrNotFound is returned by stores when a row is absent.
var ErrNotFound = errors.New("not found")

// DuplicateError reports a uniqueness violation on a specific user field.
// Registration surfaces the field to the client; it is a recoverable
// condition, not a crash.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string { return e.Field + " already exists" }

// APIError is the JSON error envelope.
type APIError struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIError{Error: msg})
}

func writeFieldError(w http.ResponseWriter, status int, msg, field string) {
	writeJSON(w, status, APIError{Error: msg, Field: field})
}
