package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// errInvalidBody marks a request whose credential payload could not be
// parsed. It maps to 400, unlike credential failures which map to 401.
var errInvalidBody = errors.New("invalid request body")

// Strategy is a named authentication mechanism. Route wiring selects a
// strategy per endpoint; all of them return either the authenticated user
// or an error that never reveals which internal check failed.
type Strategy interface {
	Name() string
	Authenticate(r *http.Request) (*User, error)
}

// StrategyRegistry holds the configured strategies. It is built once at
// startup and handed to route wiring by value; nothing registers into it
// afterwards.
type StrategyRegistry struct {
	strategies map[string]Strategy
}

func NewStrategyRegistry(strategies ...Strategy) *StrategyRegistry {
	m := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		m[s.Name()] = s
	}
	return &StrategyRegistry{strategies: m}
}

// Get returns the named strategy, or nil when none is configured.
func (r *StrategyRegistry) Get(name string) Strategy {
	return r.strategies[name]
}

// dummyHash is compared against when the email is unknown, so the handler
// spends roughly the same time whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)

// LocalStrategy authenticates an email/password pair carried in the request
// body.
type LocalStrategy struct {
	store Store
}

func NewLocalStrategy(store Store) *LocalStrategy {
	return &LocalStrategy{store: store}
}

func (s *LocalStrategy) Name() string { return "local" }

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *LocalStrategy) Authenticate(r *http.Request) (*User, error) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errInvalidBody
	}
	if req.Email == "" || req.Password == "" {
		return nil, errInvalidBody
	}
	return s.authenticate(r.Context(), req.Email, req.Password)
}

func (s *LocalStrategy) authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		// Burn a comparison anyway, then fail the same way a wrong
		// password does.
		_, _ = comparePassword(string(dummyHash), password)
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := comparePassword(user.PasswordHash, password)
	if err != nil {
		// Stored hash is unusable; that is a server fault, not a
		// credential failure.
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// BearerStrategy authenticates a signed bearer token by delegating to the
// auth gate's verify-then-resolve path.
type BearerStrategy struct {
	gate *AuthGate
}

func NewBearerStrategy(gate *AuthGate) *BearerStrategy {
	return &BearerStrategy{gate: gate}
}

func (s *BearerStrategy) Name() string { return "bearer" }

func (s *BearerStrategy) Authenticate(r *http.Request) (*User, error) {
	return s.gate.Authenticate(r)
}
