package main

import "context"

// principalKey is the context key type for the authenticated user.
type principalKey struct{}

// withPrincipal attaches the authenticated user to the request context.
// This is request-lifetime state; it is never shared across requests.
func withPrincipal(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

// principalFrom returns the authenticated user from the context, or nil if
// the request did not pass through the auth gate.
func principalFrom(ctx context.Context) *User {
	u, _ := ctx.Value(principalKey{}).(*User)
	return u
}
