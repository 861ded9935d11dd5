// Package identity resolves the caller behind each API request into a user,
// organization, and role, and carries the result on the request context.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUnauthenticated indicates no identity is attached to the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the resolved caller of a request.
type Identity struct {
	UserID         string    `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           string    `json:"role"`
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity attached to ctx.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Organization returns the organization of the identity attached to ctx.
func Organization(ctx context.Context) (uuid.UUID, error) {
	id, ok := FromContext(ctx)
	if !ok || id.OrganizationID == uuid.Nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id.OrganizationID, nil
}
