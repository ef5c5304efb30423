// ABOUTME: Authentication context for tracking the owner through request handlers
// ABOUTME: Provides WithOwner/OwnerFromContext for propagating identity via context

package auth

import "context"

// ownerContextKey is the key type for storing the owner ID in context.Context.
type ownerContextKey struct{}

// WithOwner returns a new context with the owner ID attached.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, ownerID)
}

// OwnerFromContext retrieves the owner ID from the context, returning ""
// if not present.
func OwnerFromContext(ctx context.Context) string {
	ownerID, _ := ctx.Value(ownerContextKey{}).(string)
	return ownerID
}

// MustOwnerFromContext retrieves the owner ID, panicking if not present.
// Only for handlers that sit behind the auth middleware.
func MustOwnerFromContext(ctx context.Context) string {
	ownerID := OwnerFromContext(ctx)
	if ownerID == "" {
		panic("auth: owner not found in context")
	}
	return ownerID
}
