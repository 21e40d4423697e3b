package activation

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var userIDCtxKey = &contextKey{"user_id"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithUserIDContext sets the authenticated user id in the given context
func WithUserIDContext(r context.Context, id string) context.Context {
	return context.WithValue(r, userIDCtxKey, id)
}

// UserIDFromContext finds the authenticated user id from the context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	raw, ok := ctx.Value(userIDCtxKey).(string)
	return raw, ok && raw != ""
}

// ResolveContextUser returns the user placed in ctx by the host auth
// middleware, loading it from store when only the id is present.
func ResolveContextUser(ctx context.Context, store UserStore) (*User, error) {
	if user, ok := FromContext(ctx); ok {
		return user, nil
	}

	id, ok := UserIDFromContext(ctx)
	if !ok || store == nil {
		return nil, ErrUserNotFound
	}

	user, err := store.FindByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(err, "Could not load user")
	}
	return user, nil
}
