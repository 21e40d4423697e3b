package activation

import (
	"context"
	"strings"
)

// ConflictChecker finds records already claiming a candidate email,
// either as confirmed address or as pending address.
type ConflictChecker struct {
	store UserStore
}

// NewConflictChecker creates a ConflictChecker
func NewConflictChecker(store UserStore) *ConflictChecker {
	return &ConflictChecker{store: store}
}

// Check returns the conflicting user or nil. Store failures are returned
// as store errors and must halt the guarded operation.
func (c *ConflictChecker) Check(ctx context.Context, candidate string) (*User, error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return nil, nil
	}

	user, err := c.store.FindByEmail(ctx, candidate)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, storeError(err, "Could not load users")
	}

	return user, nil
}
