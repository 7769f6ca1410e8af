package session

import (
	"context"
	"errors"
)

// ErrNoChange is returned by an update func to leave the stored state untouched.
var ErrNoChange = errors.New("session: no change")

// UpdateFunc mutates state in place. Returning ErrNoChange skips the write;
// any other error aborts the update and is returned to the caller.
type UpdateFunc func(state *ViewState) error

// Store port (interface untuk persistence ViewState)
type Store interface {
	// Get returns the state for id, or a zero (Idle) state when none exists.
	Get(ctx context.Context, id string) (ViewState, error)
	// Update runs fn atomically against the current state and returns the result.
	Update(ctx context.Context, id string, fn UpdateFunc) (ViewState, error)
}
