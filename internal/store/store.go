package store

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/command-center/internal/model"
)

// InvalidTransitionError reports a triage status change the state machine
// does not allow (e.g. snoozing an archived notification).
type InvalidTransitionError struct {
	From model.TriageStatus
	To   model.TriageStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid triage transition %s -> %s", e.From, e.To)
}

// ListOptions controls the notification listing query.
type ListOptions struct {
	// Limit caps the number of rows returned; <= 0 means 50.
	Limit int

	// Status restricts the listing to a single triage status. When nil,
	// everything except archived is returned.
	Status *model.TriageStatus
}

// Store is the persistence interface for notifications and their triage
// state. Implementations must serialize their own internal state: one
// logical write transaction per upsert or status change.
type Store interface {
	// Upsert inserts a notification or refreshes an existing row with
	// the same (source, source_id). Re-observation updates content
	// fields only; id, triage status, and snooze deadline are never
	// touched by a refresh.
	Upsert(ctx context.Context, n model.Notification) error

	// SetStatus applies a user triage transition. It returns false when
	// the id is unknown, and an InvalidTransitionError when the state
	// machine forbids the change. Snoozing requires snoozedUntil; every
	// other target status clears it.
	SetStatus(
		ctx context.Context,
		id string,
		status model.TriageStatus,
		snoozedUntil *time.Time,
	) (bool, error)

	// List returns notifications ordered by timestamp descending.
	// Snoozed rows whose deadline has passed are flipped back to unread
	// as part of the same call.
	List(ctx context.Context, opts ListOptions) ([]model.Notification, error)

	// GetByID returns a single notification, or (nil, nil) when absent.
	GetByID(ctx context.Context, id string) (*model.Notification, error)

	Close() error
}
