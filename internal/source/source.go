package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/command-center/internal/model"
)

// ErrUnsupported is returned by operations a source does not implement
// (e.g. replying on a read-only source). Callers should check CanReply
// before invoking Reply rather than relying on this error.
var ErrUnsupported = errors.New("operation not supported by this source")

// CursorInvalidError indicates the vendor rejected the adapter's sync
// cursor (expired history id, stale delta link). The adapter clears its
// cursor and performs a full resync on the next cycle; the error never
// reaches users. Vendor clients classify this from status codes, not from
// error-message text.
type CursorInvalidError struct {
	Source  model.Source
	Message string
}

func (e *CursorInvalidError) Error() string {
	return fmt.Sprintf("sync cursor invalid (%s): %s", e.Source, e.Message)
}

// IsCursorInvalid reports whether err (or any error in its chain) is a
// CursorInvalidError.
func IsCursorInvalid(err error) bool {
	var cursorErr *CursorInvalidError
	return errors.As(err, &cursorErr)
}

// ConversionError wraps a failure to map a single vendor item to the
// canonical notification shape. Adapters log it and skip the item; one
// malformed payload never aborts a batch.
type ConversionError struct {
	Source   model.Source
	SourceID string
	Err      error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf(
		"converting %s item %s: %v", e.Source, e.SourceID, e.Err,
	)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// NotFoundError indicates an action could not be routed: no adapter
// matches the requested (source, account) pair.
type NotFoundError struct {
	Source  model.Source
	Account string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no adapter for %s:%s", e.Source, e.Account)
}

// IsNotFound reports whether err (or any error in its chain) is a
// NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// EmitFunc delivers a converted notification downstream (persist, then
// broadcast). Adapters call it once per new item observed by Listen.
type EmitFunc func(ctx context.Context, n model.Notification)

// TokenFunc resolves the current credential for an adapter. Connect calls
// it on every attempt so a token refreshed out of band is picked up by
// the next reconnect.
type TokenFunc func() (string, error)

// Source defines the contract every integration implements. One instance
// exists per configured account or workspace; instances never share
// cursors or caches.
type Source interface {
	// Type returns the source identifier.
	Type() model.Source

	// Account returns the configured account/workspace this instance
	// watches.
	Account() string

	// Connect establishes or validates credentials and any session
	// handle. It is idempotent and does not start emitting.
	Connect(ctx context.Context) error

	// Disconnect releases the session handle. Safe to call when not
	// connected.
	Disconnect(ctx context.Context) error

	// FetchRecent returns a one-shot snapshot for initial load, seeding
	// the sync cursor if absent. Snapshots may repeat items already
	// emitted this session; the store deduplicates on upsert and only
	// Listen suppresses re-emits.
	FetchRecent(ctx context.Context, limit int) ([]model.Notification, error)

	// Listen polls the source until ctx is cancelled, emitting each new
	// item and advancing the cursor every cycle, found changes or not.
	// A cursor-invalidity response clears the cursor so the next cycle
	// performs a full resync. Any other error returns to the caller,
	// which owns reconnect policy.
	Listen(ctx context.Context, emit EmitFunc) error

	// Reply sends a reply to the item identified by sourceID. Sources
	// without write capability return ErrUnsupported.
	Reply(ctx context.Context, sourceID, body string) error

	// CanReply reports whether this source supports Reply.
	CanReply() bool
}
