// Package outlook watches a Microsoft 365 inbox through Graph delta
// queries and supports comment-style replies.
package outlook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// Adapter is one Outlook account's integration. Its sync cursor is the
// Graph delta link for the inbox folder.
type Adapter struct {
	account      string
	token        source.TokenFunc
	client       *Client
	pollInterval time.Duration
	log          *slog.Logger

	mu        sync.Mutex
	deltaLink string
}

// New creates an adapter for one Outlook account.
func New(
	account string,
	token source.TokenFunc,
	pollInterval time.Duration,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		account:      account,
		token:        token,
		client:       newClient(),
		pollInterval: pollInterval,
		log:          log.With("source", "outlook", "account", account),
	}
}

func (a *Adapter) Type() model.Source { return model.SourceOutlook }
func (a *Adapter) Account() string    { return a.account }
func (a *Adapter) CanReply() bool     { return true }

// Connect resolves the current token and validates it against /me. A 401
// during Listen surfaces as an error, and the next Connect picks up a
// refreshed token from the credential layer.
func (a *Adapter) Connect(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return fmt.Errorf("resolving outlook credentials for %s: %w", a.account, err)
	}
	a.client.SetToken(token)

	if _, err := a.client.Me(ctx); err != nil {
		return err
	}
	return nil
}

// Disconnect is a no-op; the client holds no persistent session.
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

// FetchRecent returns the newest inbox messages and seeds the delta
// cursor at the current mailbox state when absent, so Listen only sees
// changes from this point on.
func (a *Adapter) FetchRecent(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	messages, err := a.client.ListInbox(ctx, limit)
	if err != nil {
		return nil, err
	}

	notifications := make([]model.Notification, 0, len(messages))
	for _, msg := range messages {
		notifications = append(notifications, a.convert(&msg))
	}

	if a.cursor() == "" {
		if err := a.seedCursor(ctx); err != nil {
			a.log.Warn("seeding delta cursor failed", "error", err)
		}
	}

	return notifications, nil
}

// Listen polls the delta endpoint until ctx is cancelled. An expired
// delta link clears the cursor and reseeds on the next cycle instead of
// erroring out.
func (a *Adapter) Listen(ctx context.Context, emit source.EmitFunc) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		if err := a.poll(ctx, emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) poll(ctx context.Context, emit source.EmitFunc) error {
	cursor := a.cursor()
	if cursor == "" {
		return a.seedCursor(ctx)
	}

	messages, next, err := a.client.Delta(ctx, cursor)
	if err != nil {
		if source.IsCursorInvalid(err) {
			a.log.Warn("delta link expired, scheduling resync")
			a.setCursor("")
			return nil
		}
		return err
	}
	a.setCursor(next)

	for _, msg := range messages {
		if msg.Removed != nil || msg.ID == "" {
			continue
		}
		emit(ctx, a.convert(&msg))
	}
	return nil
}

// Reply sends a comment-style reply to the given message.
func (a *Adapter) Reply(ctx context.Context, sourceID, body string) error {
	return a.client.Reply(ctx, sourceID, body)
}

// convert maps a Graph message to the canonical shape.
func (a *Adapter) convert(msg *graphMessage) model.Notification {
	n := model.NewNotification(model.SourceOutlook, a.account, msg.ID)
	n.Type = model.TypeEmail
	n.Body = msg.BodyPreview
	n.ThreadID = msg.ConversationID

	n.Title = msg.Subject
	if n.Title == "" {
		n.Title = "(no subject)"
	}

	if msg.From != nil {
		n.SenderName = msg.From.EmailAddress.Name
		if n.SenderName == "" {
			n.SenderName = msg.From.EmailAddress.Address
		}
	}

	if !msg.ReceivedDateTime.IsZero() {
		n.Timestamp = msg.ReceivedDateTime.UTC()
	}
	if msg.Importance == "high" {
		n.Priority = model.PriorityHigh
	}

	n.RawPayload = map[string]any{
		"conversation_id": msg.ConversationID,
		"is_read":         msg.IsRead,
		"web_link":        msg.WebLink,
	}
	return n
}

func (a *Adapter) cursor() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deltaLink
}

func (a *Adapter) setCursor(link string) {
	a.mu.Lock()
	a.deltaLink = link
	a.mu.Unlock()
}

// seedCursor positions the delta cursor at the current mailbox state.
func (a *Adapter) seedCursor(ctx context.Context) error {
	link, err := a.client.DeltaLatest(ctx)
	if err != nil {
		return err
	}
	a.setCursor(link)
	a.log.Debug("delta cursor seeded")
	return nil
}
