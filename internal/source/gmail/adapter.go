// Package gmail watches a Gmail inbox through incremental history sync
// and supports threaded replies.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

const fullResyncLimit = 10

// Adapter is one Gmail account's integration. Its sync cursor is the
// mailbox history id; message ids already emitted this session are
// tracked so overlapping history records do not re-emit.
type Adapter struct {
	account      string
	token        source.TokenFunc
	client       *Client
	pollInterval time.Duration
	log          *slog.Logger

	mu        sync.Mutex
	historyID string
	seen      map[string]struct{}
}

// New creates an adapter for one Gmail account.
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
		log:          log.With("source", "gmail", "account", account),
		seen:         make(map[string]struct{}),
	}
}

func (a *Adapter) Type() model.Source { return model.SourceGmail }
func (a *Adapter) Account() string    { return a.account }
func (a *Adapter) CanReply() bool     { return true }

// Connect resolves the current token and validates it against the
// profile endpoint. The history cursor survives reconnects.
func (a *Adapter) Connect(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return fmt.Errorf("resolving gmail credentials for %s: %w", a.account, err)
	}
	a.client.SetToken(token)

	if _, err := a.client.Profile(ctx); err != nil {
		return err
	}
	return nil
}

// Disconnect is a no-op; the client holds no persistent session.
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

// FetchRecent returns the newest inbox messages and seeds the history
// cursor when this is the first sync of the session. Every snapshot
// returns the full inbox window; the seen set only suppresses re-emits
// in the listen loop.
func (a *Adapter) FetchRecent(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	refs, err := a.client.ListMessages(ctx, "in:inbox", limit)
	if err != nil {
		return nil, err
	}

	notifications := make([]model.Notification, 0, len(refs))
	for _, ref := range refs {
		msg, ok := a.fetchMessage(ctx, ref.ID)
		if !ok {
			continue
		}
		a.markSeen(ref.ID)
		notifications = append(notifications, a.convert(msg))
	}

	if a.cursor() == "" {
		if err := a.seedCursor(ctx); err != nil {
			a.log.Warn("seeding history cursor failed", "error", err)
		}
	}

	return notifications, nil
}

// Listen polls the history endpoint until ctx is cancelled. The cursor
// advances every cycle regardless of whether changes were found; a
// rejected cursor triggers a full resync instead of an error.
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
		return a.pollFull(ctx, emit)
	}

	resp, err := a.client.History(ctx, cursor)
	if err != nil {
		if source.IsCursorInvalid(err) {
			a.log.Warn("history cursor expired, scheduling full resync")
			a.setCursor("")
			return nil
		}
		return err
	}

	if resp.HistoryID != "" {
		a.setCursor(resp.HistoryID)
	}

	for _, record := range resp.History {
		for _, added := range record.MessagesAdded {
			if !hasLabel(added.Message.LabelIDs, "INBOX") {
				continue
			}
			if a.markSeen(added.Message.ID) {
				continue
			}
			msg, ok := a.fetchMessage(ctx, added.Message.ID)
			if !ok {
				continue
			}
			emit(ctx, a.convert(msg))
		}
	}
	return nil
}

// pollFull handles the cursor-less cycle after an expired history id:
// emit current unread inbox mail, then reseed the cursor.
func (a *Adapter) pollFull(ctx context.Context, emit source.EmitFunc) error {
	refs, err := a.client.ListMessages(ctx, "in:inbox is:unread", fullResyncLimit)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		if a.markSeen(ref.ID) {
			continue
		}
		msg, ok := a.fetchMessage(ctx, ref.ID)
		if !ok {
			continue
		}
		emit(ctx, a.convert(msg))
	}

	return a.seedCursor(ctx)
}

// Reply sends a threaded reply to the given message.
func (a *Adapter) Reply(ctx context.Context, sourceID, body string) error {
	original, err := a.client.GetMessage(ctx, sourceID)
	if err != nil {
		return err
	}

	to := original.header("From")
	if to == "" {
		return fmt.Errorf("message %s has no From header", sourceID)
	}
	subject := original.header("Subject")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	messageID := original.header("Message-ID")

	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if messageID != "" {
		fmt.Fprintf(&b, "In-Reply-To: %s\r\n", messageID)
		fmt.Fprintf(&b, "References: %s\r\n", messageID)
	}
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	raw := base64.URLEncoding.WithPadding(base64.NoPadding).
		EncodeToString([]byte(b.String()))
	return a.client.Send(ctx, raw, original.ThreadID)
}

// convert maps a Gmail message to the canonical shape.
func (a *Adapter) convert(msg *message) model.Notification {
	n := model.NewNotification(model.SourceGmail, a.account, msg.ID)
	n.Type = model.TypeEmail
	n.ThreadID = msg.ThreadID
	n.Body = msg.Snippet

	n.Title = msg.header("Subject")
	if n.Title == "" {
		n.Title = "(no subject)"
	}

	from := msg.header("From")
	n.SenderName = from
	if addr, err := mail.ParseAddress(from); err == nil {
		if addr.Name != "" {
			n.SenderName = addr.Name
		} else {
			n.SenderName = addr.Address
		}
	}

	if ms, err := strconv.ParseInt(msg.InternalDate, 10, 64); err == nil && ms > 0 {
		n.Timestamp = time.UnixMilli(ms).UTC()
	}

	n.RawPayload = map[string]any{
		"thread_id": msg.ThreadID,
		"labels":    msg.LabelIDs,
	}
	return n
}

// cursor returns the current history id.
func (a *Adapter) cursor() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.historyID
}

func (a *Adapter) setCursor(historyID string) {
	a.mu.Lock()
	a.historyID = historyID
	a.mu.Unlock()
}

// seedCursor initializes the history id from the mailbox profile.
func (a *Adapter) seedCursor(ctx context.Context) error {
	profile, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	a.setCursor(profile.HistoryID)
	a.log.Debug("history cursor seeded", "history_id", profile.HistoryID)
	return nil
}

// fetchMessage loads one message, reporting a failure as a single-item
// conversion error so the batch continues without it.
func (a *Adapter) fetchMessage(ctx context.Context, id string) (*message, bool) {
	msg, err := a.client.GetMessage(ctx, id)
	if err != nil {
		a.log.Warn("skipping message", "error", &source.ConversionError{
			Source:   model.SourceGmail,
			SourceID: id,
			Err:      err,
		})
		return nil, false
	}
	return msg, true
}

// markSeen records the id and reports whether it was already present.
func (a *Adapter) markSeen(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.seen[id]; ok {
		return true
	}
	a.seen[id] = struct{}{}
	return false
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
