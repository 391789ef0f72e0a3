// Package slack watches direct and group messages in one Slack
// workspace. The integration is read-only: Slack items can be triaged
// but never replied to from here.
package slack

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

const (
	watchedTypes = "im,mpim"

	// fetchRecent samples a handful of conversations rather than the
	// whole workspace.
	recentChannels        = 5
	recentMessagesPerChan = 3

	pollHistoryLimit = 20
)

// Adapter is one Slack workspace's integration. The sync cursor is a
// per-conversation latest-seen ts value.
type Adapter struct {
	workspace    string
	token        source.TokenFunc
	client       *Client
	pollInterval time.Duration
	log          *slog.Logger

	mu       sync.Mutex
	selfID   string
	lastTS   map[string]string
	users    map[string]*userInfo
	channels map[string]string
}

// New creates an adapter for one Slack workspace.
func New(
	workspace string,
	token source.TokenFunc,
	pollInterval time.Duration,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		workspace:    workspace,
		token:        token,
		client:       newClient(),
		pollInterval: pollInterval,
		log:          log.With("source", "slack", "workspace", workspace),
		lastTS:       make(map[string]string),
		users:        make(map[string]*userInfo),
		channels:     make(map[string]string),
	}
}

func (a *Adapter) Type() model.Source { return model.SourceSlack }
func (a *Adapter) Account() string    { return a.workspace }
func (a *Adapter) CanReply() bool     { return false }

// Connect resolves the token and validates it with auth.test, recording
// the authed user id for mention detection.
func (a *Adapter) Connect(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return fmt.Errorf("resolving slack credentials for %s: %w", a.workspace, err)
	}
	a.client.SetToken(token)

	auth, err := a.client.AuthTest(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.selfID = auth.UserID
	a.mu.Unlock()
	return nil
}

// Disconnect is a no-op; the client holds no persistent session.
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

// FetchRecent samples the latest messages from the most recent direct
// conversations and seeds each conversation's cursor.
func (a *Adapter) FetchRecent(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	channels, err := a.client.ListConversations(ctx, watchedTypes)
	if err != nil {
		return nil, err
	}
	if len(channels) > recentChannels {
		channels = channels[:recentChannels]
	}

	var notifications []model.Notification
	for _, ch := range channels {
		messages, err := a.client.History(ctx, ch.ID, "", recentMessagesPerChan)
		if err != nil {
			a.log.Warn("skipping unreadable conversation",
				"channel", ch.ID, "error", err)
			continue
		}
		for _, msg := range messages {
			if a.skippable(&msg) {
				continue
			}
			notifications = append(notifications, a.convert(ctx, &ch, &msg))
			a.advanceCursor(ch.ID, msg.TS)
		}
		if len(notifications) >= limit {
			break
		}
	}
	return notifications, nil
}

// Listen polls every watched conversation until ctx is cancelled. A
// conversation seen for the first time has its cursor seeded at "now"
// rather than replaying its backlog.
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
	channels, err := a.client.ListConversations(ctx, watchedTypes)
	if err != nil {
		return err
	}

	for _, ch := range channels {
		oldest, seeded := a.cursorFor(ch.ID)
		if !seeded {
			a.advanceCursor(ch.ID, nowTS())
			continue
		}

		messages, err := a.client.History(ctx, ch.ID, oldest, pollHistoryLimit)
		if err != nil {
			a.log.Warn("skipping unreadable conversation",
				"channel", ch.ID, "error", err)
			continue
		}

		// History is newest first; walk oldest first so emits and the
		// cursor advance in order.
		for i := len(messages) - 1; i >= 0; i-- {
			msg := messages[i]
			a.advanceCursor(ch.ID, msg.TS)
			if a.skippable(&msg) {
				continue
			}
			emit(ctx, a.convert(ctx, &ch, &msg))
		}
	}
	return nil
}

// Reply is not available; the Slack integration is read-only.
func (a *Adapter) Reply(ctx context.Context, sourceID, body string) error {
	return source.ErrUnsupported
}

// skippable filters out non-message events, bot traffic, and the authed
// user's own messages.
func (a *Adapter) skippable(msg *slackMessage) bool {
	if msg.Subtype != "" || msg.BotID != "" || msg.TS == "" {
		return true
	}
	a.mu.Lock()
	self := a.selfID
	a.mu.Unlock()
	return msg.User == "" || msg.User == self
}

// convert maps a Slack message to the canonical shape. Mentions of the
// authed user are promoted to high priority.
func (a *Adapter) convert(
	ctx context.Context,
	ch *channel,
	msg *slackMessage,
) model.Notification {
	sourceID := ch.ID + ":" + msg.TS
	n := model.NewNotification(model.SourceSlack, a.workspace, sourceID)
	n.Actionable = false
	n.Type = model.TypeMessage
	n.Body = msg.Text

	sender, avatar := a.senderFor(ctx, msg.User)
	n.SenderName = sender
	n.SenderAvatar = avatar

	a.mu.Lock()
	self := a.selfID
	a.mu.Unlock()

	switch {
	case self != "" && containsMention(msg.Text, self):
		n.Type = model.TypeMention
		n.Priority = model.PriorityHigh
		n.Title = "Mention from " + sender
	case ch.IsIM:
		n.Title = "Direct message from " + sender
	default:
		name := a.channelNameFor(ctx, ch)
		n.Title = "Message in " + name
		n.ChannelName = name
	}

	n.ThreadID = msg.ThreadTS
	if n.ThreadID == "" {
		n.ThreadID = msg.TS
	}
	n.Timestamp = tsTime(msg.TS)
	n.RawPayload = map[string]any{
		"channel": ch.ID,
		"ts":      msg.TS,
	}
	return n
}

// senderFor resolves a user id through the session cache.
func (a *Adapter) senderFor(ctx context.Context, userID string) (string, string) {
	if userID == "" {
		return "Unknown", ""
	}

	a.mu.Lock()
	cached, ok := a.users[userID]
	a.mu.Unlock()

	if !ok {
		info, err := a.client.UserInfo(ctx, userID)
		if err != nil {
			a.log.Debug("user lookup failed", "user", userID, "error", err)
			return userID, ""
		}
		a.mu.Lock()
		a.users[userID] = info
		a.mu.Unlock()
		cached = info
	}

	name := cached.Profile.DisplayName
	if name == "" {
		name = cached.RealName
	}
	if name == "" {
		name = cached.Name
	}
	return name, cached.Profile.Image48
}

// channelNameFor resolves a conversation's display name through the
// session cache.
func (a *Adapter) channelNameFor(ctx context.Context, ch *channel) string {
	if ch.Name != "" {
		return "#" + ch.Name
	}

	a.mu.Lock()
	cached, ok := a.channels[ch.ID]
	a.mu.Unlock()
	if ok {
		return cached
	}

	info, err := a.client.ConversationInfo(ctx, ch.ID)
	name := ch.ID
	if err == nil && info.Name != "" {
		name = "#" + info.Name
	}

	a.mu.Lock()
	a.channels[ch.ID] = name
	a.mu.Unlock()
	return name
}

// cursorFor returns the conversation's cursor and whether it was seeded.
func (a *Adapter) cursorFor(channelID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ts, ok := a.lastTS[channelID]
	return ts, ok
}

// advanceCursor moves the conversation cursor forward, never backward.
func (a *Adapter) advanceCursor(channelID, ts string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if current, ok := a.lastTS[channelID]; ok && tsValue(current) >= tsValue(ts) {
		return
	}
	a.lastTS[channelID] = ts
}

func containsMention(text, userID string) bool {
	return strings.Contains(text, "<@"+userID+">")
}

// tsValue parses a Slack ts ("1700000000.123456") into seconds.
func tsValue(ts string) float64 {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0
	}
	return v
}

// tsTime converts a Slack ts into a time.Time.
func tsTime(ts string) time.Time {
	v := tsValue(ts)
	if v == 0 {
		return time.Now().UTC()
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

func nowTS() string {
	return strconv.FormatFloat(float64(time.Now().Unix()), 'f', 6, 64)
}
