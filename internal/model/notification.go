package model

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies the external service a notification came from.
type Source string

const (
	SourceGmail   Source = "gmail"
	SourceOutlook Source = "outlook"
	SourceSlack   Source = "slack"
	SourceAsana   Source = "asana"
	SourcePlane   Source = "plane"
	SourceMailbox Source = "mailbox"
)

// NotificationType categorizes what kind of event a notification represents.
type NotificationType string

const (
	TypeEmail        NotificationType = "email"
	TypeMessage      NotificationType = "message"
	TypeTaskUpdate   NotificationType = "task_update"
	TypeTaskAssigned NotificationType = "task_assigned"
	TypeMention      NotificationType = "mention"
	TypeComment      NotificationType = "comment"
	TypeReminder     NotificationType = "reminder"
)

// Priority is the normalized urgency level of a notification.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// TriageStatus is the user-controlled lifecycle state of a notification.
type TriageStatus string

const (
	StatusUnread   TriageStatus = "unread"
	StatusRead     TriageStatus = "read"
	StatusSnoozed  TriageStatus = "snoozed"
	StatusArchived TriageStatus = "archived"
	StatusActioned TriageStatus = "actioned"
)

// Notification is the unified representation of an event from any source.
// Every service maps its native payload to this shape before anything
// downstream (store, hub, clients) sees it.
type Notification struct {
	// ID is the internal unique identifier, assigned once at creation.
	// The natural deduplication key is (Source, SourceID), not ID.
	ID string `json:"id"`

	// Source identifies which integration produced this notification.
	Source Source `json:"source"`

	// SourceAccount is the configured account or workspace within the
	// source (e.g. "work@example.com" or a Slack workspace name).
	SourceAccount string `json:"source_account"`

	// SourceID is the item's identifier within its source system,
	// retained for reply and action routing.
	SourceID string `json:"source_id"`

	Type       NotificationType `json:"notification_type"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	SenderName string           `json:"sender_name"`

	// SenderAvatar is an optional URL to the sender's avatar image.
	SenderAvatar string `json:"sender_avatar,omitempty"`

	Timestamp time.Time    `json:"timestamp"`
	Priority  Priority     `json:"priority"`
	Status    TriageStatus `json:"triage_status"`

	// Actionable reports whether the app can reply/act on this item.
	// Read-only sources set it to false.
	Actionable bool `json:"is_actionable"`

	// ThreadID, ChannelName, and ProjectName carry optional
	// source-dependent context.
	ThreadID    string `json:"thread_id,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	ProjectName string `json:"project_name,omitempty"`

	// SnoozedUntil is set only while Status == StatusSnoozed.
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`

	// RawPayload holds opaque source-specific data needed for actions
	// (e.g. reply targets, label sets).
	RawPayload map[string]any `json:"raw_payload,omitempty"`
}

// NewNotification returns a Notification with a fresh ID and the defaults
// every adapter starts from: unread, normal priority, actionable.
func NewNotification(source Source, account, sourceID string) Notification {
	return Notification{
		ID:            uuid.New().String(),
		Source:        source,
		SourceAccount: account,
		SourceID:      sourceID,
		Timestamp:     time.Now().UTC(),
		Priority:      PriorityNormal,
		Status:        StatusUnread,
		Actionable:    true,
	}
}
