package model

// Event names for the real-time channel. One logical channel per connected
// client; every message is an Event envelope.
const (
	EventInitialLoad         = "initial_load"
	EventNewNotification     = "new_notification"
	EventNotificationUpdated = "notification_updated"
	EventConnectionStatus    = "connection_status"
	EventError               = "error"
)

// Event is the envelope for every message sent over the real-time channel.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ConnectionStatus reports a single source adapter going up or down.
type ConnectionStatus struct {
	Service   Source `json:"service"`
	Account   string `json:"account"`
	Connected bool   `json:"connected"`
}

// NotificationUpdate is the status-only delta broadcast after a triage
// action; the client already has the full notification.
type NotificationUpdate struct {
	ID     string       `json:"id"`
	Status TriageStatus `json:"triage_status"`

	// SnoozeMinutes is set only for snooze updates.
	SnoozeMinutes int `json:"snooze_minutes,omitempty"`
}

// InitialLoadEvent wraps a full snapshot for a newly connected client.
func InitialLoadEvent(notifications []Notification) Event {
	if notifications == nil {
		notifications = []Notification{}
	}
	return Event{
		Event: EventInitialLoad,
		Data:  map[string]any{"notifications": notifications},
	}
}

// NewNotificationEvent wraps a freshly observed notification.
func NewNotificationEvent(n Notification) Event {
	return Event{Event: EventNewNotification, Data: n}
}

// NotificationUpdatedEvent wraps a triage status delta.
func NotificationUpdatedEvent(u NotificationUpdate) Event {
	return Event{Event: EventNotificationUpdated, Data: u}
}

// ConnectionStatusEvent wraps a per-source up/down transition.
func ConnectionStatusEvent(source Source, account string, connected bool) Event {
	return Event{
		Event: EventConnectionStatus,
		Data: ConnectionStatus{
			Service:   source,
			Account:   account,
			Connected: connected,
		},
	}
}

// ErrorEvent wraps a user-visible error message.
func ErrorEvent(message string) Event {
	return Event{
		Event: EventError,
		Data:  map[string]string{"message": message},
	}
}
