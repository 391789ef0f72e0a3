package model

// Action names accepted by the action endpoint.
const (
	ActionReply    = "reply"
	ActionArchive  = "archive"
	ActionMarkRead = "mark_read"
	ActionSnooze   = "snooze"
)

// ActionRequest is a single user action on a notification.
type ActionRequest struct {
	Action  string         `json:"action" binding:"required"`
	Payload map[string]any `json:"payload"`
}

// StringPayload returns the payload value for key as a string,
// or "" when absent or not a string.
func (r ActionRequest) StringPayload(key string) string {
	if r.Payload == nil {
		return ""
	}
	s, _ := r.Payload[key].(string)
	return s
}

// IntPayload returns the payload value for key as an int, falling back
// to def when absent. JSON numbers decode as float64.
func (r ActionRequest) IntPayload(key string, def int) int {
	if r.Payload == nil {
		return def
	}
	switch v := r.Payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// TaskCreateRequest creates a task in one of the configured trackers
// from a notification.
type TaskCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`

	// Target is the tracker to create the task in ("asana" or "plane").
	Target string `json:"target" binding:"required"`

	Priority Priority `json:"priority"`

	// ProjectID overrides the tracker's default project when set.
	ProjectID string `json:"project_id"`

	// SourceNotificationID links the task back to the notification it
	// was created from.
	SourceNotificationID string `json:"source_notification_id"`
}
