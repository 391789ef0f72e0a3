// Package asana watches tasks assigned to the authed user and creates
// new tasks from notifications.
package asana

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// Adapter is one Asana workspace's integration. The sync cursor is the
// wall-clock time of the last completed poll, fed back to the API as a
// modified_since filter.
type Adapter struct {
	account      string
	workspaceGID string
	defaultProj  string
	token        source.TokenFunc
	client       *Client
	pollInterval time.Duration
	log          *slog.Logger

	mu        sync.Mutex
	lastCheck time.Time
}

// New creates an adapter for one Asana workspace.
func New(
	account, workspaceGID, defaultProjectGID string,
	token source.TokenFunc,
	pollInterval time.Duration,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		account:      account,
		workspaceGID: workspaceGID,
		defaultProj:  defaultProjectGID,
		token:        token,
		client:       newClient(),
		pollInterval: pollInterval,
		log:          log.With("source", "asana", "account", account),
	}
}

func (a *Adapter) Type() model.Source { return model.SourceAsana }
func (a *Adapter) Account() string    { return a.account }
func (a *Adapter) CanReply() bool     { return false }

// Connect resolves the token and validates it against the user endpoint.
func (a *Adapter) Connect(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return fmt.Errorf("resolving asana credentials for %s: %w", a.account, err)
	}
	a.client.SetToken(token)

	if _, err := a.client.Me(ctx); err != nil {
		return err
	}
	return nil
}

// Disconnect is a no-op; the client holds no persistent session.
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

// FetchRecent returns the user's open tasks and seeds the poll cursor at
// the current time when absent.
func (a *Adapter) FetchRecent(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	tasks, err := a.client.ListMyTasks(ctx, a.workspaceGID, time.Time{})
	if err != nil {
		return nil, err
	}
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}

	notifications := make([]model.Notification, 0, len(tasks))
	for _, task := range tasks {
		notifications = append(notifications, a.convert(&task))
	}

	a.mu.Lock()
	if a.lastCheck.IsZero() {
		a.lastCheck = time.Now().UTC()
	}
	a.mu.Unlock()

	return notifications, nil
}

// Listen polls for task modifications until ctx is cancelled. The cursor
// advances to the poll time every cycle, changes found or not.
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
	a.mu.Lock()
	since := a.lastCheck
	a.mu.Unlock()

	pollStart := time.Now().UTC()
	if since.IsZero() {
		a.setCursor(pollStart)
		return nil
	}

	tasks, err := a.client.ListMyTasks(ctx, a.workspaceGID, since)
	if err != nil {
		if source.IsCursorInvalid(err) {
			a.log.Warn("poll cursor rejected, reseeding")
			a.setCursor(time.Time{})
			return nil
		}
		return err
	}
	a.setCursor(pollStart)

	for _, task := range tasks {
		emit(ctx, a.convert(&task))
	}
	return nil
}

// Reply is not available; tasks are acted on through CreateTask and the
// triage surface.
func (a *Adapter) Reply(ctx context.Context, sourceID, body string) error {
	return source.ErrUnsupported
}

// CreateTask creates a task in the configured workspace, defaulting to
// the configured project when the request names none.
func (a *Adapter) CreateTask(
	ctx context.Context,
	req model.TaskCreateRequest,
) (map[string]any, error) {
	project := req.ProjectID
	if project == "" {
		project = a.defaultProj
	}

	task, err := a.client.CreateTask(
		ctx, a.workspaceGID, project, req.Title, req.Description,
	)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"gid":           task.GID,
		"name":          task.Name,
		"permalink_url": task.PermalinkURL,
	}, nil
}

// convert maps an Asana task to the canonical shape. Priority derives
// from the due date: overdue is urgent, due within two days is high.
func (a *Adapter) convert(task *asanaTask) model.Notification {
	n := model.NewNotification(model.SourceAsana, a.account, task.GID)
	n.Type = model.TypeTaskUpdate
	n.Title = task.Name
	n.Body = task.Notes
	n.Priority = priorityFromDueDate(task.DueOn)

	if task.Assignee != nil {
		n.SenderName = task.Assignee.Name
	}
	if len(task.Projects) > 0 {
		n.ProjectName = task.Projects[0].Name
	}
	if !task.ModifiedAt.IsZero() {
		n.Timestamp = task.ModifiedAt.UTC()
	}

	n.RawPayload = map[string]any{
		"permalink_url": task.PermalinkURL,
		"due_on":        task.DueOn,
	}
	return n
}

func (a *Adapter) setCursor(t time.Time) {
	a.mu.Lock()
	a.lastCheck = t
	a.mu.Unlock()
}

// priorityFromDueDate ranks a task by how close its due date is.
func priorityFromDueDate(dueOn string) model.Priority {
	if dueOn == "" {
		return model.PriorityNormal
	}
	due, err := time.Parse("2006-01-02", dueOn)
	if err != nil {
		return model.PriorityNormal
	}

	now := time.Now().UTC()
	switch {
	case due.Before(now.Truncate(24 * time.Hour)):
		return model.PriorityUrgent
	case due.Before(now.Add(48 * time.Hour)):
		return model.PriorityHigh
	default:
		return model.PriorityNormal
	}
}
