// Package plane watches issue updates across a Plane workspace and
// creates new issues from notifications.
package plane

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// Adapter is one Plane workspace's integration. The sync cursor is the
// wall-clock time of the last completed poll, fed back to the API as an
// updated_at filter. Projects are enumerated once per session.
type Adapter struct {
	account      string
	slug         string
	defaultProj  string
	token        source.TokenFunc
	client       *Client
	pollInterval time.Duration
	log          *slog.Logger

	mu        sync.Mutex
	projects  map[string]string
	lastCheck time.Time
}

// New creates an adapter for one Plane workspace.
func New(
	account, apiURL, workspaceSlug, defaultProjectID string,
	token source.TokenFunc,
	pollInterval time.Duration,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		account:      account,
		slug:         workspaceSlug,
		defaultProj:  defaultProjectID,
		token:        token,
		client:       newClient(apiURL),
		pollInterval: pollInterval,
		log:          log.With("source", "plane", "account", account),
	}
}

func (a *Adapter) Type() model.Source { return model.SourcePlane }
func (a *Adapter) Account() string    { return a.account }
func (a *Adapter) CanReply() bool     { return false }

// Connect resolves the API key and validates it by enumerating projects,
// which also warms the project-name cache.
func (a *Adapter) Connect(ctx context.Context) error {
	token, err := a.token()
	if err != nil {
		return fmt.Errorf("resolving plane credentials for %s: %w", a.account, err)
	}
	a.client.SetToken(token)

	projects, err := a.client.ListProjects(ctx, a.slug)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.projects = make(map[string]string, len(projects))
	for _, p := range projects {
		a.projects[p.ID] = p.Name
	}
	a.mu.Unlock()
	return nil
}

// Disconnect is a no-op; the client holds no persistent session.
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

// FetchRecent returns current issues across the workspace's projects and
// seeds the poll cursor at the current time when absent.
func (a *Adapter) FetchRecent(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	var notifications []model.Notification
	for projectID := range a.projectSnapshot() {
		issues, err := a.client.ListIssues(ctx, a.slug, projectID, time.Time{})
		if err != nil {
			a.log.Warn("skipping unreadable project",
				"project", projectID, "error", err)
			continue
		}
		for _, issue := range issues {
			notifications = append(notifications, a.convert(&issue))
			if len(notifications) >= limit {
				break
			}
		}
		if len(notifications) >= limit {
			break
		}
	}

	a.mu.Lock()
	if a.lastCheck.IsZero() {
		a.lastCheck = time.Now().UTC()
	}
	a.mu.Unlock()

	return notifications, nil
}

// Listen polls every project for issue updates until ctx is cancelled.
// The cursor advances to the poll time every cycle, changes found or not.
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

	for projectID := range a.projectSnapshot() {
		issues, err := a.client.ListIssues(ctx, a.slug, projectID, since)
		if err != nil {
			if source.IsCursorInvalid(err) {
				a.log.Warn("poll cursor rejected, reseeding")
				a.setCursor(time.Time{})
				return nil
			}
			return err
		}
		for _, issue := range issues {
			emit(ctx, a.convert(&issue))
		}
	}

	a.setCursor(pollStart)
	return nil
}

// Reply is not available; issues are acted on through CreateTask and the
// triage surface.
func (a *Adapter) Reply(ctx context.Context, sourceID, body string) error {
	return source.ErrUnsupported
}

// CreateTask creates an issue in the configured default project unless
// the request names another.
func (a *Adapter) CreateTask(
	ctx context.Context,
	req model.TaskCreateRequest,
) (map[string]any, error) {
	project := req.ProjectID
	if project == "" {
		project = a.defaultProj
	}

	issue, err := a.client.CreateIssue(ctx, a.slug, project, createIssueRequest{
		Name:            req.Title,
		DescriptionHTML: req.Description,
		Priority:        string(req.Priority),
	})
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"id":       issue.ID,
		"name":     issue.Name,
		"project":  issue.Project,
		"priority": issue.Priority,
	}, nil
}

// convert maps a Plane issue to the canonical shape, translating Plane's
// priority scale to the normalized one.
func (a *Adapter) convert(issue *planeIssue) model.Notification {
	n := model.NewNotification(model.SourcePlane, a.account, issue.ID)
	n.Type = model.TypeTaskUpdate
	n.Title = issue.Name
	n.Body = issue.DescriptionStripped
	n.Priority = mapPriority(issue.Priority)
	n.ProjectName = a.projectName(issue.Project)

	if !issue.UpdatedAt.IsZero() {
		n.Timestamp = issue.UpdatedAt.UTC()
	}

	n.RawPayload = map[string]any{
		"project":     issue.Project,
		"target_date": issue.TargetDate,
	}
	return n
}

func (a *Adapter) projectSnapshot() map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := make(map[string]string, len(a.projects))
	for id, name := range a.projects {
		snapshot[id] = name
	}
	return snapshot
}

func (a *Adapter) projectName(projectID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.projects[projectID]
}

func (a *Adapter) setCursor(t time.Time) {
	a.mu.Lock()
	a.lastCheck = t
	a.mu.Unlock()
}

// mapPriority translates Plane's urgent/high/medium/low/none scale.
func mapPriority(p string) model.Priority {
	switch p {
	case "urgent":
		return model.PriorityUrgent
	case "high":
		return model.PriorityHigh
	case "low", "none":
		return model.PriorityLow
	default:
		return model.PriorityNormal
	}
}
