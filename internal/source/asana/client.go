package asana

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
	"github.com/nhle/command-center/internal/source/rest"
)

const apiBase = "https://app.asana.com/api/1.0"

const taskFields = "name,notes,due_on,created_at,modified_at,completed," +
	"assignee.name,projects.name,permalink_url"

// Client wraps the Asana REST surface the adapter needs.
type Client struct {
	rest *rest.Client
}

func newClient() *Client {
	return &Client{rest: rest.NewClient(apiBase)}
}

// SetToken installs the personal access token used by subsequent calls.
func (c *Client) SetToken(token string) {
	c.rest.SetHeader("Authorization", "Bearer "+token)
}

// Me fetches the authed user, validating the token.
func (c *Client) Me(ctx context.Context) (*asanaUser, error) {
	var resp userResponse
	if err := c.rest.Get(ctx, "/users/me", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching asana user: %w", err)
	}
	return &resp.Data, nil
}

// ListMyTasks returns incomplete tasks assigned to the authed user in the
// workspace, optionally restricted to those modified since the cursor. A
// 400 answer while a cursor is in play means Asana rejected the
// modified_since value; that comes back as a CursorInvalidError.
func (c *Client) ListMyTasks(
	ctx context.Context,
	workspaceGID string,
	modifiedSince time.Time,
) ([]asanaTask, error) {
	params := url.Values{}
	params.Set("assignee", "me")
	params.Set("workspace", workspaceGID)
	params.Set("completed_since", "now")
	params.Set("opt_fields", taskFields)
	params.Set("limit", "50")
	if !modifiedSince.IsZero() {
		params.Set("modified_since", modifiedSince.UTC().Format(time.RFC3339))
	}

	var resp tasksResponse
	if err := c.rest.Get(ctx, "/tasks", params, &resp); err != nil {
		if !modifiedSince.IsZero() && rest.HasStatus(err, http.StatusBadRequest) {
			return nil, &source.CursorInvalidError{
				Source:  model.SourceAsana,
				Message: "modified_since value rejected",
			}
		}
		return nil, fmt.Errorf("listing asana tasks: %w", err)
	}
	return resp.Data, nil
}

// CreateTask creates a task in the workspace, attached to the project.
func (c *Client) CreateTask(
	ctx context.Context,
	workspaceGID, projectGID, name, notes string,
) (*asanaTask, error) {
	req := createTaskRequest{
		Data: createTaskData{
			Name:      name,
			Notes:     notes,
			Workspace: workspaceGID,
		},
	}
	if projectGID != "" {
		req.Data.Projects = []string{projectGID}
	}

	var resp taskResponse
	if err := c.rest.Post(ctx, "/tasks", req, &resp); err != nil {
		return nil, fmt.Errorf("creating asana task: %w", err)
	}
	return &resp.Data, nil
}
