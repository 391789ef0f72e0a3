package plane

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

// Client wraps the Plane REST surface the adapter needs. Plane
// authenticates with an X-API-Key header rather than a bearer token.
type Client struct {
	rest *rest.Client
}

func newClient(apiURL string) *Client {
	return &Client{rest: rest.NewClient(apiURL)}
}

// SetToken installs the API key used by subsequent calls.
func (c *Client) SetToken(token string) {
	c.rest.SetHeader("X-API-Key", token)
}

// ListProjects returns the workspace's projects.
func (c *Client) ListProjects(
	ctx context.Context,
	workspaceSlug string,
) ([]planeProject, error) {
	path := "/workspaces/" + url.PathEscape(workspaceSlug) + "/projects/"

	var resp projectsResponse
	if err := c.rest.Get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("listing plane projects: %w", err)
	}
	return resp.Results, nil
}

// ListIssues returns a project's issues, optionally restricted to those
// updated since the cursor. A 400 answer while a cursor is in play comes
// back as a CursorInvalidError.
func (c *Client) ListIssues(
	ctx context.Context,
	workspaceSlug, projectID string,
	updatedSince time.Time,
) ([]planeIssue, error) {
	path := "/workspaces/" + url.PathEscape(workspaceSlug) +
		"/projects/" + url.PathEscape(projectID) + "/issues/"

	params := url.Values{}
	if !updatedSince.IsZero() {
		params.Set("updated_at__gte", updatedSince.UTC().Format(time.RFC3339))
	}

	var resp issuesResponse
	if err := c.rest.Get(ctx, path, params, &resp); err != nil {
		if !updatedSince.IsZero() && rest.HasStatus(err, http.StatusBadRequest) {
			return nil, &source.CursorInvalidError{
				Source:  model.SourcePlane,
				Message: "updated_at filter rejected",
			}
		}
		return nil, fmt.Errorf("listing plane issues: %w", err)
	}
	return resp.Results, nil
}

// CreateIssue creates an issue in the given project.
func (c *Client) CreateIssue(
	ctx context.Context,
	workspaceSlug, projectID string,
	req createIssueRequest,
) (*planeIssue, error) {
	path := "/workspaces/" + url.PathEscape(workspaceSlug) +
		"/projects/" + url.PathEscape(projectID) + "/issues/"

	var issue planeIssue
	if err := c.rest.Post(ctx, path, req, &issue); err != nil {
		return nil, fmt.Errorf("creating plane issue: %w", err)
	}
	return &issue, nil
}
