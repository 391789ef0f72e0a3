package outlook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
	"github.com/nhle/command-center/internal/source/rest"
)

const apiBase = "https://graph.microsoft.com/v1.0"

const selectFields = "id,subject,bodyPreview,receivedDateTime,from," +
	"conversationId,isRead,importance,webLink"

// Client wraps the Microsoft Graph mail surface the adapter needs.
type Client struct {
	rest *rest.Client
}

func newClient() *Client {
	return &Client{rest: rest.NewClient(apiBase)}
}

// SetToken installs the bearer token used by subsequent calls.
func (c *Client) SetToken(token string) {
	c.rest.SetHeader("Authorization", "Bearer "+token)
}

// Me fetches the signed-in user, validating the session.
func (c *Client) Me(ctx context.Context) (*userResponse, error) {
	var user userResponse
	if err := c.rest.Get(ctx, "/me", nil, &user); err != nil {
		return nil, fmt.Errorf("fetching graph profile: %w", err)
	}
	return &user, nil
}

// ListInbox returns the newest inbox messages.
func (c *Client) ListInbox(ctx context.Context, top int) ([]graphMessage, error) {
	params := url.Values{}
	params.Set("$top", strconv.Itoa(top))
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$select", selectFields)

	var resp messagesResponse
	err := c.rest.Get(ctx, "/me/mailFolders/inbox/messages", params, &resp)
	if err != nil {
		return nil, fmt.Errorf("listing inbox: %w", err)
	}
	return resp.Value, nil
}

// Delta reads all changes behind the given delta link, following page
// links, and returns the changes plus the next delta link. Graph answers
// 410 Gone when the link is too old; that comes back as a
// CursorInvalidError so the caller resyncs from scratch.
func (c *Client) Delta(
	ctx context.Context,
	deltaLink string,
) ([]graphMessage, string, error) {
	var (
		messages []graphMessage
		page     messagesResponse
	)

	err := c.rest.GetURL(ctx, deltaLink, &page)
	for {
		if err != nil {
			if rest.HasStatus(err, http.StatusGone) {
				return nil, "", &source.CursorInvalidError{
					Source:  model.SourceOutlook,
					Message: "delta link expired",
				}
			}
			return nil, "", fmt.Errorf("reading mail delta: %w", err)
		}

		messages = append(messages, page.Value...)
		if page.DeltaLink != "" {
			return messages, page.DeltaLink, nil
		}
		if page.NextLink == "" {
			return messages, "", fmt.Errorf("mail delta page has no continuation link")
		}

		next := page.NextLink
		page = messagesResponse{}
		err = c.rest.GetURL(ctx, next, &page)
	}
}

// DeltaLatest asks Graph for a delta link positioned at the current state
// without returning any messages, used to seed the cursor.
func (c *Client) DeltaLatest(ctx context.Context) (string, error) {
	link := apiBase + "/me/mailFolders/inbox/messages/delta" +
		"?$deltatoken=latest&$select=" + url.QueryEscape(selectFields)

	_, deltaLink, err := c.Delta(ctx, link)
	if err != nil {
		return "", err
	}
	return deltaLink, nil
}

// Reply posts a comment-style reply to the given message.
func (c *Client) Reply(ctx context.Context, messageID, comment string) error {
	path := "/me/messages/" + url.PathEscape(messageID) + "/reply"
	if err := c.rest.Post(ctx, path, replyRequest{Comment: comment}, nil); err != nil {
		return fmt.Errorf("replying to message %s: %w", messageID, err)
	}
	return nil
}
