package gmail

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

const apiBase = "https://gmail.googleapis.com/gmail/v1"

// metadataHeaders are the only headers fetched with a message; full body
// retrieval is unnecessary for the feed.
var metadataHeaders = []string{"Subject", "From", "Date", "Message-ID"}

// Client wraps the Gmail REST API surface the adapter needs.
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

// Profile fetches the mailbox profile, including the current history
// cursor used to seed incremental sync.
func (c *Client) Profile(ctx context.Context) (*profileResponse, error) {
	var profile profileResponse
	if err := c.rest.Get(ctx, "/users/me/profile", nil, &profile); err != nil {
		return nil, fmt.Errorf("fetching gmail profile: %w", err)
	}
	return &profile, nil
}

// ListMessages returns message stubs matching a Gmail search query.
func (c *Client) ListMessages(
	ctx context.Context,
	query string,
	max int,
) ([]messageRef, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(max))

	var list messageListResponse
	if err := c.rest.Get(ctx, "/users/me/messages", params, &list); err != nil {
		return nil, fmt.Errorf("listing gmail messages: %w", err)
	}
	return list.Messages, nil
}

// GetMessage fetches a single message in metadata format.
func (c *Client) GetMessage(ctx context.Context, id string) (*message, error) {
	params := url.Values{}
	params.Set("format", "metadata")
	for _, h := range metadataHeaders {
		params.Add("metadataHeaders", h)
	}

	var msg message
	path := "/users/me/messages/" + url.PathEscape(id)
	if err := c.rest.Get(ctx, path, params, &msg); err != nil {
		return nil, fmt.Errorf("fetching gmail message %s: %w", id, err)
	}
	return &msg, nil
}

// History lists message-added changes since the given cursor, following
// pagination. Gmail answers 404 when the cursor is too old to serve; that
// comes back as a CursorInvalidError so the caller performs a full resync.
func (c *Client) History(
	ctx context.Context,
	startHistoryID string,
) (*historyResponse, error) {
	merged := &historyResponse{}
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("startHistoryId", startHistoryID)
		params.Set("historyTypes", "messageAdded")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page historyResponse
		err := c.rest.Get(ctx, "/users/me/history", params, &page)
		if err != nil {
			if rest.HasStatus(err, http.StatusNotFound) {
				return nil, &source.CursorInvalidError{
					Source:  model.SourceGmail,
					Message: "history id " + startHistoryID + " expired",
				}
			}
			return nil, fmt.Errorf("listing gmail history: %w", err)
		}

		merged.History = append(merged.History, page.History...)
		if page.HistoryID != "" {
			merged.HistoryID = page.HistoryID
		}
		if page.NextPageToken == "" {
			return merged, nil
		}
		pageToken = page.NextPageToken
	}
}

// Send submits a raw RFC 2822 message, threading it when threadID is set.
func (c *Client) Send(ctx context.Context, raw, threadID string) error {
	body := sendRequest{Raw: raw, ThreadID: threadID}
	if err := c.rest.Post(ctx, "/users/me/messages/send", body, nil); err != nil {
		return fmt.Errorf("sending gmail message: %w", err)
	}
	return nil
}
