package slack

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/command-center/internal/source/rest"
)

const apiBase = "https://slack.com/api"

// Client wraps the Slack Web API surface the adapter needs. Slack signals
// failure through {"ok": false} bodies rather than HTTP status codes, so
// every call checks the ok flag.
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

// AuthTest validates the token and returns the authed identity.
func (c *Client) AuthTest(ctx context.Context) (*authTestResponse, error) {
	var resp authTestResponse
	if err := c.rest.Post(ctx, "/auth.test", nil, &resp); err != nil {
		return nil, fmt.Errorf("slack auth.test: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack auth.test: %s", resp.Error)
	}
	return &resp, nil
}

// ListConversations returns conversations of the given comma-separated
// types (e.g. "im,mpim"), following pagination.
func (c *Client) ListConversations(
	ctx context.Context,
	types string,
) ([]channel, error) {
	var (
		channels []channel
		cursor   string
	)
	for {
		params := url.Values{}
		params.Set("types", types)
		params.Set("limit", "100")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp conversationsListResponse
		if err := c.rest.Get(ctx, "/conversations.list", params, &resp); err != nil {
			return nil, fmt.Errorf("slack conversations.list: %w", err)
		}
		if !resp.OK {
			return nil, fmt.Errorf("slack conversations.list: %s", resp.Error)
		}

		channels = append(channels, resp.Channels...)
		cursor = resp.ResponseMetadata.NextCursor
		if cursor == "" {
			return channels, nil
		}
	}
}

// History returns messages in a conversation newer than oldest (a Slack
// ts value; "" means no lower bound), newest first.
func (c *Client) History(
	ctx context.Context,
	channelID, oldest string,
	limit int,
) ([]slackMessage, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("limit", strconv.Itoa(limit))
	if oldest != "" {
		params.Set("oldest", oldest)
	}

	var resp historyResponse
	if err := c.rest.Get(ctx, "/conversations.history", params, &resp); err != nil {
		return nil, fmt.Errorf("slack conversations.history: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf(
			"slack conversations.history %s: %s", channelID, resp.Error,
		)
	}
	return resp.Messages, nil
}

// UserInfo resolves a user id to its profile.
func (c *Client) UserInfo(ctx context.Context, userID string) (*userInfo, error) {
	params := url.Values{}
	params.Set("user", userID)

	var resp userInfoResponse
	if err := c.rest.Get(ctx, "/users.info", params, &resp); err != nil {
		return nil, fmt.Errorf("slack users.info: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("slack users.info %s: %s", userID, resp.Error)
	}
	return &resp.User, nil
}

// ConversationInfo resolves a conversation id to its metadata.
func (c *Client) ConversationInfo(
	ctx context.Context,
	channelID string,
) (*channel, error) {
	params := url.Values{}
	params.Set("channel", channelID)

	var resp conversationInfoResponse
	if err := c.rest.Get(ctx, "/conversations.info", params, &resp); err != nil {
		return nil, fmt.Errorf("slack conversations.info: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf(
			"slack conversations.info %s: %s", channelID, resp.Error,
		)
	}
	return &resp.Channel, nil
}
