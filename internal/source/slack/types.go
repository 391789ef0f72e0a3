package slack

// authTestResponse is the auth.test response; UserID identifies the
// authed identity, used for mention detection.
type authTestResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	UserID string `json:"user_id"`
	User   string `json:"user"`
	Team   string `json:"team"`
}

// channel is a conversation stub from conversations.list or
// conversations.info.
type channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsIM   bool   `json:"is_im"`
	IsMpim bool   `json:"is_mpim"`
	User   string `json:"user"`
}

type listMetadata struct {
	NextCursor string `json:"next_cursor"`
}

// conversationsListResponse is the conversations.list response.
type conversationsListResponse struct {
	OK               bool         `json:"ok"`
	Error            string       `json:"error"`
	Channels         []channel    `json:"channels"`
	ResponseMetadata listMetadata `json:"response_metadata"`
}

// slackMessage is one message from conversations.history. TS doubles as
// the message id within its channel.
type slackMessage struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
}

// historyResponse is the conversations.history response.
type historyResponse struct {
	OK       bool           `json:"ok"`
	Error    string         `json:"error"`
	Messages []slackMessage `json:"messages"`
}

type userProfile struct {
	DisplayName string `json:"display_name"`
	Image48     string `json:"image_48"`
}

type userInfo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	RealName string      `json:"real_name"`
	Profile  userProfile `json:"profile"`
}

// userInfoResponse is the users.info response.
type userInfoResponse struct {
	OK    bool     `json:"ok"`
	Error string   `json:"error"`
	User  userInfo `json:"user"`
}

// conversationInfoResponse is the conversations.info response.
type conversationInfoResponse struct {
	OK      bool    `json:"ok"`
	Error   string  `json:"error"`
	Channel channel `json:"channel"`
}
