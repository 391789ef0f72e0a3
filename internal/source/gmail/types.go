package gmail

import "strings"

// profileResponse is the users.getProfile response. historyId is the
// mailbox's current history cursor.
type profileResponse struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    string `json:"historyId"`
}

// messageRef is a message stub from users.messages.list.
type messageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// messageListResponse is the users.messages.list response.
type messageListResponse struct {
	Messages           []messageRef `json:"messages"`
	NextPageToken      string       `json:"nextPageToken"`
	ResultSizeEstimate int          `json:"resultSizeEstimate"`
}

// header is a single RFC 2822 header from a message payload.
type header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// messagePayload carries the metadata headers of a fetched message.
type messagePayload struct {
	Headers []header `json:"headers"`
}

// message is a users.messages.get response in metadata format.
type message struct {
	ID           string         `json:"id"`
	ThreadID     string         `json:"threadId"`
	Snippet      string         `json:"snippet"`
	LabelIDs     []string       `json:"labelIds"`
	InternalDate string         `json:"internalDate"`
	Payload      messagePayload `json:"payload"`
}

// header returns the named header's value, or "".
func (m *message) header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// addedMessage is one entry in a history record's messagesAdded list.
type addedMessage struct {
	Message struct {
		ID       string   `json:"id"`
		ThreadID string   `json:"threadId"`
		LabelIDs []string `json:"labelIds"`
	} `json:"message"`
}

// historyRecord is one change set from users.history.list.
type historyRecord struct {
	ID            string         `json:"id"`
	MessagesAdded []addedMessage `json:"messagesAdded"`
}

// historyResponse is the users.history.list response. historyId is the
// new cursor value, returned even when the history list is empty.
type historyResponse struct {
	History       []historyRecord `json:"history"`
	HistoryID     string          `json:"historyId"`
	NextPageToken string          `json:"nextPageToken"`
}

// sendRequest is the users.messages.send body. Raw is the base64url
// encoded RFC 2822 message; ThreadID keeps the reply in its thread.
type sendRequest struct {
	Raw      string `json:"raw"`
	ThreadID string `json:"threadId,omitempty"`
}
