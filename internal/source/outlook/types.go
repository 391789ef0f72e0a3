package outlook

import "time"

// emailAddress is Graph's name/address pair.
type emailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// recipient wraps an emailAddress the way Graph nests it.
type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

// removedInfo marks a delta entry as a deletion rather than a message.
type removedInfo struct {
	Reason string `json:"reason"`
}

// graphMessage is a mail message as returned by the messages and delta
// endpoints.
type graphMessage struct {
	ID               string       `json:"id"`
	Subject          string       `json:"subject"`
	BodyPreview      string       `json:"bodyPreview"`
	ReceivedDateTime time.Time    `json:"receivedDateTime"`
	From             *recipient   `json:"from"`
	ConversationID   string       `json:"conversationId"`
	IsRead           bool         `json:"isRead"`
	Importance       string       `json:"importance"`
	WebLink          string       `json:"webLink"`
	Removed          *removedInfo `json:"@removed"`
}

// messagesResponse is a page from the messages or delta endpoints.
type messagesResponse struct {
	Value     []graphMessage `json:"value"`
	NextLink  string         `json:"@odata.nextLink"`
	DeltaLink string         `json:"@odata.deltaLink"`
}

// userResponse is the /me profile, used to validate the session.
type userResponse struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// replyRequest is the body of the message reply action.
type replyRequest struct {
	Comment string `json:"comment"`
}
