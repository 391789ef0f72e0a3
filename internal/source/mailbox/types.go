package mailbox

import "time"

// Envelope is the header-level view of one message, enough for the feed
// and for composing replies.
type Envelope struct {
	UID       uint32
	MessageID string
	Subject   string
	FromName  string
	FromAddr  string
	Date      time.Time
	Flags     []string
}

// mailboxState captures the INBOX counters used for cursor handling.
// UIDValidity changing between sessions means every stored UID is void.
type mailboxState struct {
	UIDNext     uint32
	UIDValidity uint32
}

// SMTPConfig holds the outgoing mail settings for replies.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}
