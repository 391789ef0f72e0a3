package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// recentWindow bounds the initial search so a large mailbox does not
// flood the first sync.
const recentWindow = 7 * 24 * time.Hour

// IMAPClient wraps go-imap v2. Each operation dials, authenticates,
// selects INBOX, and logs out; no session is held between polls.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates an IMAP client configuration.
func NewIMAPClient(host, port, username, password string, useTLS bool) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      useTLS,
	}
}

// connect dials and authenticates. The caller must Logout the returned
// client.
func (c *IMAPClient) connect(_ context.Context) (*imapclient.Client, error) {
	addr := c.host + ":" + c.port

	var (
		client *imapclient.Client
		err    error
	)
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authenticating %s: %w", c.username, err)
	}
	return client, nil
}

// Validate dials and authenticates once, confirming the credentials work.
func (c *IMAPClient) Validate(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	return client.Logout().Wait()
}

// selectInbox selects INBOX and returns its cursor-relevant counters.
func selectInbox(client *imapclient.Client) (mailboxState, error) {
	data, err := client.Select("INBOX", nil).Wait()
	if err != nil {
		return mailboxState{}, fmt.Errorf("selecting INBOX: %w", err)
	}
	return mailboxState{
		UIDNext:     uint32(data.UIDNext),
		UIDValidity: data.UIDValidity,
	}, nil
}

// State returns the current INBOX counters, used to seed the cursor.
func (c *IMAPClient) State(ctx context.Context) (mailboxState, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return mailboxState{}, err
	}
	defer func() { _ = client.Logout().Wait() }()

	return selectInbox(client)
}

// FetchRecent returns envelopes of messages received inside the recent
// window, oldest first, capped at limit, along with the INBOX counters.
func (c *IMAPClient) FetchRecent(
	ctx context.Context,
	limit int,
) ([]Envelope, mailboxState, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, mailboxState{}, err
	}
	defer func() { _ = client.Logout().Wait() }()

	state, err := selectInbox(client)
	if err != nil {
		return nil, mailboxState{}, err
	}

	criteria := &imap.SearchCriteria{
		Since: time.Now().Add(-recentWindow),
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, state, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, state, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	envelopes, err := fetchEnvelopes(client, imap.UIDSetNum(uids...))
	return envelopes, state, err
}

// FetchNewSince returns envelopes of messages with UID greater than
// lastUID. A UIDVALIDITY change since the cursor was recorded voids all
// stored UIDs and comes back as a CursorInvalidError.
func (c *IMAPClient) FetchNewSince(
	ctx context.Context,
	lastUID, uidValidity uint32,
) ([]Envelope, mailboxState, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, mailboxState{}, err
	}
	defer func() { _ = client.Logout().Wait() }()

	state, err := selectInbox(client)
	if err != nil {
		return nil, mailboxState{}, err
	}

	if uidValidity != 0 && state.UIDValidity != uidValidity {
		return nil, state, &source.CursorInvalidError{
			Source:  model.SourceMailbox,
			Message: fmt.Sprintf(
				"UIDVALIDITY changed from %d to %d",
				uidValidity, state.UIDValidity,
			),
		}
	}

	if state.UIDNext <= lastUID+1 {
		return nil, state, nil
	}

	var uidSet imap.UIDSet
	uidSet.AddRange(imap.UID(lastUID+1), 0)

	envelopes, err := fetchEnvelopes(client, uidSet)
	return envelopes, state, err
}

// FetchEnvelope returns a single message's envelope by UID.
func (c *IMAPClient) FetchEnvelope(
	ctx context.Context,
	uid uint32,
) (*Envelope, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := selectInbox(client); err != nil {
		return nil, err
	}

	envelopes, err := fetchEnvelopes(client, imap.UIDSetNum(imap.UID(uid)))
	if err != nil {
		return nil, err
	}
	if len(envelopes) == 0 {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}
	return &envelopes[0], nil
}

// SetFlags adds or removes flags on a message.
func (c *IMAPClient) SetFlags(
	ctx context.Context,
	uid uint32,
	flags []imap.Flag,
	add bool,
) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := selectInbox(client); err != nil {
		return err
	}

	op := imap.StoreFlagsAdd
	if !add {
		op = imap.StoreFlagsDel
	}

	storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  flags,
	}, nil)
	return storeCmd.Close()
}

// fetchEnvelopes fetches envelope data for the given UID set.
func fetchEnvelopes(
	client *imapclient.Client,
	uidSet imap.UIDSet,
) ([]Envelope, error) {
	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	})
	defer fetchCmd.Close()

	var envelopes []Envelope
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		envelopes = append(envelopes, envelopeFromBuffer(buf))
	}

	if err := fetchCmd.Close(); err != nil {
		return envelopes, fmt.Errorf("fetching envelopes: %w", err)
	}
	return envelopes, nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			env.FromName = from.Name
			env.FromAddr = from.Addr()
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}
	return env
}
