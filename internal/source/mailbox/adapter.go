// Package mailbox watches a generic IMAP account and replies over SMTP.
// It covers mail providers without a dedicated integration.
package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// Settings describes one IMAP/SMTP account. The password is resolved
// through the credential layer at connect time.
type Settings struct {
	IMAPHost string
	IMAPPort string
	SMTPHost string
	SMTPPort string
	Username string
	UseTLS   bool
}

// Adapter is one IMAP account's integration. The sync cursor is the
// highest UID seen, paired with the mailbox UIDVALIDITY that scopes it.
type Adapter struct {
	settings     Settings
	password     source.TokenFunc
	pollInterval time.Duration
	log          *slog.Logger

	mu          sync.Mutex
	client      *IMAPClient
	smtpConfig  SMTPConfig
	lastUID     uint32
	uidValidity uint32
}

// New creates an adapter for one IMAP/SMTP account.
func New(
	settings Settings,
	password source.TokenFunc,
	pollInterval time.Duration,
	log *slog.Logger,
) *Adapter {
	return &Adapter{
		settings:     settings,
		password:     password,
		pollInterval: pollInterval,
		log:          log.With("source", "mailbox", "account", settings.Username),
	}
}

func (a *Adapter) Type() model.Source { return model.SourceMailbox }
func (a *Adapter) Account() string    { return a.settings.Username }
func (a *Adapter) CanReply() bool     { return true }

// Connect resolves the password and validates it with a full IMAP
// login/logout round trip.
func (a *Adapter) Connect(ctx context.Context) error {
	password, err := a.password()
	if err != nil {
		return fmt.Errorf(
			"resolving mailbox credentials for %s: %w", a.settings.Username, err,
		)
	}

	client := NewIMAPClient(
		a.settings.IMAPHost, a.settings.IMAPPort,
		a.settings.Username, password, a.settings.UseTLS,
	)
	if err := client.Validate(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	a.client = client
	a.smtpConfig = SMTPConfig{
		Host:     a.settings.SMTPHost,
		Port:     a.settings.SMTPPort,
		Username: a.settings.Username,
		Password: password,
		TLS:      a.settings.UseTLS,
	}
	a.mu.Unlock()
	return nil
}

// Disconnect drops the client configuration; every IMAP operation holds
// its own short-lived session.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.client = nil
	a.mu.Unlock()
	return nil
}

// FetchRecent returns recent envelopes and seeds the UID cursor at the
// current mailbox state when absent.
func (a *Adapter) FetchRecent(
	ctx context.Context,
	limit int,
) ([]model.Notification, error) {
	client, err := a.imapClient()
	if err != nil {
		return nil, err
	}

	envelopes, state, err := client.FetchRecent(ctx, limit)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.lastUID == 0 {
		a.lastUID = state.UIDNext - 1
		a.uidValidity = state.UIDValidity
	}
	a.mu.Unlock()

	notifications := make([]model.Notification, 0, len(envelopes))
	for _, env := range envelopes {
		notifications = append(notifications, a.convert(&env))
	}
	return notifications, nil
}

// Listen polls for messages above the UID cursor until ctx is cancelled.
// A UIDVALIDITY change voids the cursor and reseeds instead of erroring.
func (a *Adapter) Listen(ctx context.Context, emit source.EmitFunc) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		if err := a.poll(ctx, emit); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Adapter) poll(ctx context.Context, emit source.EmitFunc) error {
	client, err := a.imapClient()
	if err != nil {
		return err
	}

	a.mu.Lock()
	lastUID, validity := a.lastUID, a.uidValidity
	a.mu.Unlock()

	if lastUID == 0 {
		state, err := client.State(ctx)
		if err != nil {
			return err
		}
		a.setCursor(state.UIDNext-1, state.UIDValidity)
		return nil
	}

	envelopes, state, err := client.FetchNewSince(ctx, lastUID, validity)
	if err != nil {
		if source.IsCursorInvalid(err) {
			a.log.Warn("mailbox UIDVALIDITY changed, reseeding cursor")
			a.setCursor(0, 0)
			return nil
		}
		return err
	}
	a.setCursor(state.UIDNext-1, state.UIDValidity)

	for _, env := range envelopes {
		emit(ctx, a.convert(&env))
	}
	return nil
}

// Reply fetches the original envelope, sends the reply over SMTP, and
// marks the original message answered.
func (a *Adapter) Reply(ctx context.Context, sourceID, body string) error {
	uid, err := strconv.ParseUint(sourceID, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid mailbox message id %q: %w", sourceID, err)
	}

	client, err := a.imapClient()
	if err != nil {
		return err
	}

	env, err := client.FetchEnvelope(ctx, uint32(uid))
	if err != nil {
		return fmt.Errorf("fetching message for reply: %w", err)
	}
	if env.FromAddr == "" {
		return fmt.Errorf("message UID %d has no sender address", uid)
	}

	a.mu.Lock()
	smtpCfg := a.smtpConfig
	a.mu.Unlock()

	if err := sendReply(smtpCfg, env, body); err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}

	return client.SetFlags(
		ctx, uint32(uid), []imap.Flag{imap.FlagAnswered}, true,
	)
}

// convert maps an envelope to the canonical shape. Flagged unseen mail is
// promoted to high priority.
func (a *Adapter) convert(env *Envelope) model.Notification {
	sourceID := strconv.FormatUint(uint64(env.UID), 10)
	n := model.NewNotification(model.SourceMailbox, a.settings.Username, sourceID)
	n.Type = model.TypeEmail

	n.Title = env.Subject
	if n.Title == "" {
		n.Title = "(no subject)"
	}

	n.SenderName = env.FromName
	if n.SenderName == "" {
		n.SenderName = env.FromAddr
	}

	if !env.Date.IsZero() {
		n.Timestamp = env.Date.UTC()
	}

	seen, flagged := false, false
	for _, flag := range env.Flags {
		switch flag {
		case `\Seen`:
			seen = true
		case `\Flagged`:
			flagged = true
		}
	}
	if flagged && !seen {
		n.Priority = model.PriorityHigh
	}

	n.RawPayload = map[string]any{
		"message_id": env.MessageID,
		"flags":      env.Flags,
	}
	return n
}

func (a *Adapter) imapClient() (*IMAPClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil, fmt.Errorf("mailbox %s is not connected", a.settings.Username)
	}
	return a.client, nil
}

func (a *Adapter) setCursor(lastUID, uidValidity uint32) {
	a.mu.Lock()
	a.lastUID = lastUID
	a.uidValidity = uidValidity
	a.mu.Unlock()
}

// sendReply composes and sends a reply over SMTP.
func sendReply(cfg SMTPConfig, env *Envelope, replyBody string) error {
	subject := env.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", cfg.Username)
	fmt.Fprintf(&msg, "To: %s\r\n", env.FromAddr)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	if env.MessageID != "" {
		fmt.Fprintf(&msg, "In-Reply-To: <%s>\r\n", env.MessageID)
		fmt.Fprintf(&msg, "References: <%s>\r\n", env.MessageID)
	}
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(replyBody)

	addr := cfg.Host + ":" + cfg.Port
	if cfg.TLS {
		return sendSMTPWithTLS(addr, cfg, env.FromAddr, msg.String())
	}
	return sendSMTPWithStartTLS(addr, cfg, env.FromAddr, msg.String())
}

// sendSMTPWithTLS sends over an implicit TLS connection.
func sendSMTPWithTLS(addr string, cfg SMTPConfig, to, body string) error {
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, cfg.Username, to, body)
}

// sendSMTPWithStartTLS sends using STARTTLS.
func sendSMTPWithStartTLS(addr string, cfg SMTPConfig, to, body string) error {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: cfg.Host}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	return sendMailViaSMTPClient(client, cfg.Username, to, body)
}

// sendMailViaSMTPClient sends a message on an authenticated SMTP client.
func sendMailViaSMTPClient(client *smtp.Client, from, to, body string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
