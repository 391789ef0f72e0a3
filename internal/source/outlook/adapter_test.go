package outlook

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/command-center/internal/model"
)

func newTestAdapter() *Adapter {
	return New(
		"work@example.com",
		func() (string, error) { return "token", nil },
		time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestConvert(t *testing.T) {
	a := newTestAdapter()
	received := time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)

	msg := &graphMessage{
		ID:               "m-1",
		Subject:          "Weekly sync",
		BodyPreview:      "Agenda attached",
		ReceivedDateTime: received,
		ConversationID:   "c-1",
		Importance:       "high",
		From: &recipient{EmailAddress: emailAddress{
			Name: "Bob Example", Address: "bob@example.com",
		}},
	}

	n := a.convert(msg)

	assert.Equal(t, model.SourceOutlook, n.Source)
	assert.Equal(t, "m-1", n.SourceID)
	assert.Equal(t, model.TypeEmail, n.Type)
	assert.Equal(t, "Weekly sync", n.Title)
	assert.Equal(t, "Bob Example", n.SenderName)
	assert.Equal(t, "c-1", n.ThreadID)
	assert.Equal(t, received, n.Timestamp)
	assert.Equal(t, model.PriorityHigh, n.Priority)
}

func TestConvertFallbacks(t *testing.T) {
	a := newTestAdapter()

	msg := &graphMessage{
		ID: "m-2",
		From: &recipient{EmailAddress: emailAddress{
			Address: "carol@example.com",
		}},
	}

	n := a.convert(msg)

	assert.Equal(t, "(no subject)", n.Title)
	assert.Equal(t, "carol@example.com", n.SenderName)
	assert.Equal(t, model.PriorityNormal, n.Priority)
	assert.False(t, n.Timestamp.IsZero())
}

func TestCursorClearedOnReset(t *testing.T) {
	a := newTestAdapter()

	a.setCursor("https://graph.microsoft.com/v1.0/delta?token=x")
	assert.NotEmpty(t, a.cursor())
	a.setCursor("")
	assert.Empty(t, a.cursor())
}
