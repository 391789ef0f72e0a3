package asana

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

func newTestAdapter() *Adapter {
	return New(
		"1200000000000001",
		"1200000000000001",
		"1200000000000002",
		func() (string, error) { return "pat", nil },
		time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func TestConvert(t *testing.T) {
	a := newTestAdapter()
	modified := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	task := &asanaTask{
		GID:        "task-1",
		Name:       "Ship the beta",
		Notes:      "Remaining work before cutover",
		ModifiedAt: modified,
		Assignee:   &asanaUser{GID: "u-1", Name: "Alice"},
		Projects:   []asanaProject{{GID: "p-1", Name: "Launch"}},
	}

	n := a.convert(task)

	assert.Equal(t, model.SourceAsana, n.Source)
	assert.Equal(t, "task-1", n.SourceID)
	assert.Equal(t, model.TypeTaskUpdate, n.Type)
	assert.Equal(t, "Ship the beta", n.Title)
	assert.Equal(t, "Alice", n.SenderName)
	assert.Equal(t, "Launch", n.ProjectName)
	assert.Equal(t, modified, n.Timestamp)
	assert.Equal(t, model.PriorityNormal, n.Priority)
}

func TestPriorityFromDueDate(t *testing.T) {
	overdue := time.Now().UTC().AddDate(0, 0, -3).Format("2006-01-02")
	assert.Equal(t, model.PriorityUrgent, priorityFromDueDate(overdue))

	soon := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	assert.Equal(t, model.PriorityHigh, priorityFromDueDate(soon))

	far := time.Now().UTC().AddDate(0, 0, 30).Format("2006-01-02")
	assert.Equal(t, model.PriorityNormal, priorityFromDueDate(far))

	assert.Equal(t, model.PriorityNormal, priorityFromDueDate(""))
	assert.Equal(t, model.PriorityNormal, priorityFromDueDate("not-a-date"))
}

func TestReplyIsUnsupported(t *testing.T) {
	a := newTestAdapter()

	err := a.Reply(context.Background(), "task-1", "hi")
	assert.ErrorIs(t, err, source.ErrUnsupported)
	assert.False(t, a.CanReply())
}
