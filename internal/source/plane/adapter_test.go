package plane

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

func newTestAdapter() *Adapter {
	a := New(
		"acme",
		"https://app.plane.so/api/v1",
		"acme",
		"proj-default",
		func() (string, error) { return "key", nil },
		time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	a.projects = map[string]string{"proj-1": "Platform"}
	return a
}

func TestConvert(t *testing.T) {
	a := newTestAdapter()
	updated := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)

	issue := &planeIssue{
		ID:                  "issue-1",
		Name:                "Fix login redirect",
		DescriptionStripped: "Redirect loops on expired session",
		Priority:            "urgent",
		Project:             "proj-1",
		UpdatedAt:           updated,
	}

	n := a.convert(issue)

	assert.Equal(t, model.SourcePlane, n.Source)
	assert.Equal(t, "acme", n.SourceAccount)
	assert.Equal(t, "issue-1", n.SourceID)
	assert.Equal(t, model.TypeTaskUpdate, n.Type)
	assert.Equal(t, "Fix login redirect", n.Title)
	assert.Equal(t, model.PriorityUrgent, n.Priority)
	assert.Equal(t, "Platform", n.ProjectName)
	assert.Equal(t, updated, n.Timestamp)
}

func TestMapPriority(t *testing.T) {
	assert.Equal(t, model.PriorityUrgent, mapPriority("urgent"))
	assert.Equal(t, model.PriorityHigh, mapPriority("high"))
	assert.Equal(t, model.PriorityLow, mapPriority("low"))
	assert.Equal(t, model.PriorityLow, mapPriority("none"))
	assert.Equal(t, model.PriorityNormal, mapPriority("medium"))
	assert.Equal(t, model.PriorityNormal, mapPriority(""))
}

func TestCursorAdvancesAfterPoll(t *testing.T) {
	a := newTestAdapter()

	a.setCursor(time.Time{})
	a.mu.Lock()
	assert.True(t, a.lastCheck.IsZero())
	a.mu.Unlock()

	now := time.Now().UTC()
	a.setCursor(now)
	a.mu.Lock()
	assert.Equal(t, now, a.lastCheck)
	a.mu.Unlock()
}

func TestReplyIsUnsupported(t *testing.T) {
	a := newTestAdapter()

	err := a.Reply(t.Context(), "issue-1", "hello")
	assert.ErrorIs(t, err, source.ErrUnsupported)
}
