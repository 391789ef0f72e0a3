package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source"
)

// fakeSource serves canned FetchRecent results.
type fakeSource struct {
	src      model.Source
	account  string
	recent   []model.Notification
	fetchErr error
}

func (f *fakeSource) Type() model.Source                 { return f.src }
func (f *fakeSource) Account() string                    { return f.account }
func (f *fakeSource) CanReply() bool                     { return true }
func (f *fakeSource) Connect(context.Context) error      { return nil }
func (f *fakeSource) Disconnect(context.Context) error   { return nil }
func (f *fakeSource) Reply(context.Context, string, string) error {
	return nil
}

func (f *fakeSource) FetchRecent(context.Context, int) ([]model.Notification, error) {
	return f.recent, f.fetchErr
}

func (f *fakeSource) Listen(ctx context.Context, _ source.EmitFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

type nopStore struct{}

func (nopStore) Upsert(context.Context, model.Notification) error { return nil }

type nopHub struct{}

func (nopHub) SendNotification(model.Notification)              {}
func (nopHub) SendConnectionStatus(model.Source, string, bool)  {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRegistryWith(t *testing.T, sources ...source.Source) *Registry {
	t.Helper()
	reg := New(testLogger())
	for _, src := range sources {
		reg.Add(source.NewRunner(src, nopStore{}, nopHub{}, testLogger()))
	}
	return reg
}

func notificationAt(src model.Source, id string, ts time.Time) model.Notification {
	n := model.NewNotification(src, "acct", id)
	n.Timestamp = ts
	return n
}

func TestFetchAllRecentMergesNewestFirst(t *testing.T) {
	base := time.Now().UTC()

	gmail := &fakeSource{
		src: model.SourceGmail, account: "a",
		recent: []model.Notification{
			notificationAt(model.SourceGmail, "g1", base.Add(-2*time.Minute)),
			notificationAt(model.SourceGmail, "g2", base),
		},
	}
	slack := &fakeSource{
		src: model.SourceSlack, account: "b",
		recent: []model.Notification{
			notificationAt(model.SourceSlack, "s1", base.Add(-time.Minute)),
		},
	}

	reg := newRegistryWith(t, gmail, slack)
	merged := reg.FetchAllRecent(context.Background(), 50)

	require.Len(t, merged, 3)
	assert.Equal(t, "g2", merged[0].SourceID)
	assert.Equal(t, "s1", merged[1].SourceID)
	assert.Equal(t, "g1", merged[2].SourceID)
}

func TestFetchAllRecentIsolatesFailures(t *testing.T) {
	healthy := &fakeSource{
		src: model.SourceGmail, account: "a",
		recent: []model.Notification{
			notificationAt(model.SourceGmail, "g1", time.Now()),
		},
	}
	broken := &fakeSource{
		src: model.SourceOutlook, account: "b",
		fetchErr: errors.New("upstream down"),
	}

	reg := newRegistryWith(t, healthy, broken)
	merged := reg.FetchAllRecent(context.Background(), 50)

	require.Len(t, merged, 1)
	assert.Equal(t, "g1", merged[0].SourceID)
}

func TestFetchAllRecentTruncatesToLimit(t *testing.T) {
	base := time.Now().UTC()
	var recent []model.Notification
	for i := 0; i < 10; i++ {
		recent = append(recent, notificationAt(
			model.SourceGmail, "g", base.Add(time.Duration(i)*time.Second),
		))
	}

	reg := newRegistryWith(t, &fakeSource{
		src: model.SourceGmail, account: "a", recent: recent,
	})

	merged := reg.FetchAllRecent(context.Background(), 4)
	assert.Len(t, merged, 4)
}

func TestResolveForReply(t *testing.T) {
	work := &fakeSource{src: model.SourceGmail, account: "work@example.com"}
	personal := &fakeSource{src: model.SourceGmail, account: "me@example.com"}

	reg := newRegistryWith(t, work, personal)

	got, err := reg.ResolveForReply(model.SourceGmail, "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.Account())

	_, err = reg.ResolveForReply(model.SourceGmail, "other@example.com")
	assert.True(t, source.IsNotFound(err))

	_, err = reg.ResolveForReply(model.SourceSlack, "work@example.com")
	assert.True(t, source.IsNotFound(err))
}

type fakeTracker struct {
	created []model.TaskCreateRequest
}

func (f *fakeTracker) CreateTask(
	_ context.Context,
	req model.TaskCreateRequest,
) (map[string]any, error) {
	f.created = append(f.created, req)
	return map[string]any{"id": "task-1"}, nil
}

func TestCreateTaskRouting(t *testing.T) {
	reg := New(testLogger())
	tracker := &fakeTracker{}
	reg.AddTracker("asana", tracker)

	result, err := reg.CreateTask(context.Background(), model.TaskCreateRequest{
		Title:  "Follow up",
		Target: "asana",
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", result["id"])
	require.Len(t, tracker.created, 1)

	_, err = reg.CreateTask(context.Background(), model.TaskCreateRequest{
		Title:  "Follow up",
		Target: "jira",
	})
	assert.ErrorIs(t, err, source.ErrUnsupported)
}

func TestStatusesReflectRunners(t *testing.T) {
	src := &fakeSource{src: model.SourceSlack, account: "acme"}
	reg := newRegistryWith(t, src)

	statuses := reg.Statuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, model.SourceSlack, statuses[0].Service)
	assert.Equal(t, "acme", statuses[0].Account)
	assert.False(t, statuses[0].Connected)
}
