package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/command-center/internal/hub"
	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/registry"
	"github.com/nhle/command-center/internal/source"
	"github.com/nhle/command-center/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore is an in-memory Store with scripted failure modes.
type fakeStore struct {
	notifications map[string]*model.Notification
	statusErr     error
	lastStatus    model.TriageStatus
	lastSnooze    *time.Time
}

func newFakeStore(notifications ...model.Notification) *fakeStore {
	fs := &fakeStore{notifications: make(map[string]*model.Notification)}
	for i := range notifications {
		n := notifications[i]
		fs.notifications[n.ID] = &n
	}
	return fs
}

func (f *fakeStore) Upsert(_ context.Context, n model.Notification) error {
	f.notifications[n.ID] = &n
	return nil
}

func (f *fakeStore) SetStatus(
	_ context.Context,
	id string,
	status model.TriageStatus,
	snoozedUntil *time.Time,
) (bool, error) {
	if f.statusErr != nil {
		return false, f.statusErr
	}
	n, ok := f.notifications[id]
	if !ok {
		return false, nil
	}
	n.Status = status
	f.lastStatus = status
	f.lastSnooze = snoozedUntil
	return true, nil
}

func (f *fakeStore) List(
	_ context.Context,
	_ store.ListOptions,
) ([]model.Notification, error) {
	var out []model.Notification
	for _, n := range f.notifications {
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeStore) GetByID(
	_ context.Context,
	id string,
) (*model.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return nil, nil
	}
	return n, nil
}

func (f *fakeStore) Close() error { return nil }

// replySource is a Source whose Reply behavior is scripted.
type replySource struct {
	src      model.Source
	account  string
	canReply bool
	replyErr error
	replies  []string
}

func (r *replySource) Type() model.Source               { return r.src }
func (r *replySource) Account() string                  { return r.account }
func (r *replySource) CanReply() bool                   { return r.canReply }
func (r *replySource) Connect(context.Context) error    { return nil }
func (r *replySource) Disconnect(context.Context) error { return nil }

func (r *replySource) FetchRecent(context.Context, int) ([]model.Notification, error) {
	return nil, nil
}

func (r *replySource) Listen(ctx context.Context, _ source.EmitFunc) error {
	<-ctx.Done()
	return ctx.Err()
}

func (r *replySource) Reply(_ context.Context, sourceID, body string) error {
	if r.replyErr != nil {
		return r.replyErr
	}
	r.replies = append(r.replies, sourceID+":"+body)
	return nil
}

type nopStore struct{}

func (nopStore) Upsert(context.Context, model.Notification) error { return nil }

type nopHub struct{}

func (nopHub) SendNotification(model.Notification)             {}
func (nopHub) SendConnectionStatus(model.Source, string, bool) {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(fs *fakeStore, sources ...source.Source) *Server {
	log := testLogger()
	reg := registry.New(log)
	for _, src := range sources {
		reg.Add(source.NewRunner(src, nopStore{}, nopHub{}, log))
	}
	return NewServer(fs, reg, hub.New(log), log)
}

func doJSON(
	t *testing.T,
	router *gin.Engine,
	method, path string,
	body any,
) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func storedNotification(id string, src model.Source, account string) model.Notification {
	n := model.NewNotification(src, account, "item-1")
	n.ID = id
	return n
}

func TestHealth(t *testing.T) {
	s := newTestServer(newFakeStore())
	rec := doJSON(t, s.Router(), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListNotificationsRejectsBadParams(t *testing.T) {
	s := newTestServer(newFakeStore())
	router := s.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/notifications?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/notifications?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/notifications?status=unread", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMarkReadAction(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	s := newTestServer(fs)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{Action: model.ActionMarkRead})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusRead, fs.lastStatus)
}

func TestSnoozeDefaultsToThirtyMinutes(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	s := newTestServer(fs)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{Action: model.ActionSnooze})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, fs.lastSnooze)
	assert.WithinDuration(t,
		time.Now().Add(30*time.Minute), *fs.lastSnooze, time.Minute)
}

func TestSnoozeHonorsRequestedMinutes(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	s := newTestServer(fs)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action:  model.ActionSnooze,
			Payload: map[string]any{"snooze_minutes": 60},
		})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, fs.lastSnooze)
	assert.WithinDuration(t,
		time.Now().Add(60*time.Minute), *fs.lastSnooze, time.Minute)
}

func TestSnoozeRejectsNonPositiveMinutes(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	s := newTestServer(fs)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action:  model.ActionSnooze,
			Payload: map[string]any{"snooze_minutes": -5},
		})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownActionRejected(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	s := newTestServer(fs)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{Action: "explode"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActionOnUnknownNotification(t *testing.T) {
	s := newTestServer(newFakeStore())

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/ghost/action",
		model.ActionRequest{Action: model.ActionArchive})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidTransitionMapsToConflict(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	fs.statusErr = &store.InvalidTransitionError{
		From: model.StatusArchived,
		To:   model.StatusRead,
	}
	s := newTestServer(fs)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{Action: model.ActionMarkRead})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func replyPayload(src model.Source, account, sourceID, body string) map[string]any {
	return map[string]any{
		"body":           body,
		"source":         string(src),
		"source_account": account,
		"source_id":      sourceID,
	}
}

func TestReplyFlow(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "work@example.com"))
	src := &replySource{
		src: model.SourceGmail, account: "work@example.com", canReply: true,
	}
	s := newTestServer(fs, src)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action:  model.ActionReply,
			Payload: replyPayload(model.SourceGmail, "work@example.com", "item-1", "on it"),
		})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, src.replies, 1)
	assert.Equal(t, "item-1:on it", src.replies[0])
	assert.Equal(t, model.StatusActioned, fs.lastStatus,
		"successful reply marks the notification actioned")
}

func TestReplyRequiresRoutingFields(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "a"))
	s := newTestServer(fs)
	router := s.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{Action: model.ActionReply})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action: model.ActionReply,
			Payload: map[string]any{
				"body": "hi", "source": "gmail", "source_account": "a",
			},
		})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "source_id is required")
}

func TestReplyWithoutMatchingAdapter(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "other@example.com"))
	src := &replySource{
		src: model.SourceGmail, account: "work@example.com", canReply: true,
	}
	s := newTestServer(fs, src)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action:  model.ActionReply,
			Payload: replyPayload(model.SourceGmail, "other@example.com", "item-1", "hi"),
		})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplyToReadOnlySource(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceSlack, "acme"))
	src := &replySource{src: model.SourceSlack, account: "acme", canReply: false}
	s := newTestServer(fs, src)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action:  model.ActionReply,
			Payload: replyPayload(model.SourceSlack, "acme", "item-1", "hi"),
		})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReplyVendorFailure(t *testing.T) {
	fs := newFakeStore(storedNotification("n-1", model.SourceGmail, "work@example.com"))
	src := &replySource{
		src: model.SourceGmail, account: "work@example.com",
		canReply: true, replyErr: errors.New("smtp down"),
	}
	s := newTestServer(fs, src)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/notifications/n-1/action",
		model.ActionRequest{
			Action:  model.ActionReply,
			Payload: replyPayload(model.SourceGmail, "work@example.com", "item-1", "hi"),
		})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEqual(t, model.StatusActioned, fs.lastStatus,
		"failed reply leaves triage untouched")
}

type recordingTracker struct {
	requests []model.TaskCreateRequest
}

func (r *recordingTracker) CreateTask(
	_ context.Context,
	req model.TaskCreateRequest,
) (map[string]any, error) {
	r.requests = append(r.requests, req)
	return map[string]any{"gid": "t-1"}, nil
}

func TestCreateTask(t *testing.T) {
	log := testLogger()
	reg := registry.New(log)
	tracker := &recordingTracker{}
	reg.AddTracker("asana", tracker)
	s := NewServer(newFakeStore(), reg, hub.New(log), log)

	rec := doJSON(t, s.Router(), http.MethodPost, "/api/tasks",
		model.TaskCreateRequest{Title: "Follow up", Target: "asana"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, tracker.requests, 1)

	rec = doJSON(t, s.Router(), http.MethodPost, "/api/tasks",
		model.TaskCreateRequest{Title: "Follow up", Target: "linear"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doJSON(t, s.Router(), http.MethodPost, "/api/tasks",
		model.TaskCreateRequest{Target: "asana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "title is required")
}

func TestServiceStatus(t *testing.T) {
	src := &replySource{src: model.SourceGmail, account: "work@example.com"}
	s := newTestServer(newFakeStore(), src)

	rec := doJSON(t, s.Router(), http.MethodGet, "/api/services/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Services []registry.AdapterStatus `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Services, 1)
	assert.False(t, payload.Services[0].Connected)
}
