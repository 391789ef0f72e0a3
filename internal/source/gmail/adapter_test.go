package gmail

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/command-center/internal/model"
	"github.com/nhle/command-center/internal/source/rest"
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

	msg := &message{
		ID:           "m-1",
		ThreadID:     "t-1",
		Snippet:      "Quick question about the launch",
		LabelIDs:     []string{"INBOX", "UNREAD"},
		InternalDate: "1756400000000",
		Payload: messagePayload{Headers: []header{
			{Name: "Subject", Value: "Launch plan"},
			{Name: "From", Value: "Alice Example <alice@example.com>"},
		}},
	}

	n := a.convert(msg)

	assert.Equal(t, model.SourceGmail, n.Source)
	assert.Equal(t, "work@example.com", n.SourceAccount)
	assert.Equal(t, "m-1", n.SourceID)
	assert.Equal(t, model.TypeEmail, n.Type)
	assert.Equal(t, "Launch plan", n.Title)
	assert.Equal(t, "Alice Example", n.SenderName)
	assert.Equal(t, "Quick question about the launch", n.Body)
	assert.Equal(t, "t-1", n.ThreadID)
	assert.Equal(t, time.UnixMilli(1756400000000).UTC(), n.Timestamp)
	assert.Equal(t, model.StatusUnread, n.Status)
	assert.True(t, n.Actionable)
}

func TestConvertFallbacks(t *testing.T) {
	a := newTestAdapter()

	msg := &message{
		ID: "m-2",
		Payload: messagePayload{Headers: []header{
			{Name: "From", Value: "bob@example.com"},
		}},
	}

	n := a.convert(msg)

	assert.Equal(t, "(no subject)", n.Title)
	assert.Equal(t, "bob@example.com", n.SenderName)
	assert.False(t, n.Timestamp.IsZero())
}

// newFakeAPI serves the inbox endpoints the adapter touches. Message ids
// present in broken answer 500 on retrieval.
func newFakeAPI(t *testing.T, refs []messageRef, broken map[string]bool) *Adapter {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/users/me/profile", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(profileResponse{
			EmailAddress: "work@example.com",
			HistoryID:    "100",
		})
	})
	mux.HandleFunc("/users/me/messages", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(messageListResponse{Messages: refs})
	})
	mux.HandleFunc("/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/users/me/messages/"):]
		if broken[id] {
			http.Error(w, "backend error", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(message{
			ID:           id,
			ThreadID:     "t-" + id,
			Snippet:      "snippet",
			LabelIDs:     []string{"INBOX"},
			InternalDate: "1756400000000",
			Payload: messagePayload{Headers: []header{
				{Name: "Subject", Value: "Subject " + id},
				{Name: "From", Value: "alice@example.com"},
			}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	a := newTestAdapter()
	a.client = &Client{rest: rest.NewClient(srv.URL)}
	return a
}

func TestFetchRecentReturnsSameItemsTwice(t *testing.T) {
	a := newFakeAPI(t, []messageRef{{ID: "m-1"}, {ID: "m-2"}}, nil)

	first, err := a.FetchRecent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := a.FetchRecent(t.Context(), 10)
	require.NoError(t, err)
	assert.Len(t, second, 2,
		"a later snapshot repeats items the session has already seen")
	assert.Equal(t, "100", a.cursor(), "first snapshot seeds the cursor")
}

func TestFetchRecentSkipsUnreadableMessage(t *testing.T) {
	a := newFakeAPI(t,
		[]messageRef{{ID: "m-1"}, {ID: "m-2"}},
		map[string]bool{"m-1": true},
	)

	items, err := a.FetchRecent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, items, 1, "one unreadable message never aborts the batch")
	assert.Equal(t, "m-2", items[0].SourceID)
}

func TestMarkSeen(t *testing.T) {
	a := newTestAdapter()

	require.False(t, a.markSeen("m-1"))
	assert.True(t, a.markSeen("m-1"), "second observation is a duplicate")
	assert.False(t, a.markSeen("m-2"))
}

func TestCursorRoundTrip(t *testing.T) {
	a := newTestAdapter()

	assert.Empty(t, a.cursor())
	a.setCursor("12345")
	assert.Equal(t, "12345", a.cursor())
	a.setCursor("")
	assert.Empty(t, a.cursor())
}

func TestHasLabel(t *testing.T) {
	assert.True(t, hasLabel([]string{"INBOX", "UNREAD"}, "INBOX"))
	assert.False(t, hasLabel([]string{"SPAM"}, "INBOX"))
	assert.False(t, hasLabel(nil, "INBOX"))
}

func TestHeaderLookupIsCaseInsensitive(t *testing.T) {
	msg := &message{Payload: messagePayload{Headers: []header{
		{Name: "subject", Value: "hi"},
	}}}
	assert.Equal(t, "hi", msg.header("Subject"))
	assert.Empty(t, msg.header("Message-ID"))
}
