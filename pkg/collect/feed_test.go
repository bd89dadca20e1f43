package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrail/ghactivity/internal/testutil"
	"github.com/codetrail/ghactivity/pkg/activity"
)

func decodeEvent(t *testing.T, raw string) feedEvent {
	t.Helper()
	var ev feedEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	return ev
}

func TestParseFeedEventPushExpansion(t *testing.T) {
	ev := decodeEvent(t, `{
		"id": "42", "type": "PushEvent",
		"actor": {"login": "octocat"}, "repo": {"name": "octocat/hello"},
		"created_at": "2026-08-01T10:00:00Z",
		"payload": {"commits": [
			{"sha": "aaa", "message": "first", "author": {"name": "Octo", "email": "octo@example.com"}},
			{"sha": "bbb", "message": "second", "author": {"name": "Octo", "email": ""}}
		]}
	}`)

	records := parseFeedEvent(ev)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, activity.KindPush, r.Kind)
		assert.Equal(t, "42", r.EventID)
		assert.Equal(t, activity.SourceFeed, r.Source)
		require.NotNil(t, r.Commit)
	}
	assert.Equal(t, "aaa", records[0].Commit.SHA)
	assert.Equal(t, "octo@example.com", records[0].Commit.AuthorEmail)
	assert.Equal(t, "https://github.com/octocat/hello/commit/bbb", records[1].Commit.URL)
}

func TestParseFeedEventCommentCarriesIssue(t *testing.T) {
	ev := decodeEvent(t, `{
		"type": "IssueCommentEvent",
		"actor": {"login": "octocat"}, "repo": {"name": "octocat/hello"},
		"created_at": "2026-08-01T10:00:00Z",
		"payload": {"action": "created", "issue": {"number": 5, "title": "broken", "state": "open"}}
	}`)

	records := parseFeedEvent(ev)
	require.Len(t, records, 1)
	assert.Equal(t, activity.KindComment, records[0].Kind)
	require.NotNil(t, records[0].Issue)
	assert.Equal(t, 5, records[0].Issue.Number)
}

func TestParseFeedEventUnknownType(t *testing.T) {
	ev := decodeEvent(t, `{"type": "GollumEvent", "created_at": "2026-08-01T10:00:00Z", "payload": {}}`)
	records := parseFeedEvent(ev)
	require.Len(t, records, 1)
	assert.Equal(t, activity.KindOther, records[0].Kind)
}

func TestFeedFetchFiltersWindow(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	inside := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	outside := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	body := fmt.Sprintf(`[
		{"id": "1", "type": "WatchEvent", "actor": {"login": "octocat"}, "repo": {"name": "octocat/hello"}, "created_at": %q, "payload": {}},
		{"id": "2", "type": "WatchEvent", "actor": {"login": "octocat"}, "repo": {"name": "octocat/hello"}, "created_at": %q, "payload": {}}
	]`, inside.Format(time.RFC3339), outside.Format(time.RFC3339))
	mock.SetEventsResponse("octocat", testutil.MockResponse{StatusCode: http.StatusOK, Body: body})

	adapter := &feedAdapter{d: newTestDispatcher(t, mock, "test-token"), logger: zerolog.Nop()}

	var emitted []activity.Record
	complete, err := adapter.fetch(context.Background(), "octocat",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		FeedMaxPages,
		func(r activity.Record) { emitted = append(emitted, r) })
	require.NoError(t, err)

	assert.True(t, complete)
	require.Len(t, emitted, 1)
	assert.Equal(t, "1", emitted[0].EventID)
}

func TestFeedFetchTruncatedWalkIsIncomplete(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	created := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)
	page2 := mock.URL() + "/users/octocat/events/public?page=2"
	mock.SetHandler("/users/octocat/events/public", func(w http.ResponseWriter, r *http.Request) {
		testutil.SetQuotaHeaders(w.Header(), 4999, 5000, time.Now().Add(time.Hour))
		w.Header().Set("Link", testutil.LinkNext(page2))
		fmt.Fprintf(w, `[{"id": "1", "type": "WatchEvent", "actor": {"login": "octocat"}, "repo": {"name": "octocat/hello"}, "created_at": %q, "payload": {}}]`,
			created.Format(time.RFC3339))
	})

	adapter := &feedAdapter{d: newTestDispatcher(t, mock, "test-token"), logger: zerolog.Nop()}

	// A one-page cap against a feed that keeps going: truncated, so
	// older activity exists that this walk never saw.
	complete, err := adapter.fetch(context.Background(), "octocat",
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		1,
		func(activity.Record) {})
	require.NoError(t, err)
	assert.False(t, complete)
}

func TestListRepoCommits(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	mock.SetResponse("/repos/octocat/hello/commits", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body: `[{
			"sha": "ccc",
			"html_url": "https://github.com/octocat/hello/commit/ccc",
			"commit": {"message": "deep find", "author": {"name": "Octo", "email": "o@example.com", "date": "2026-04-01T09:00:00Z"}},
			"author": {"login": "octocat"}
		}]`,
	})

	adapter := &feedAdapter{d: newTestDispatcher(t, mock, "test-token"), logger: zerolog.Nop()}

	var emitted []activity.Record
	err := adapter.listRepoCommits(context.Background(), "octocat", "octocat/hello",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		func(r activity.Record) { emitted = append(emitted, r) })
	require.NoError(t, err)

	require.Len(t, emitted, 1)
	assert.Equal(t, activity.KindPush, emitted[0].Kind)
	assert.Equal(t, "ccc", emitted[0].Commit.SHA)
	assert.Equal(t, "octocat/hello", emitted[0].Repo)
	assert.Equal(t, "octocat", emitted[0].Actor)
}

func TestListRepoCommitsEmptyRepo(t *testing.T) {
	mock := testutil.NewMockGitHub()
	defer mock.Close()

	mock.SetResponse("/repos/octocat/empty/commits", testutil.MockResponse{
		StatusCode: http.StatusConflict,
		Body:       `{"message": "Git Repository is empty."}`,
	})

	adapter := &feedAdapter{d: newTestDispatcher(t, mock, "test-token"), logger: zerolog.Nop()}
	err := adapter.listRepoCommits(context.Background(), "octocat", "octocat/empty",
		time.Time{}, time.Now(), func(activity.Record) {
			t.Fatal("no records expected from an empty repository")
		})
	assert.NoError(t, err)
}
