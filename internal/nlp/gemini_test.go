package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candidateResponse(eventJSON string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": eventJSON}},
				},
			},
		},
	}
	out, _ := json.Marshal(resp)
	return string(out)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(testLogger(), "test-key")
	require.NoError(t, err)
	client.baseURL = srv.URL
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(testLogger(), "")
	assert.Error(t, err)
}

func TestParseTaskTimedEvent(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, candidateResponse(`{"summary":"Dentist","start":"2025-03-10T09:00:00","end":"2025-03-10T10:00:00","allDay":false}`))
	})

	reference := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	parsed, err := client.ParseTask(context.Background(), "dentist tomorrow at 9", reference)
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/"+defaultModel+":generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, "dentist tomorrow at 9")
	assert.Contains(t, gotBody.Contents[0].Parts[0].Text, "2025-03-09T08:00:00Z")
	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMIMEType)

	assert.Equal(t, "Dentist", parsed.Summary)
	assert.False(t, parsed.AllDay)

	title, date, clock, err := parsed.TaskFields()
	require.NoError(t, err)
	assert.Equal(t, "Dentist", title)
	assert.Equal(t, "2025-03-10", date)
	assert.Equal(t, "09:00", clock)
}

func TestParseTaskAllDayEvent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"summary":"Vacation","start":"2025-07-04","end":"2025-07-04","allDay":true}`))
	})

	parsed, err := client.ParseTask(context.Background(), "vacation on july 4th", time.Now())
	require.NoError(t, err)

	title, date, clock, err := parsed.TaskFields()
	require.NoError(t, err)
	assert.Equal(t, "Vacation", title)
	assert.Equal(t, "2025-07-04", date)
	assert.Empty(t, clock)
}

func TestParseTaskErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"server error",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			},
		},
		{
			"no candidates",
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"candidates":[]}`)
			},
		},
		{
			"candidate is not JSON",
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, candidateResponse("sure, here is your event"))
			},
		},
		{
			"missing summary",
			func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, candidateResponse(`{"start":"2025-07-04","allDay":true}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.ParseTask(context.Background(), "anything", time.Now())
			assert.Error(t, err)
		})
	}
}

func TestTaskFieldsRejectsMalformedStart(t *testing.T) {
	p := &ParsedEvent{Summary: "x", Start: "tomorrow", AllDay: false}
	_, _, _, err := p.TaskFields()
	assert.Error(t, err)

	p = &ParsedEvent{Summary: "x", Start: "2025-07-04T09:00:00", AllDay: true}
	_, _, _, err = p.TaskFields()
	assert.Error(t, err)
}

func TestNewTaskBuildsValidatedTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, candidateResponse(`{"summary":"Dentist","start":"2025-03-10T09:00:00","end":"2025-03-10T10:00:00","allDay":false}`))
	})

	task, err := client.NewTask(context.Background(), "dentist tomorrow at 9", time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Dentist", task.Title)
	assert.Equal(t, "09:00", task.Time)
}
