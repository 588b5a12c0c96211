package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestMessageBuilder(t *testing.T) {

	t.Run("happy path: severity decorates the title", func(t *testing.T) {
		msg := NewMessage(SeverityCritical, "visibility change refused").Build()

		assert.Equal(t, SeverityCritical, msg.Severity)
		assert.Equal(t, "header", msg.Blocks[0].Type)
		assert.Equal(t, ":rotating_light: visibility change refused", msg.Blocks[0].Text.Text)
	})

	t.Run("happy path: outcome is appended as its own section", func(t *testing.T) {
		msg := NewMessage(SeverityWarning, "collaborator added").
			AddUser("mallory").
			AddRepo("myorg", "myrepo").
			SetOutcome(OutcomeRevert).
			Build()

		last := msg.Blocks[len(msg.Blocks)-1]
		assert.Equal(t, "section", last.Type)
		assert.Equal(t, "outcome: *REVERT*", last.Text.Text)
	})

	t.Run("happy path: host url footer when configured", func(t *testing.T) {
		saved := config.Config.HostURL
		config.Config.HostURL = "https://sheriff.example.com"
		defer func() { config.Config.HostURL = saved }()

		msg := NewMessage(SeverityNormal, "title").Build()
		last := msg.Blocks[len(msg.Blocks)-1]
		assert.Equal(t, "context", last.Type)
		assert.Contains(t, last.Text.Text, "https://sheriff.example.com")
	})

	t.Run("happy path: plain text flattens every text block", func(t *testing.T) {
		msg := NewMessage(SeverityNormal, "title").
			AddContext("some context").
			AddDivider().
			AddSection("a section").
			Build()

		assert.Equal(t, "title\nsome context\na section", msg.PlainText())
	})
}

func TestSlackSink(t *testing.T) {

	t.Run("happy path: one post for a small message", func(t *testing.T) {
		posts := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			posts++
			body, _ := io.ReadAll(r.Body)
			var payload slackPayload
			assert.NoError(t, json.Unmarshal(body, &payload))
			assert.NotEmpty(t, payload.Blocks)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		sink := &SlackSink{WebhookURL: server.URL, httpClient: server.Client()}
		err := sink.Send(context.TODO(), NewMessage(SeverityNormal, "hello").Build())
		assert.NoError(t, err)
		assert.Equal(t, 1, posts)
	})

	t.Run("happy path: the triggering event payload is sent as metadata", func(t *testing.T) {
		var sent slackPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			assert.NoError(t, json.Unmarshal(body, &sent))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		event := []byte(`{"action": "member_added", "sender": {"login": "mallory"}}`)
		sink := &SlackSink{WebhookURL: server.URL, httpClient: server.Client()}
		err := sink.Send(context.TODO(), NewMessage(SeverityWarning, "collaborator added").SetMetadata(event).Build())
		assert.NoError(t, err)
		assert.JSONEq(t, string(event), string(sent.Metadata))
	})

	t.Run("happy path: long messages are chunked at 50 blocks, metadata on the first chunk only", func(t *testing.T) {
		chunks := []int{}
		metadatas := []json.RawMessage{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			var payload slackPayload
			assert.NoError(t, json.Unmarshal(body, &payload))
			chunks = append(chunks, len(payload.Blocks))
			metadatas = append(metadatas, payload.Metadata)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		builder := NewMessage(SeverityNormal, "many repos").SetMetadata([]byte(`{"action": "created"}`))
		for i := 0; i < 75; i++ {
			builder.AddSection("repo %d", i)
		}

		sink := &SlackSink{WebhookURL: server.URL, httpClient: server.Client()}
		err := sink.Send(context.TODO(), builder.Build())
		assert.NoError(t, err)
		// 76 blocks with the header: 50 + 26
		assert.Equal(t, []int{50, 26}, chunks)
		assert.JSONEq(t, `{"action": "created"}`, string(metadatas[0]))
		assert.Empty(t, metadatas[1])
	})

	t.Run("error path: non-200 from slack is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		sink := &SlackSink{WebhookURL: server.URL, httpClient: server.Client()}
		err := sink.Send(context.TODO(), NewMessage(SeverityNormal, "hello").Build())
		assert.Error(t, err)
	})

	t.Run("happy path: recording sink keeps messages", func(t *testing.T) {
		sink := &RecordingSink{}
		_ = sink.Send(context.TODO(), NewMessage(SeverityWarning, "one").Build())
		_ = sink.Send(context.TODO(), NewMessage(SeverityCritical, "two").Build())
		assert.Len(t, sink.Messages, 2)
		assert.Equal(t, SeverityCritical, sink.Messages[1].Severity)
	})
}
