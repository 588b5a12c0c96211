package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sirupsen/logrus"
)

// slack caps a single chat.postMessage at 50 blocks
const maxBlocksPerMessage = 50

type Sink interface {
	Send(ctx context.Context, message Message) error
}

// NewSink returns the Slack sink when a webhook URL or token is
// configured, the null sink otherwise.
func NewSink() Sink {
	if config.Config.SlackWebhookURL != "" || config.Config.SlackToken != "" {
		return &SlackSink{
			WebhookURL: config.Config.SlackWebhookURL,
			Token:      config.Config.SlackToken,
			httpClient: &http.Client{},
		}
	}
	return &NullSink{}
}

type SlackSink struct {
	WebhookURL string
	Token      string
	Channel    string
	httpClient *http.Client
}

type slackPayload struct {
	Channel  string          `json:"channel,omitempty"`
	Text     string          `json:"text"`
	Blocks   []Block         `json:"blocks,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// Send posts the message, splitting it when it exceeds the Slack block
// limit. The originating event payload rides along as metadata on the
// first chunk.
func (s *SlackSink) Send(ctx context.Context, message Message) error {
	if message.Metadata != nil {
		logrus.WithFields(logrus.Fields{
			"severity": message.Severity,
		}).Debugf("alert metadata: %s", string(message.Metadata))
	}

	metadata := json.RawMessage(message.Metadata)
	blocks := message.Blocks
	for len(blocks) > 0 {
		chunk := blocks
		if len(chunk) > maxBlocksPerMessage {
			chunk = blocks[:maxBlocksPerMessage]
		}
		blocks = blocks[len(chunk):]

		if err := s.post(ctx, slackPayload{
			Channel:  s.Channel,
			Text:     message.PlainText(),
			Blocks:   chunk,
			Metadata: metadata,
		}); err != nil {
			return err
		}
		metadata = nil
	}
	return nil
}

func (s *SlackSink) post(ctx context.Context, payload slackPayload) error {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %v", err)
	}

	url := s.WebhookURL
	if url == "" {
		url = "https://slack.com/api/chat.postMessage"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create new request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.WebhookURL == "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received non-200 response: %v", resp.Status)
	}

	return nil
}

// NullSink drops everything. Used when no Slack transport is
// configured, and by tests that do not care about alerts.
type NullSink struct{}

func (s *NullSink) Send(ctx context.Context, message Message) error {
	logrus.WithField("severity", message.Severity).Debugf("alert (no sink): %s", message.PlainText())
	return nil
}

// RecordingSink keeps every message in memory for assertions.
type RecordingSink struct {
	Messages []Message
}

func (s *RecordingSink) Send(ctx context.Context, message Message) error {
	s.Messages = append(s.Messages, message)
	return nil
}
