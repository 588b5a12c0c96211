package alert

import (
	"fmt"
	"strings"

	"github.com/sheriff-project/sheriff/internal/config"
)

type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Outcome is the enforcement decision annotated on an alert.
type Outcome string

const (
	OutcomeAllow  Outcome = "ALLOW"
	OutcomeRevert Outcome = "REVERT"
	OutcomeAdjust Outcome = "ADJUST"
)

// Block is one Slack Block Kit block. Only the shapes we emit are
// modeled.
type Block struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
}

type TextObject struct {
	Type string `json:"type"` // mrkdwn or plain_text
	Text string `json:"text"`
}

// Message is a fully built alert, ready for a Sink.
type Message struct {
	Severity Severity
	Blocks   []Block
	// Metadata carries the raw triggering event payload, attached for
	// after-the-fact forensics
	Metadata []byte
}

/*
 * MessageBuilder assembles an alert block by block. The severity
 * decorates the title, the outcome (when set) is appended as its own
 * section so REVERT/ADJUST decisions stand out in the channel.
 */
type MessageBuilder struct {
	severity Severity
	title    string
	blocks   []Block
	outcome  Outcome
	metadata []byte
}

func NewMessage(severity Severity, title string) *MessageBuilder {
	return &MessageBuilder{
		severity: severity,
		title:    title,
	}
}

func (b *MessageBuilder) AddContext(format string, args ...interface{}) *MessageBuilder {
	b.blocks = append(b.blocks, Block{
		Type: "context",
		Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf(format, args...)},
	})
	return b
}

func (b *MessageBuilder) AddSection(format string, args ...interface{}) *MessageBuilder {
	b.blocks = append(b.blocks, Block{
		Type: "section",
		Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf(format, args...)},
	})
	return b
}

// AddUser adds a section naming a GitHub login.
func (b *MessageBuilder) AddUser(login string) *MessageBuilder {
	return b.AddSection("user: <https://github.com/%s|%s>", login, login)
}

// AddRepo adds a section naming a repository.
func (b *MessageBuilder) AddRepo(org, repo string) *MessageBuilder {
	return b.AddSection("repository: <https://github.com/%s/%s|%s/%s>", org, repo, org, repo)
}

func (b *MessageBuilder) AddDivider() *MessageBuilder {
	b.blocks = append(b.blocks, Block{Type: "divider"})
	return b
}

func (b *MessageBuilder) SetOutcome(outcome Outcome) *MessageBuilder {
	b.outcome = outcome
	return b
}

func (b *MessageBuilder) SetMetadata(payload []byte) *MessageBuilder {
	b.metadata = payload
	return b
}

func (b *MessageBuilder) Build() Message {
	title := b.title
	switch b.severity {
	case SeverityWarning:
		title = ":warning: " + title
	case SeverityCritical:
		title = ":rotating_light: " + title
	}

	blocks := []Block{{
		Type: "header",
		Text: &TextObject{Type: "plain_text", Text: title},
	}}
	blocks = append(blocks, b.blocks...)

	if b.outcome != "" {
		blocks = append(blocks, Block{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: "outcome: *" + string(b.outcome) + "*"},
		})
	}

	if config.Config.HostURL != "" {
		blocks = append(blocks, Block{
			Type: "context",
			Text: &TextObject{Type: "mrkdwn", Text: "sent by <" + config.Config.HostURL + "|sheriff>"},
		})
	}

	return Message{
		Severity: b.severity,
		Blocks:   blocks,
		Metadata: b.metadata,
	}
}

// PlainText flattens a message for logs and for transports that do not
// understand blocks.
func (m Message) PlainText() string {
	lines := make([]string, 0, len(m.Blocks))
	for _, block := range m.Blocks {
		if block.Text != nil {
			lines = append(lines, block.Text.Text)
		}
	}
	return strings.Join(lines, "\n")
}
