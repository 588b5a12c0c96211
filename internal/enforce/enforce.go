package enforce

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/sirupsen/logrus"
)

// release-line branches look like 12-3-x or 12-x-y
var releaseLineRegexp = regexp.MustCompile(`(^[0-9]+-[0-9]+-x$)|(^[0-9]+-x-y$)`)

// ConfigLoader returns the current validated permissions document.
type ConfigLoader func(ctx context.Context) (*entity.PermissionsConfig, error)

/*
 * Engine classifies webhook events and applies enforcement. Handlers
 * are idempotent under repeated delivery: state is re-read immediately
 * before comparing, and a benign second enforcement round is accepted.
 */
type Engine struct {
	provider   github.ClientProvider
	cache      *github.ClientCache
	sink       alert.Sink
	loadConfig ConfigLoader
}

func NewEngine(provider github.ClientProvider, cache *github.ClientCache, sink alert.Sink, loadConfig ConfigLoader) *Engine {
	return &Engine{
		provider:   provider,
		cache:      cache,
		sink:       sink,
		loadConfig: loadConfig,
	}
}

// eventPayload is the superset of the webhook fields the engine reads.
type eventPayload struct {
	Action  string `json:"action"`
	Ref     string `json:"ref"`
	RefType string `json:"ref_type"`
	Sender  struct {
		Login string `json:"login"`
	} `json:"sender"`
	Repository struct {
		Name    string `json:"name"`
		Private bool   `json:"private"`
		Owner   struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Organization struct {
		Login string `json:"login"`
	} `json:"organization"`
	Member struct {
		Login string `json:"login"`
	} `json:"member"`
	Membership struct {
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"membership"`
	Changes struct {
		Permission struct {
			From string `json:"from"`
		} `json:"permission"`
		Login struct {
			From string `json:"from"`
		} `json:"login"`
	} `json:"changes"`
	Key struct {
		Title    string `json:"title"`
		ReadOnly bool   `json:"read_only"`
	} `json:"key"`
	Release struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
	} `json:"release"`
	PersonalAccessTokenRequest struct {
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"personal_access_token_request"`
}

// HandleEvent applies the classification table for one delivery.
// pull_request events are routed by the server, not here; unknown
// events are logged and accepted.
func (e *Engine) HandleEvent(ctx context.Context, eventType string, deliveryId string, payload []byte) error {
	logrus.WithFields(logrus.Fields{"delivery": deliveryId, "event": eventType}).Info("webhook event received")

	event := eventPayload{}
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("cannot decode %s payload: %w", eventType, err)
	}

	switch eventType {
	case "delete":
		return e.handleDelete(ctx, &event, payload)
	case "deploy_key":
		return e.handleDeployKey(ctx, &event, payload)
	case "member":
		switch event.Action {
		case "added", "edited", "removed":
			return e.enforceCollaborator(ctx, &event, payload)
		}
	case "meta":
		if event.Action == "deleted" {
			e.post(ctx, alert.SeverityCritical,
				fmt.Sprintf("Webhook on %s/%s was deleted", event.Repository.Owner.Login, event.Repository.Name),
				&event, payload, "")
		}
	case "organization":
		return e.handleOrganization(ctx, &event, payload)
	case "repository":
		return e.handleRepository(ctx, &event, payload)
	case "public":
		if e.isSelfEvent(&event) {
			return nil
		}
		e.post(ctx, alert.SeverityWarning,
			fmt.Sprintf("Repository %s/%s was made public", event.Repository.Owner.Login, event.Repository.Name),
			&event, payload, "")
	case "release":
		return e.handleRelease(ctx, &event, payload)
	case "personal_access_token_request":
		switch event.Action {
		case "created":
			e.post(ctx, alert.SeverityNormal,
				fmt.Sprintf("Personal access token requested by %s", event.Sender.Login),
				&event, payload, "")
		case "approved":
			e.post(ctx, alert.SeverityWarning,
				fmt.Sprintf("Personal access token request of %s was approved", event.Sender.Login),
				&event, payload, "")
		}
	default:
		logrus.WithField("event", eventType).Debug("unhandled event type")
	}
	return nil
}

// self-events for destructive-looking repository changes are our own
// doing and suppress alerting
func (e *Engine) isSelfEvent(event *eventPayload) bool {
	return config.Config.SelfLogin != "" && event.Sender.Login == config.Config.SelfLogin
}

func (e *Engine) handleDelete(ctx context.Context, event *eventPayload, payload []byte) error {
	switch event.RefType {
	case "tag":
		for _, trusted := range config.Config.TrustedReleasers {
			if event.Sender.Login == trusted {
				return nil
			}
		}
		e.post(ctx, alert.SeverityWarning,
			fmt.Sprintf("Tag %s was deleted on %s/%s by %s", event.Ref, event.Repository.Owner.Login, event.Repository.Name, event.Sender.Login),
			event, payload, "")
	case "branch":
		if releaseLineRegexp.MatchString(event.Ref) || (config.Config.ImportantBranch != "" && event.Ref == config.Config.ImportantBranch) {
			e.post(ctx, alert.SeverityCritical,
				fmt.Sprintf("Release-line branch %s was deleted on %s/%s by %s", event.Ref, event.Repository.Owner.Login, event.Repository.Name, event.Sender.Login),
				event, payload, "")
		}
	}
	return nil
}

func (e *Engine) handleDeployKey(ctx context.Context, event *eventPayload, payload []byte) error {
	if event.Action != "created" {
		return nil
	}
	if !event.Key.ReadOnly {
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Deploy key %q with write access was created on %s/%s", event.Key.Title, event.Repository.Owner.Login, event.Repository.Name),
			event, payload, "")
		return nil
	}
	if event.Repository.Private {
		e.post(ctx, alert.SeverityWarning,
			fmt.Sprintf("Read-only deploy key %q was created on private repo %s/%s", event.Key.Title, event.Repository.Owner.Login, event.Repository.Name),
			event, payload, "")
	}
	return nil
}

func (e *Engine) handleOrganization(ctx context.Context, event *eventPayload, payload []byte) error {
	login := event.Membership.User.Login
	switch event.Action {
	case "member_invited":
		e.post(ctx, alert.SeverityNormal,
			fmt.Sprintf("User was invited to organization %s", event.Organization.Login),
			event, payload, "")
	case "member_added":
		e.post(ctx, alert.SeverityNormal,
			fmt.Sprintf("User %s joined organization %s", login, event.Organization.Login),
			event, payload, "")
	case "member_removed":
		e.post(ctx, alert.SeverityNormal,
			fmt.Sprintf("User %s left organization %s", login, event.Organization.Login),
			event, payload, "")
	case "renamed":
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Organization %s was renamed (was %s)", event.Organization.Login, event.Changes.Login.From),
			event, payload, "")
	}
	return nil
}

func (e *Engine) handleRepository(ctx context.Context, event *eventPayload, payload []byte) error {
	switch event.Action {
	case "deleted":
		if e.isSelfEvent(event) {
			return nil
		}
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Repository %s/%s was deleted", event.Repository.Owner.Login, event.Repository.Name),
			event, payload, "")
	case "archived":
		if e.isSelfEvent(event) {
			return nil
		}
		e.post(ctx, alert.SeverityWarning,
			fmt.Sprintf("Repository %s/%s was archived", event.Repository.Owner.Login, event.Repository.Name),
			event, payload, "")
	}
	return nil
}

// post builds and sends one alert carrying the raw event payload as
// metadata.
func (e *Engine) post(ctx context.Context, severity alert.Severity, title string, event *eventPayload, payload []byte, outcome alert.Outcome) {
	builder := alert.NewMessage(severity, title)
	if event.Sender.Login != "" {
		builder.AddUser(event.Sender.Login)
	}
	if event.Repository.Name != "" {
		builder.AddRepo(event.Repository.Owner.Login, event.Repository.Name)
	}
	if outcome != "" {
		builder.SetOutcome(outcome)
	}
	builder.SetMetadata(payload)
	if err := e.sink.Send(ctx, builder.Build()); err != nil {
		logrus.Warnf("cannot send alert: %v", err)
	}
}
