package enforce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-version"
	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sirupsen/logrus"
)

// ReleaserPolicy pairs an automated releaser with the upstream repo its
// releases must mirror. A release matching (repository, releaser,
// action) is legitimate only when the same tag already exists on
// mustMatchRepo.
type ReleaserPolicy struct {
	Repository    string   `json:"repository"`
	Releaser      string   `json:"releaser"`
	MustMatchRepo string   `json:"mustMatchRepo"`
	Actions       []string `json:"actions"`
}

// ParseReleaserPolicies decodes the JSON-encoded policy list. An empty
// input means no policies.
func ParseReleaserPolicies(encoded string) ([]ReleaserPolicy, error) {
	if encoded == "" {
		return nil, nil
	}
	policies := []ReleaserPolicy{}
	if err := json.Unmarshal([]byte(encoded), &policies); err != nil {
		return nil, fmt.Errorf("cannot decode trusted releaser policies: %w", err)
	}
	return policies, nil
}

func (e *Engine) handleRelease(ctx context.Context, event *eventPayload, payload []byte) error {
	for _, trusted := range config.Config.TrustedReleasers {
		if event.Sender.Login == trusted {
			return nil
		}
	}

	policies, err := ParseReleaserPolicies(config.Config.TrustedReleaserPolicies)
	if err != nil {
		return err
	}
	for _, policy := range policies {
		if !policy.matches(event) {
			continue
		}
		found, err := e.upstreamTagExists(ctx, event.Repository.Owner.Login, policy.MustMatchRepo, event.Release.TagName)
		if err != nil {
			return err
		}
		if found {
			return nil
		}
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Release %s on %s/%s by %s has no matching release on %s",
				event.Release.TagName, event.Repository.Owner.Login, event.Repository.Name, event.Sender.Login, policy.MustMatchRepo),
			event, payload, "")
		return nil
	}

	severity, ok := releaseSeverity(event.Action)
	if !ok {
		return nil
	}
	e.post(ctx, severity,
		fmt.Sprintf("Release %s was %s on %s/%s by %s",
			event.Release.TagName, event.Action, event.Repository.Owner.Login, event.Repository.Name, event.Sender.Login),
		event, payload, "")
	return nil
}

// releaseSeverity maps a release action to the severity of its alert.
// Unknown actions are not alerted on.
func releaseSeverity(action string) (alert.Severity, bool) {
	switch action {
	case "deleted":
		return alert.SeverityCritical, true
	case "unpublished", "edited":
		return alert.SeverityWarning, true
	case "created", "published", "prereleased":
		return alert.SeverityNormal, true
	}
	return alert.SeverityNormal, false
}

func (p *ReleaserPolicy) matches(event *eventPayload) bool {
	if p.Repository != event.Repository.Name || p.Releaser != event.Sender.Login {
		return false
	}
	for _, action := range p.Actions {
		if action == event.Action {
			return true
		}
	}
	return false
}

// upstreamTagExists probes mustMatchRepo for a release carrying the
// same tag. Releasers are not consistent about the v prefix, so every
// spelling of the same version is probed.
func (e *Engine) upstreamTagExists(ctx context.Context, org, repo, tag string) (bool, error) {
	client, err := e.provider.ClientFor(org, true)
	if err != nil {
		return false, err
	}

	for _, candidate := range tagCandidates(tag) {
		_, response, err := client.Rest().Repositories.GetReleaseByTag(ctx, org, repo, candidate)
		if err == nil {
			return true, nil
		}
		if response != nil && response.StatusCode == 404 {
			continue
		}
		logrus.Warnf("cannot probe release %s on %s/%s: %v", candidate, org, repo, err)
		return false, err
	}
	return false, nil
}

func tagCandidates(tag string) []string {
	candidates := []string{tag}
	v, err := version.NewVersion(tag)
	if err != nil {
		return candidates
	}
	for _, spelling := range []string{v.String(), "v" + v.String()} {
		if spelling != tag {
			candidates = append(candidates, spelling)
		}
	}
	return candidates
}
