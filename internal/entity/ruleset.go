package entity

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// The declared rule tokens. Each expands to a typed entry in the
// upstream wire shape (see engine normalization).
var RulesetRuleTokens = []string{
	"restrict_creation",
	"restrict_update",
	"restrict_deletion",
	"require_linear_history",
	"require_signed_commits",
	"restrict_force_push",
}

type RulesetBypass struct {
	Teams []string `yaml:"teams,omitempty"`
	Apps  []int    `yaml:"apps,omitempty"`
}

type RefNameCondition struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude,omitempty"`
}

// PullRequestRule carries the pull_request rule parameters. Unset fields
// are backfilled with the upstream defaults during normalization.
type PullRequestRule struct {
	DismissStaleReviewsOnPush      *bool    `yaml:"dismiss_stale_reviews_on_push,omitempty"`
	RequireCodeOwnerReview         *bool    `yaml:"require_code_owner_review,omitempty"`
	RequireLastPushApproval        *bool    `yaml:"require_last_push_approval,omitempty"`
	RequiredApprovingReviewCount   *int     `yaml:"required_approving_review_count,omitempty"`
	RequiredReviewThreadResolution *bool    `yaml:"required_review_thread_resolution,omitempty"`
	AllowedMergeMethods            []string `yaml:"allowed_merge_methods,omitempty"`
}

type StatusCheck struct {
	Context string `yaml:"context"`
	AppID   int    `yaml:"app_id,omitempty"`
}

type Ruleset struct {
	Name               string           `yaml:"name"`
	Target             string           `yaml:"target"`                // branch, tag
	Enforcement        string           `yaml:"enforcement,omitempty"` // disabled, active (default), evaluate
	Bypass             *RulesetBypass   `yaml:"bypass,omitempty"`
	RefName            RefNameCondition `yaml:"ref_name"`
	Rules              []string         `yaml:"rules,omitempty"`
	RequirePullRequest *PullRequestRule `yaml:"require_pull_request,omitempty"`
	RequireStatusCheck []StatusCheck    `yaml:"require_status_checks,omitempty"`
}

func (r *Ruleset) validate(orgname, where string) *ConfigError {
	if r.Name == "" {
		return NewConfigInvalid("org %s: %s: ruleset with empty name", orgname, where)
	}
	if r.Target != "branch" && r.Target != "tag" {
		return NewConfigInvalid("org %s: %s: ruleset %s target must be branch or tag, got %q", orgname, where, r.Name, r.Target)
	}
	switch r.Enforcement {
	case "", "disabled", "active", "evaluate":
	default:
		return NewConfigInvalid("org %s: %s: ruleset %s has invalid enforcement %q", orgname, where, r.Name, r.Enforcement)
	}
	if r.Bypass != nil && len(r.Bypass.Teams) == 0 && len(r.Bypass.Apps) == 0 {
		return NewConfigInvalid("org %s: %s: ruleset %s declares bypass with neither teams nor apps", orgname, where, r.Name)
	}
	if len(r.RefName.Include) == 0 {
		return NewConfigInvalid("org %s: %s: ruleset %s must include at least one ref name", orgname, where, r.Name)
	}
	seen := make(map[string]bool)
	for _, rule := range r.Rules {
		found := false
		for _, token := range RulesetRuleTokens {
			if rule == token {
				found = true
				break
			}
		}
		if !found {
			return NewConfigInvalid("org %s: %s: ruleset %s has unknown rule %q", orgname, where, r.Name, rule)
		}
		if seen[rule] {
			return NewConfigInvalid("org %s: %s: ruleset %s declares rule %q twice", orgname, where, r.Name, rule)
		}
		seen[rule] = true
	}
	for _, check := range r.RequireStatusCheck {
		if check.Context == "" {
			return NewConfigInvalid("org %s: %s: ruleset %s has a status check with empty context", orgname, where, r.Name)
		}
	}
	return nil
}

/*
 * RulesetEntry is one element of a repository's rulesets list: either a
 * full inline Ruleset or the name of a common ruleset. References are
 * resolved against common_rulesets during normalization.
 */
type RulesetEntry struct {
	Ref     string
	Ruleset *Ruleset
}

func (e *RulesetEntry) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&e.Ref)
	case yaml.MappingNode:
		e.Ruleset = &Ruleset{}
		return value.Decode(e.Ruleset)
	}
	return fmt.Errorf("ruleset entry must be a name or a ruleset object")
}

func (e RulesetEntry) MarshalYAML() (interface{}, error) {
	if e.Ref != "" {
		return e.Ref, nil
	}
	return e.Ruleset, nil
}
