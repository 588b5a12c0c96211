package engine

import (
	"encoding/json"
	"sort"

	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/utils"
)

// GithubRuleset is the upstream wire shape of a ruleset, shared by the
// normalizer, the differ and the executor payloads.
type GithubRuleset struct {
	Id           int                 `json:"id,omitempty"`
	Name         string              `json:"name"`
	Target       string              `json:"target"`
	Enforcement  string              `json:"enforcement"`
	BypassActors []GithubBypassActor `json:"bypass_actors,omitempty"`
	Conditions   *GithubConditions   `json:"conditions,omitempty"`
	Rules        []GithubRule        `json:"rules,omitempty"`
}

type GithubBypassActor struct {
	ActorId    int    `json:"actor_id"`
	ActorType  string `json:"actor_type"` // Integration or Team
	BypassMode string `json:"bypass_mode"`
}

type GithubConditions struct {
	RefName GithubRefNameCondition `json:"ref_name"`
}

type GithubRefNameCondition struct {
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

type GithubRule struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// declared rule token -> upstream rule type
var ruleTokenToType = map[string]string{
	"require_linear_history": "required_linear_history",
	"require_signed_commits": "required_signatures",
	"restrict_creation":      "creation",
	"restrict_deletion":      "deletion",
	"restrict_update":        "update",
	"restrict_force_push":    "non_fast_forward",
}

/*
 * NormalizeRuleset converts a declared ruleset into the upstream wire
 * shape: typed rules sorted by type, bypass actors resolved and sorted
 * by (actor_type, actor_id), default backfills applied. teamIds maps
 * team name -> upstream team id for bypass resolution.
 */
func NormalizeRuleset(ruleset *entity.Ruleset, teamIds map[string]int) *GithubRuleset {
	normalized := &GithubRuleset{
		Name:        ruleset.Name,
		Target:      ruleset.Target,
		Enforcement: ruleset.Enforcement,
		Conditions: &GithubConditions{
			RefName: GithubRefNameCondition{
				Include: ruleset.RefName.Include,
				Exclude: ruleset.RefName.Exclude,
			},
		},
	}
	if normalized.Enforcement == "" {
		normalized.Enforcement = "active"
	}
	if normalized.Conditions.RefName.Exclude == nil {
		normalized.Conditions.RefName.Exclude = []string{}
	}

	for _, token := range ruleset.Rules {
		normalized.Rules = append(normalized.Rules, GithubRule{Type: ruleTokenToType[token]})
	}

	if ruleset.RequirePullRequest != nil {
		normalized.Rules = append(normalized.Rules, GithubRule{
			Type:       "pull_request",
			Parameters: pullRequestParameters(ruleset.RequirePullRequest),
		})
	}

	if len(ruleset.RequireStatusCheck) > 0 {
		checks := make([]interface{}, 0, len(ruleset.RequireStatusCheck))
		for _, check := range ruleset.RequireStatusCheck {
			c := map[string]interface{}{"context": check.Context}
			if check.AppID != 0 {
				c["integration_id"] = check.AppID
			}
			checks = append(checks, c)
		}
		normalized.Rules = append(normalized.Rules, GithubRule{
			Type: "required_status_checks",
			Parameters: map[string]interface{}{
				"strict_required_status_checks_policy": false,
				"required_status_checks":               checks,
			},
		})
	}

	sort.Slice(normalized.Rules, func(i, j int) bool {
		return normalized.Rules[i].Type < normalized.Rules[j].Type
	})

	if ruleset.Bypass != nil {
		for _, appId := range ruleset.Bypass.Apps {
			normalized.BypassActors = append(normalized.BypassActors, GithubBypassActor{
				ActorId:    appId,
				ActorType:  "Integration",
				BypassMode: "always",
			})
		}
		for _, team := range ruleset.Bypass.Teams {
			normalized.BypassActors = append(normalized.BypassActors, GithubBypassActor{
				ActorId:    teamIds[team],
				ActorType:  "Team",
				BypassMode: "always",
			})
		}
		sortBypassActors(normalized.BypassActors)
	}

	return normalized
}

func pullRequestParameters(pr *entity.PullRequestRule) map[string]interface{} {
	parameters := map[string]interface{}{
		"dismiss_stale_reviews_on_push":     false,
		"require_code_owner_review":         false,
		"require_last_push_approval":        false,
		"required_approving_review_count":   0,
		"required_review_thread_resolution": false,
		"allowed_merge_methods":             []interface{}{"squash"},
	}
	if pr.DismissStaleReviewsOnPush != nil {
		parameters["dismiss_stale_reviews_on_push"] = *pr.DismissStaleReviewsOnPush
	}
	if pr.RequireCodeOwnerReview != nil {
		parameters["require_code_owner_review"] = *pr.RequireCodeOwnerReview
	}
	if pr.RequireLastPushApproval != nil {
		parameters["require_last_push_approval"] = *pr.RequireLastPushApproval
	}
	if pr.RequiredApprovingReviewCount != nil {
		parameters["required_approving_review_count"] = *pr.RequiredApprovingReviewCount
	}
	if pr.RequiredReviewThreadResolution != nil {
		parameters["required_review_thread_resolution"] = *pr.RequiredReviewThreadResolution
	}
	if len(pr.AllowedMergeMethods) > 0 {
		methods := make([]interface{}, 0, len(pr.AllowedMergeMethods))
		for _, m := range pr.AllowedMergeMethods {
			methods = append(methods, m)
		}
		parameters["allowed_merge_methods"] = methods
	}
	return parameters
}

func sortBypassActors(actors []GithubBypassActor) {
	sort.Slice(actors, func(i, j int) bool {
		if actors[i].ActorType != actors[j].ActorType {
			return actors[i].ActorType < actors[j].ActorType
		}
		return actors[i].ActorId < actors[j].ActorId
	})
}

/*
 * ProjectObservedRuleset rewrites an upstream ruleset into the same
 * canonical form NormalizeRuleset produces: id dropped, rules and
 * bypass actors sorted, upstream-only noise stripped from pull_request
 * parameters.
 */
func ProjectObservedRuleset(observed *GithubRuleset) *GithubRuleset {
	projected := &GithubRuleset{
		Name:        observed.Name,
		Target:      observed.Target,
		Enforcement: observed.Enforcement,
		Conditions:  observed.Conditions,
	}
	if projected.Conditions == nil {
		projected.Conditions = &GithubConditions{RefName: GithubRefNameCondition{Include: []string{}, Exclude: []string{}}}
	}
	if projected.Conditions.RefName.Exclude == nil {
		projected.Conditions.RefName.Exclude = []string{}
	}

	for _, rule := range observed.Rules {
		projected.Rules = append(projected.Rules, GithubRule{
			Type:       rule.Type,
			Parameters: stripNoiseParameters(rule),
		})
	}
	sort.Slice(projected.Rules, func(i, j int) bool {
		return projected.Rules[i].Type < projected.Rules[j].Type
	})

	projected.BypassActors = append(projected.BypassActors, observed.BypassActors...)
	sortBypassActors(projected.BypassActors)

	return projected
}

func stripNoiseParameters(rule GithubRule) map[string]interface{} {
	if rule.Type != "pull_request" || rule.Parameters == nil {
		return rule.Parameters
	}
	parameters := make(map[string]interface{}, len(rule.Parameters))
	for k, v := range rule.Parameters {
		if k == "automatic_copilot_code_review_enabled" {
			continue
		}
		parameters[k] = v
	}
	return parameters
}

// genericRuleset renders a ruleset through a JSON round-trip so typed
// values (int vs float64, []string vs []interface{}) compare equal.
func genericRuleset(ruleset *GithubRuleset) interface{} {
	raw, err := json.Marshal(ruleset)
	if err != nil {
		return nil
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return generic
}

func canonicalJSON(ruleset *GithubRuleset) string {
	canonical, err := json.MarshalIndent(genericRuleset(ruleset), "", "  ")
	if err != nil {
		return ""
	}
	return string(canonical)
}

// RulesetsEqual compares a normalized declared ruleset with a projected
// observed one. Equality is structural after a JSON round-trip, with
// lists compared as multisets: the platform does not guarantee ordering
// inside rule parameters.
func RulesetsEqual(declared, observed *GithubRuleset) bool {
	return utils.DeepEqualUnordered(genericRuleset(declared), genericRuleset(observed))
}
