package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sirupsen/logrus"
)

/*
 * Executor is the write side of the reconciler. Every method takes the
 * dryrun flag: when set the call is logged and reported but no API
 * call is made. Write errors are collected, not returned: the
 * reconciler continues with the next action.
 */
type Executor interface {
	CreateCustomProperty(ctx context.Context, lc *observability.LogCollection, dryrun bool, property *GithubCustomProperty)
	DeleteCustomProperty(ctx context.Context, lc *observability.LogCollection, dryrun bool, propertyName string)

	InviteUser(ctx context.Context, lc *observability.LogCollection, dryrun bool, login string)

	CreateTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, name string, privacy string, parentId *int, maintainers []string, members []string) *GithubTeam
	UpdateTeamPrivacy(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, privacy string)
	UpdateTeamParent(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, parentId *int)
	TeamAddMember(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, login string, role string)
	TeamUpdateMember(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, login string, role string)
	TeamRemoveMember(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, login string)
	DeleteTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string)

	CreateRepository(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, visibility string)
	UpdateRepositorySetting(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, setting string, value interface{})
	UpdateRepositoryVisibility(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, private bool)
	SetForkPRApprovalPolicy(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string)
	RepoAddTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, teamSlug string, permission string, level entity.AccessLevel)
	RepoUpdateTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, teamSlug string, permission string)
	RepoRemoveTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, teamSlug string)
	RepoRemoveInvitation(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, invitationId int, login string)
	AddCollaborator(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, login string, permission string)
	RemoveCollaborator(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, login string)
	UpdateRepositoryProperties(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, values map[string]entity.PropertyValue)

	AddRepositoryRuleset(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, ruleset *GithubRuleset)
	UpdateRepositoryRuleset(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, rulesetId int, ruleset *GithubRuleset)
	DeleteRepositoryRuleset(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, rulesetId int)

	// AddAlertLine appends a line to the run report without performing
	// any call; the reconciler uses it for warnings and refusals
	AddAlertLine(format string, args ...interface{})
	AlertLines() []string
}

type GithubExecutor struct {
	client github.Client
	org    string
	lines  []string
}

func NewGithubExecutor(client github.Client, org string) *GithubExecutor {
	return &GithubExecutor{
		client: client,
		org:    org,
	}
}

func (e *GithubExecutor) AddAlertLine(format string, args ...interface{}) {
	e.lines = append(e.lines, fmt.Sprintf(format, args...))
}

func (e *GithubExecutor) AlertLines() []string {
	return e.lines
}

// execute logs, reports and runs one mutation. In dry-run the textual
// message is still logged and appended to the run report.
func (e *GithubExecutor) execute(ctx context.Context, lc *observability.LogCollection, dryrun bool, command string, message string, call func() error) {
	logrus.WithFields(map[string]interface{}{
		"dryrun":  dryrun,
		"command": command,
		"org":     e.org,
	}).Infof("%s", message)
	lc.AddInfo(map[string]any{"dryrun": dryrun, "command": command}, "%s", message)
	e.AddAlertLine("%s", message)

	if dryrun {
		return
	}
	if err := call(); err != nil {
		lc.AddError(fmt.Errorf("%s: %w", command, err))
	}
}

func (e *GithubExecutor) CreateCustomProperty(ctx context.Context, lc *observability.LogCollection, dryrun bool, property *GithubCustomProperty) {
	e.execute(ctx, lc, dryrun, "create_custom_property",
		fmt.Sprintf("Upserting custom property %s", property.PropertyName),
		func() error {
			body := map[string]interface{}{
				"value_type": property.ValueType,
				"required":   property.Required,
			}
			if property.Description != "" {
				body["description"] = property.Description
			}
			if property.AllowedValues != nil {
				body["allowed_values"] = property.AllowedValues
			}
			if property.DefaultValue != nil {
				if property.DefaultValue.IsList {
					body["default_value"] = property.DefaultValue.List
				} else {
					body["default_value"] = property.DefaultValue.Scalar
				}
			}
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/properties/schema/%s", e.org, url.PathEscape(property.PropertyName)),
				"", "PUT", body)
			return err
		})
}

func (e *GithubExecutor) DeleteCustomProperty(ctx context.Context, lc *observability.LogCollection, dryrun bool, propertyName string) {
	e.execute(ctx, lc, dryrun, "delete_custom_property",
		fmt.Sprintf("Deleting custom property %s", propertyName),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/properties/schema/%s", e.org, url.PathEscape(propertyName)),
				"", "DELETE", nil)
			return err
		})
}

// InviteUser issues a direct_member invitation through the membership
// endpoint, which accepts a login instead of a user id.
func (e *GithubExecutor) InviteUser(ctx context.Context, lc *observability.LogCollection, dryrun bool, login string) {
	e.execute(ctx, lc, dryrun, "invite_user",
		fmt.Sprintf("Inviting %s to the organization", login),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/memberships/%s", e.org, url.PathEscape(login)),
				"", "PUT", map[string]interface{}{"role": "member"})
			return err
		})
}

// CreateTeam creates the team with its initial memberships in one
// command. In dry-run a sentinel team with id -1 is returned so the
// rest of the flow can proceed.
func (e *GithubExecutor) CreateTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, name string, privacy string, parentId *int, maintainers []string, members []string) *GithubTeam {
	created := &GithubTeam{Id: -1, Name: name, Slug: name, Privacy: privacy}
	e.execute(ctx, lc, dryrun, "create_team",
		fmt.Sprintf("Creating Team %s", name),
		func() error {
			body := map[string]interface{}{
				"name":    name,
				"privacy": privacy,
			}
			if parentId != nil {
				body["parent_team_id"] = *parentId
			}
			response, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams", e.org), "", "POST", body)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(response, created); err != nil {
				return err
			}
			for _, login := range maintainers {
				if _, err := e.client.CallRestAPI(ctx,
					fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", e.org, created.Slug, url.PathEscape(login)),
					"", "PUT", map[string]interface{}{"role": "maintainer"}); err != nil {
					return err
				}
			}
			for _, login := range members {
				if _, err := e.client.CallRestAPI(ctx,
					fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", e.org, created.Slug, url.PathEscape(login)),
					"", "PUT", map[string]interface{}{"role": "member"}); err != nil {
					return err
				}
			}
			return nil
		})
	return created
}

func (e *GithubExecutor) UpdateTeamPrivacy(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, privacy string) {
	e.execute(ctx, lc, dryrun, "update_team_privacy",
		fmt.Sprintf("Updating team %s privacy to %s", teamSlug, privacy),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s", e.org, teamSlug),
				"", "PATCH", map[string]interface{}{"privacy": privacy})
			return err
		})
}

func (e *GithubExecutor) UpdateTeamParent(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, parentId *int) {
	e.execute(ctx, lc, dryrun, "update_team_parent",
		fmt.Sprintf("Updating team %s parent", teamSlug),
		func() error {
			var parent interface{}
			if parentId != nil {
				parent = *parentId
			}
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s", e.org, teamSlug),
				"", "PATCH", map[string]interface{}{"parent_team_id": parent})
			return err
		})
}

func (e *GithubExecutor) TeamAddMember(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, login string, role string) {
	e.execute(ctx, lc, dryrun, "team_add_member",
		fmt.Sprintf("Adding %s to team %s as %s", login, teamSlug, role),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", e.org, teamSlug, url.PathEscape(login)),
				"", "PUT", map[string]interface{}{"role": role})
			return err
		})
}

func (e *GithubExecutor) TeamUpdateMember(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, login string, role string) {
	e.execute(ctx, lc, dryrun, "team_update_member",
		fmt.Sprintf("Updating %s in team %s to %s", login, teamSlug, role),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", e.org, teamSlug, url.PathEscape(login)),
				"", "PUT", map[string]interface{}{"role": role})
			return err
		})
}

func (e *GithubExecutor) TeamRemoveMember(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string, login string) {
	e.execute(ctx, lc, dryrun, "team_remove_member",
		fmt.Sprintf("Removing %s from team %s", login, teamSlug),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s/memberships/%s", e.org, teamSlug, url.PathEscape(login)),
				"", "DELETE", nil)
			return err
		})
}

func (e *GithubExecutor) DeleteTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, teamSlug string) {
	e.execute(ctx, lc, dryrun, "delete_team",
		fmt.Sprintf("Deleting team %s", teamSlug),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s", e.org, teamSlug),
				"", "DELETE", nil)
			return err
		})
}

// CreateRepository creates the repository with the wiki disabled.
// visibility "current" is never passed here: the reconciler filters it.
func (e *GithubExecutor) CreateRepository(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, visibility string) {
	e.execute(ctx, lc, dryrun, "create_repository",
		fmt.Sprintf("Creating Repo %s", reponame),
		func() error {
			body := map[string]interface{}{
				"name":     reponame,
				"has_wiki": false,
			}
			if visibility != "" {
				body["private"] = visibility == "private"
			}
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/repos", e.org), "", "POST", body)
			return err
		})
}

func (e *GithubExecutor) UpdateRepositorySetting(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, setting string, value interface{}) {
	e.execute(ctx, lc, dryrun, "update_repository_setting",
		fmt.Sprintf("Updating repo %s setting %s to %v", reponame, setting, value),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s", e.org, reponame),
				"", "PATCH", map[string]interface{}{setting: value})
			return err
		})
}

func (e *GithubExecutor) UpdateRepositoryVisibility(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, private bool) {
	visibility := "public"
	if private {
		visibility = "private"
	}
	e.execute(ctx, lc, dryrun, "update_repository_visibility",
		fmt.Sprintf("Updating repo %s visibility to %s", reponame, visibility),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s", e.org, reponame),
				"", "PATCH", map[string]interface{}{"private": private})
			return err
		})
}

func (e *GithubExecutor) SetForkPRApprovalPolicy(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string) {
	e.execute(ctx, lc, dryrun, "set_fork_pr_approval_policy",
		fmt.Sprintf("Requiring approval for all external contributors on repo %s", reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/actions/permissions/fork-pr-contributor-approval", e.org, reponame),
				"", "PUT", map[string]interface{}{"approval_policy": "all_external_contributors"})
			return err
		})
}

func (e *GithubExecutor) RepoAddTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, teamSlug string, permission string, level entity.AccessLevel) {
	e.execute(ctx, lc, dryrun, "repo_add_team",
		fmt.Sprintf("Adding %s team to repo %s at base access level %s", teamSlug, reponame, level),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s/repos/%s/%s", e.org, teamSlug, e.org, reponame),
				"", "PUT", map[string]interface{}{"permission": permission})
			return err
		})
}

func (e *GithubExecutor) RepoUpdateTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, teamSlug string, permission string) {
	e.execute(ctx, lc, dryrun, "repo_update_team",
		fmt.Sprintf("Updating %s team permission on repo %s to %s", teamSlug, reponame, permission),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s/repos/%s/%s", e.org, teamSlug, e.org, reponame),
				"", "PUT", map[string]interface{}{"permission": permission})
			return err
		})
}

func (e *GithubExecutor) RepoRemoveTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, teamSlug string) {
	e.execute(ctx, lc, dryrun, "repo_remove_team",
		fmt.Sprintf("Removing %s team from repo %s", teamSlug, reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/orgs/%s/teams/%s/repos/%s/%s", e.org, teamSlug, e.org, reponame),
				"", "DELETE", nil)
			return err
		})
}

func (e *GithubExecutor) RepoRemoveInvitation(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, invitationId int, login string) {
	e.execute(ctx, lc, dryrun, "repo_remove_invitation",
		fmt.Sprintf("Removing pending invitation of %s on repo %s", login, reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/invitations/%d", e.org, reponame, invitationId),
				"", "DELETE", nil)
			return err
		})
}

func (e *GithubExecutor) AddCollaborator(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, login string, permission string) {
	e.execute(ctx, lc, dryrun, "add_collaborator",
		fmt.Sprintf("Adding %s as external collaborator on repo %s with permission %s", login, reponame, permission),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/collaborators/%s", e.org, reponame, url.PathEscape(login)),
				"", "PUT", map[string]interface{}{"permission": permission})
			return err
		})
}

func (e *GithubExecutor) RemoveCollaborator(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, login string) {
	e.execute(ctx, lc, dryrun, "remove_collaborator",
		fmt.Sprintf("Removing external collaborator %s from repo %s", login, reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/collaborators/%s", e.org, reponame, url.PathEscape(login)),
				"", "DELETE", nil)
			return err
		})
}

// UpdateRepositoryProperties performs the bulk property values upsert.
func (e *GithubExecutor) UpdateRepositoryProperties(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, values map[string]entity.PropertyValue) {
	e.execute(ctx, lc, dryrun, "update_repository_properties",
		fmt.Sprintf("Updating custom property values on repo %s", reponame),
		func() error {
			properties := []map[string]interface{}{}
			for name, value := range values {
				v := map[string]interface{}{"property_name": name}
				if value.IsList {
					v["value"] = value.List
				} else {
					v["value"] = value.Scalar
				}
				properties = append(properties, v)
			}
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/properties/values", e.org, reponame),
				"", "PATCH", map[string]interface{}{"properties": properties})
			return err
		})
}

func (e *GithubExecutor) AddRepositoryRuleset(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, ruleset *GithubRuleset) {
	e.execute(ctx, lc, dryrun, "add_repository_ruleset",
		fmt.Sprintf("Creating ruleset %s on repo %s", ruleset.Name, reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/rulesets", e.org, reponame),
				"", "POST", rulesetBody(ruleset))
			return err
		})
}

func (e *GithubExecutor) UpdateRepositoryRuleset(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, rulesetId int, ruleset *GithubRuleset) {
	e.execute(ctx, lc, dryrun, "update_repository_ruleset",
		fmt.Sprintf("Updating ruleset %s on repo %s", ruleset.Name, reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/rulesets/%d", e.org, reponame, rulesetId),
				"", "PUT", rulesetBody(ruleset))
			return err
		})
}

func (e *GithubExecutor) DeleteRepositoryRuleset(ctx context.Context, lc *observability.LogCollection, dryrun bool, reponame string, rulesetId int) {
	e.execute(ctx, lc, dryrun, "delete_repository_ruleset",
		fmt.Sprintf("Deleting ruleset %d on repo %s", rulesetId, reponame),
		func() error {
			_, err := e.client.CallRestAPI(ctx,
				fmt.Sprintf("/repos/%s/%s/rulesets/%d", e.org, reponame, rulesetId),
				"", "DELETE", nil)
			return err
		})
}

// rulesetBody re-encodes the wire shape as the generic map the client
// expects.
func rulesetBody(ruleset *GithubRuleset) map[string]interface{} {
	raw, _ := json.Marshal(ruleset)
	body := map[string]interface{}{}
	_ = json.Unmarshal(raw, &body)
	delete(body, "id")
	return body
}
