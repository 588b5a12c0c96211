package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/github"
)

type GithubTeam struct {
	Id         int     `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Privacy    string  `json:"privacy"` // closed or secret
	ParentSlug *string `json:"-"`
}

type GithubRepository struct {
	Id       int    `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
	Fork     bool   `json:"fork"`
	Private  bool   `json:"private"`
	HasWiki  bool   `json:"has_wiki"`
	// nil when the platform did not report a count; the visibility
	// guard treats unknown the same as "too popular to touch"
	StargazersCount *int `json:"stargazers_count"`
}

type GithubCollaborator struct {
	Login       string          `json:"login"`
	Permissions map[string]bool `json:"permissions"`
}

type GithubInvitation struct {
	Id          int    `json:"id"`
	Login       string `json:"-"`
	Permissions string `json:"permissions"` // read, triage, write, maintain, admin
}

type GithubCustomProperty struct {
	PropertyName  string                `json:"property_name"`
	ValueType     string                `json:"value_type"`
	Required      bool                  `json:"required"`
	DefaultValue  *entity.PropertyValue `json:"default_value,omitempty"`
	Description   string                `json:"description,omitempty"`
	AllowedValues []string              `json:"allowed_values,omitempty"`
}

/*
 * Remote is the read side of one organization's live state. The
 * implementation memoizes org-wide listings for the duration of a
 * reconcile run; the reconciler invalidates after creating a team or a
 * repository.
 */
type Remote interface {
	OrgMembers(ctx context.Context) (map[string]bool, error)
	OrgOwners(ctx context.Context) (map[string]bool, error)
	PendingOrgInvitations(ctx context.Context) (map[string]bool, error)
	Teams(ctx context.Context) (map[string]*GithubTeam, error) // by name
	TeamMembers(ctx context.Context, teamSlug string, role string) ([]string, error)
	Repositories(ctx context.Context) (map[string]*GithubRepository, error) // by name
	RepositoryTeams(ctx context.Context, repo string) (map[string]map[string]bool, error)
	RepositoryCollaborators(ctx context.Context, repo string) ([]*GithubCollaborator, error)
	RepositoryInvitations(ctx context.Context, repo string) ([]*GithubInvitation, error)
	RepositoryRulesets(ctx context.Context, repo string) (map[string]int, error)
	RepositoryRuleset(ctx context.Context, repo string, rulesetId int) (*GithubRuleset, error)
	RepositoryProperties(ctx context.Context, repo string) (map[string]entity.PropertyValue, error)
	CustomProperties(ctx context.Context) (map[string]*GithubCustomProperty, error)
	ForkPRApprovalPolicy(ctx context.Context, repo string) (string, error)
	// ResolveUser returns the canonical login for a login, as the
	// platform spells it
	ResolveUser(ctx context.Context, login string) (string, error)

	InvalidateTeams()
	InvalidateRepositories()
}

type RemoteImpl struct {
	client github.Client
	org    string

	orgMembers   map[string]bool
	orgOwners    map[string]bool
	teams        map[string]*GithubTeam
	repositories map[string]*GithubRepository
}

func NewRemoteImpl(client github.Client, org string) *RemoteImpl {
	return &RemoteImpl{
		client: client,
		org:    org,
	}
}

func (r *RemoteImpl) InvalidateTeams() {
	r.teams = nil
}

func (r *RemoteImpl) InvalidateRepositories() {
	r.repositories = nil
}

func (r *RemoteImpl) OrgMembers(ctx context.Context) (map[string]bool, error) {
	if r.orgMembers != nil {
		return r.orgMembers, nil
	}
	members, err := r.listLogins(ctx, fmt.Sprintf("/orgs/%s/members", r.org), "role=all")
	if err != nil {
		return nil, err
	}
	r.orgMembers = members
	return members, nil
}

func (r *RemoteImpl) OrgOwners(ctx context.Context) (map[string]bool, error) {
	if r.orgOwners != nil {
		return r.orgOwners, nil
	}
	owners, err := r.listLogins(ctx, fmt.Sprintf("/orgs/%s/members", r.org), "role=admin")
	if err != nil {
		return nil, err
	}
	r.orgOwners = owners
	return owners, nil
}

func (r *RemoteImpl) PendingOrgInvitations(ctx context.Context) (map[string]bool, error) {
	pending := make(map[string]bool)
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/orgs/%s/invitations", r.org),
			fmt.Sprintf("per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var invitations []struct {
			Login string `json:"login"`
		}
		if err := json.Unmarshal(body, &invitations); err != nil {
			return nil, fmt.Errorf("cannot decode org invitations: %v", err)
		}
		for _, invitation := range invitations {
			if invitation.Login != "" {
				pending[invitation.Login] = true
			}
		}
		if len(invitations) < 100 {
			break
		}
	}
	return pending, nil
}

func (r *RemoteImpl) listLogins(ctx context.Context, endpoint, parameters string) (map[string]bool, error) {
	logins := make(map[string]bool)
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx, endpoint,
			fmt.Sprintf("%s&per_page=100&page=%d", parameters, page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var users []struct {
			Login string `json:"login"`
		}
		if err := json.Unmarshal(body, &users); err != nil {
			return nil, fmt.Errorf("cannot decode %s: %v", endpoint, err)
		}
		for _, user := range users {
			logins[user.Login] = true
		}
		if len(users) < 100 {
			break
		}
	}
	return logins, nil
}

func (r *RemoteImpl) Teams(ctx context.Context) (map[string]*GithubTeam, error) {
	if r.teams != nil {
		return r.teams, nil
	}
	teams := make(map[string]*GithubTeam)
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/orgs/%s/teams", r.org),
			fmt.Sprintf("per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var pageTeams []struct {
			Id      int    `json:"id"`
			Name    string `json:"name"`
			Slug    string `json:"slug"`
			Privacy string `json:"privacy"`
			Parent  *struct {
				Slug string `json:"slug"`
			} `json:"parent"`
		}
		if err := json.Unmarshal(body, &pageTeams); err != nil {
			return nil, fmt.Errorf("cannot decode teams: %v", err)
		}
		for _, t := range pageTeams {
			team := &GithubTeam{
				Id:      t.Id,
				Name:    t.Name,
				Slug:    t.Slug,
				Privacy: t.Privacy,
			}
			if t.Parent != nil {
				parentSlug := t.Parent.Slug
				team.ParentSlug = &parentSlug
			}
			teams[t.Name] = team
		}
		if len(pageTeams) < 100 {
			break
		}
	}
	r.teams = teams
	return teams, nil
}

const listTeamMembersByRole = `
query listTeamMembers($orgLogin: String!, $teamSlug: String!, $role: TeamMemberRole!) {
  organization(login: $orgLogin) {
    team(slug: $teamSlug) {
      members(membership: IMMEDIATE, role: $role, first: 100) {
        nodes {
          login
        }
      }
    }
  }
}
`

type teamMembersResponse struct {
	Data struct {
		Organization struct {
			Team struct {
				Members struct {
					Nodes []struct {
						Login string `json:"login"`
					} `json:"nodes"`
				} `json:"members"`
			} `json:"team"`
		} `json:"organization"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// TeamMembers returns the immediate members of a team holding the given
// role (MEMBER or MAINTAINER), capped at 100.
func (r *RemoteImpl) TeamMembers(ctx context.Context, teamSlug string, role string) ([]string, error) {
	body, err := r.client.QueryGraphQLAPI(ctx, listTeamMembersByRole, map[string]interface{}{
		"orgLogin": r.org,
		"teamSlug": teamSlug,
		"role":     role,
	})
	if err != nil {
		return nil, err
	}
	var response teamMembersResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("cannot decode team members: %v", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("graphql error on team %s: %v", teamSlug, response.Errors[0].Message)
	}
	members := make([]string, 0, len(response.Data.Organization.Team.Members.Nodes))
	for _, node := range response.Data.Organization.Team.Members.Nodes {
		members = append(members, node.Login)
	}
	return members, nil
}

func (r *RemoteImpl) Repositories(ctx context.Context) (map[string]*GithubRepository, error) {
	if r.repositories != nil {
		return r.repositories, nil
	}
	repositories := make(map[string]*GithubRepository)
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/orgs/%s/repos", r.org),
			fmt.Sprintf("per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var pageRepos []*GithubRepository
		if err := json.Unmarshal(body, &pageRepos); err != nil {
			return nil, fmt.Errorf("cannot decode repositories: %v", err)
		}
		for _, repo := range pageRepos {
			repositories[repo.Name] = repo
		}
		if len(pageRepos) < 100 {
			break
		}
	}
	r.repositories = repositories
	return repositories, nil
}

// RepositoryTeams returns team slug -> permissions bitmap for the teams
// attached to the repository.
func (r *RemoteImpl) RepositoryTeams(ctx context.Context, repo string) (map[string]map[string]bool, error) {
	teams := make(map[string]map[string]bool)
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/repos/%s/%s/teams", r.org, repo),
			fmt.Sprintf("per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var pageTeams []struct {
			Slug        string          `json:"slug"`
			Permissions map[string]bool `json:"permissions"`
		}
		if err := json.Unmarshal(body, &pageTeams); err != nil {
			return nil, fmt.Errorf("cannot decode repo teams: %v", err)
		}
		for _, t := range pageTeams {
			teams[t.Slug] = t.Permissions
		}
		if len(pageTeams) < 100 {
			break
		}
	}
	return teams, nil
}

func (r *RemoteImpl) RepositoryCollaborators(ctx context.Context, repo string) ([]*GithubCollaborator, error) {
	collaborators := []*GithubCollaborator{}
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/repos/%s/%s/collaborators", r.org, repo),
			fmt.Sprintf("affiliation=direct&per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var pageCollaborators []*GithubCollaborator
		if err := json.Unmarshal(body, &pageCollaborators); err != nil {
			return nil, fmt.Errorf("cannot decode collaborators: %v", err)
		}
		collaborators = append(collaborators, pageCollaborators...)
		if len(pageCollaborators) < 100 {
			break
		}
	}
	return collaborators, nil
}

func (r *RemoteImpl) RepositoryInvitations(ctx context.Context, repo string) ([]*GithubInvitation, error) {
	invitations := []*GithubInvitation{}
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/repos/%s/%s/invitations", r.org, repo),
			fmt.Sprintf("per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var pageInvitations []struct {
			Id          int    `json:"id"`
			Permissions string `json:"permissions"`
			Invitee     struct {
				Login string `json:"login"`
			} `json:"invitee"`
		}
		if err := json.Unmarshal(body, &pageInvitations); err != nil {
			return nil, fmt.Errorf("cannot decode repo invitations: %v", err)
		}
		for _, i := range pageInvitations {
			invitations = append(invitations, &GithubInvitation{
				Id:          i.Id,
				Login:       i.Invitee.Login,
				Permissions: i.Permissions,
			})
		}
		if len(pageInvitations) < 100 {
			break
		}
	}
	return invitations, nil
}

// RepositoryRulesets returns ruleset name -> id. The full form of each
// ruleset must be fetched individually.
func (r *RemoteImpl) RepositoryRulesets(ctx context.Context, repo string) (map[string]int, error) {
	rulesets := make(map[string]int)
	for page := 1; ; page++ {
		body, err := r.client.CallRestAPI(ctx,
			fmt.Sprintf("/repos/%s/%s/rulesets", r.org, repo),
			fmt.Sprintf("per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return nil, err
		}
		var pageRulesets []struct {
			Id   int    `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(body, &pageRulesets); err != nil {
			return nil, fmt.Errorf("cannot decode rulesets: %v", err)
		}
		for _, rs := range pageRulesets {
			rulesets[rs.Name] = rs.Id
		}
		if len(pageRulesets) < 100 {
			break
		}
	}
	return rulesets, nil
}

func (r *RemoteImpl) RepositoryRuleset(ctx context.Context, repo string, rulesetId int) (*GithubRuleset, error) {
	body, err := r.client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/rulesets/%d", r.org, repo, rulesetId),
		"", "GET", nil)
	if err != nil {
		return nil, err
	}
	ruleset := &GithubRuleset{}
	if err := json.Unmarshal(body, ruleset); err != nil {
		return nil, fmt.Errorf("cannot decode ruleset %d: %v", rulesetId, err)
	}
	return ruleset, nil
}

func (r *RemoteImpl) RepositoryProperties(ctx context.Context, repo string) (map[string]entity.PropertyValue, error) {
	body, err := r.client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/properties/values", r.org, repo),
		"", "GET", nil)
	if err != nil {
		return nil, err
	}
	var values []struct {
		PropertyName string      `json:"property_name"`
		Value        interface{} `json:"value"`
	}
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("cannot decode property values: %v", err)
	}
	properties := make(map[string]entity.PropertyValue)
	for _, v := range values {
		switch value := v.Value.(type) {
		case string:
			properties[v.PropertyName] = entity.PropertyValue{Scalar: value}
		case []interface{}:
			list := make([]string, 0, len(value))
			for _, item := range value {
				if s, ok := item.(string); ok {
					list = append(list, s)
				}
			}
			properties[v.PropertyName] = entity.PropertyValue{List: list, IsList: true}
		}
	}
	return properties, nil
}

func (r *RemoteImpl) CustomProperties(ctx context.Context) (map[string]*GithubCustomProperty, error) {
	body, err := r.client.CallRestAPI(ctx,
		fmt.Sprintf("/orgs/%s/properties/schema", r.org),
		"", "GET", nil)
	if err != nil {
		return nil, err
	}
	var schema []*GithubCustomProperty
	if err := json.Unmarshal(body, &schema); err != nil {
		return nil, fmt.Errorf("cannot decode custom properties schema: %v", err)
	}
	properties := make(map[string]*GithubCustomProperty)
	for _, prop := range schema {
		properties[prop.PropertyName] = prop
	}
	return properties, nil
}

func (r *RemoteImpl) ForkPRApprovalPolicy(ctx context.Context, repo string) (string, error) {
	body, err := r.client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/actions/permissions/fork-pr-contributor-approval", r.org, repo),
		"", "GET", nil)
	if err != nil {
		return "", err
	}
	var policy struct {
		ApprovalPolicy string `json:"approval_policy"`
	}
	if err := json.Unmarshal(body, &policy); err != nil {
		return "", fmt.Errorf("cannot decode approval policy: %v", err)
	}
	return policy.ApprovalPolicy, nil
}

func (r *RemoteImpl) ResolveUser(ctx context.Context, login string) (string, error) {
	body, err := r.client.CallRestAPI(ctx, "/users/"+url.PathEscape(login), "", "GET", nil)
	if err != nil {
		return "", err
	}
	var user struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("cannot decode user %s: %v", login, err)
	}
	return user.Login, nil
}
