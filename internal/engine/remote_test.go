package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	gogithub "github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

/*
 * graphqlClient parses every incoming GraphQL query before answering,
 * so a malformed query text fails the test instead of failing in
 * production against the live API.
 */
type graphqlClient struct {
	rest        map[string]string // endpoint+parameters -> response body
	teamMembers map[string][]string
	queries     []string
}

func (m *graphqlClient) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}) ([]byte, error) {
	response, ok := m.rest[endpoint+"?"+parameters]
	if !ok {
		response, ok = m.rest[endpoint]
	}
	if !ok {
		return []byte("[]"), nil
	}
	return []byte(response), nil
}

func (m *graphqlClient) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, fmt.Errorf("malformed graphql query: %w", err)
	}
	for _, op := range doc.Operations {
		if op.Operation != ast.Query {
			return nil, fmt.Errorf("unexpected operation %s", op.Operation)
		}
		for _, variable := range op.VariableDefinitions {
			if _, ok := variables[variable.Variable]; !ok {
				return nil, fmt.Errorf("missing variable $%s", variable.Variable)
			}
		}
		m.queries = append(m.queries, op.Name)
	}

	slug, _ := variables["teamSlug"].(string)
	role, _ := variables["role"].(string)
	response := teamMembersResponse{}
	for _, login := range m.teamMembers[slug+"/"+role] {
		response.Data.Organization.Team.Members.Nodes = append(
			response.Data.Organization.Team.Members.Nodes,
			struct {
				Login string `json:"login"`
			}{Login: login})
	}
	return json.Marshal(response)
}

func (m *graphqlClient) Rest() *gogithub.Client {
	return nil
}

func (m *graphqlClient) GetAccessToken(ctx context.Context) (string, error) {
	return "token", nil
}

func (m *graphqlClient) ReadOnly() bool {
	return true
}

func TestRemoteTeamMembers(t *testing.T) {
	ctx := context.TODO()

	t.Run("happy path: members by role through graphql", func(t *testing.T) {
		client := &graphqlClient{
			teamMembers: map[string][]string{
				"core/MAINTAINER": {"alice"},
				"core/MEMBER":     {"bob", "carol"},
			},
		}
		remote := NewRemoteImpl(client, "myorg")

		maintainers, err := remote.TeamMembers(ctx, "core", "MAINTAINER")
		assert.NoError(t, err)
		assert.Equal(t, []string{"alice"}, maintainers)

		members, err := remote.TeamMembers(ctx, "core", "MEMBER")
		assert.NoError(t, err)
		assert.Equal(t, []string{"bob", "carol"}, members)
		assert.Equal(t, []string{"listTeamMembers", "listTeamMembers"}, client.queries)
	})

	t.Run("happy path: empty team", func(t *testing.T) {
		remote := NewRemoteImpl(&graphqlClient{}, "myorg")
		members, err := remote.TeamMembers(ctx, "ghost", "MEMBER")
		assert.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestRemoteListings(t *testing.T) {
	ctx := context.TODO()

	t.Run("happy path: teams are memoized until invalidated", func(t *testing.T) {
		client := &graphqlClient{rest: map[string]string{
			"/orgs/myorg/teams": `[{"id": 1, "name": "core", "slug": "core", "privacy": "closed"},
				{"id": 2, "name": "ops", "slug": "ops", "privacy": "secret", "parent": {"slug": "core"}}]`,
		}}
		remote := NewRemoteImpl(client, "myorg")

		teams, err := remote.Teams(ctx)
		assert.NoError(t, err)
		assert.Len(t, teams, 2)
		assert.Equal(t, "core", *teams["ops"].ParentSlug)
		assert.Nil(t, teams["core"].ParentSlug)

		// a second read without invalidation is served from memory
		delete(client.rest, "/orgs/myorg/teams")
		again, err := remote.Teams(ctx)
		assert.NoError(t, err)
		assert.Len(t, again, 2)

		remote.InvalidateTeams()
		empty, err := remote.Teams(ctx)
		assert.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("happy path: owners and members use the role filter", func(t *testing.T) {
		client := &graphqlClient{rest: map[string]string{
			"/orgs/myorg/members?role=all&per_page=100&page=1":   `[{"login": "alice"}, {"login": "bob"}]`,
			"/orgs/myorg/members?role=admin&per_page=100&page=1": `[{"login": "alice"}]`,
		}}
		remote := NewRemoteImpl(client, "myorg")

		members, err := remote.OrgMembers(ctx)
		assert.NoError(t, err)
		assert.Len(t, members, 2)

		owners, err := remote.OrgOwners(ctx)
		assert.NoError(t, err)
		assert.Equal(t, map[string]bool{"alice": true}, owners)
	})

	t.Run("happy path: repository properties decode both shapes", func(t *testing.T) {
		client := &graphqlClient{rest: map[string]string{
			"/repos/myorg/app/properties/values": `[
				{"property_name": "tier", "value": "gold"},
				{"property_name": "topics", "value": ["api", "web"]}
			]`,
		}}
		remote := NewRemoteImpl(client, "myorg")

		properties, err := remote.RepositoryProperties(ctx, "app")
		assert.NoError(t, err)
		assert.Equal(t, "gold", properties["tier"].Scalar)
		assert.True(t, properties["topics"].IsList)
		assert.Equal(t, []string{"api", "web"}, properties["topics"].List)
	})
}
