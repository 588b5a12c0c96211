package github

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	gogithub "github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
)

// pagingMockClient serves canned listing pages. Pages are keyed by the
// endpoint, plus "?role=..." for the members endpoint.
type pagingMockClient struct {
	pages map[string][][]map[string]string
	calls int
}

func (m *pagingMockClient) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	return nil, nil
}

func (m *pagingMockClient) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}) ([]byte, error) {
	m.calls++
	key := endpoint
	page := 1
	for _, param := range strings.Split(parameters, "&") {
		if strings.HasPrefix(param, "role=") {
			key = endpoint + "?" + param
		}
		if strings.HasPrefix(param, "page=") {
			if param == "page=2" {
				page = 2
			}
		}
	}
	pages := m.pages[key]
	if page > len(pages) {
		return []byte("[]"), nil
	}
	return json.Marshal(pages[page-1])
}

func (m *pagingMockClient) Rest() *gogithub.Client { return nil }

func (m *pagingMockClient) GetAccessToken(ctx context.Context) (string, error) { return "", nil }

func (m *pagingMockClient) ReadOnly() bool { return true }

type fixedProvider struct {
	client Client
}

func (p *fixedProvider) ClientFor(org string, readOnly bool) (Client, error) {
	return p.client, nil
}

func TestClientCache(t *testing.T) {

	t.Run("happy path: listings are fetched once and sorted", func(t *testing.T) {
		mock := &pagingMockClient{
			pages: map[string][][]map[string]string{
				"/orgs/myorg/repos": {
					{{"name": "zulu"}, {"name": "alpha"}},
				},
			},
		}
		cache := NewClientCache(&fixedProvider{client: mock})

		repos, err := cache.RepositoryNames(context.TODO(), "myorg")
		assert.NoError(t, err)
		assert.Equal(t, []string{"alpha", "zulu"}, repos)

		// second read is served from the cache
		_, err = cache.RepositoryNames(context.TODO(), "myorg")
		assert.NoError(t, err)
		assert.Equal(t, 1, mock.calls)
	})

	t.Run("happy path: invalidate forces a reload", func(t *testing.T) {
		mock := &pagingMockClient{
			pages: map[string][][]map[string]string{
				"/orgs/myorg/teams": {
					{{"slug": "ateam"}},
				},
			},
		}
		cache := NewClientCache(&fixedProvider{client: mock})

		_, err := cache.TeamSlugs(context.TODO(), "myorg")
		assert.NoError(t, err)
		cache.Invalidate("myorg", ListingTeams)
		_, err = cache.TeamSlugs(context.TODO(), "myorg")
		assert.NoError(t, err)
		assert.Equal(t, 2, mock.calls)
	})

	t.Run("happy path: owners and members are distinct listings", func(t *testing.T) {
		mock := &pagingMockClient{
			pages: map[string][][]map[string]string{
				"/orgs/myorg/members?role=all": {
					{{"login": "alice"}, {"login": "bob"}},
				},
				"/orgs/myorg/members?role=admin": {
					{{"login": "alice"}},
				},
			},
		}
		cache := NewClientCache(&fixedProvider{client: mock})

		members, err := cache.Members(context.TODO(), "myorg")
		assert.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, members)

		owners, err := cache.Owners(context.TODO(), "myorg")
		assert.NoError(t, err)
		assert.Equal(t, []string{"alice"}, owners)
	})

	t.Run("error path: invalidate all listings of an org", func(t *testing.T) {
		mock := &pagingMockClient{
			pages: map[string][][]map[string]string{
				"/orgs/myorg/repos": {{{"name": "one"}}},
				"/orgs/myorg/teams": {{{"slug": "ateam"}}},
			},
		}
		cache := NewClientCache(&fixedProvider{client: mock})

		_, _ = cache.RepositoryNames(context.TODO(), "myorg")
		_, _ = cache.TeamSlugs(context.TODO(), "myorg")
		cache.Invalidate("myorg", "")
		_, _ = cache.RepositoryNames(context.TODO(), "myorg")
		_, _ = cache.TeamSlugs(context.TODO(), "myorg")
		assert.Equal(t, 4, mock.calls)
	})
}
