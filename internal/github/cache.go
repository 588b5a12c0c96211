package github

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Listing names one cached per-organization fleet listing.
type Listing string

const (
	ListingMembers      Listing = "members"
	ListingOwners       Listing = "owners"
	ListingTeams        Listing = "teams"
	ListingRepositories Listing = "repositories"
)

/*
 * ClientCache memoizes the cheap fleet listings the enforcement engine
 * needs on every webhook delivery (who is an owner, which repositories
 * exist). Listings are loaded lazily and kept until Invalidate is
 * called, usually from a webhook telling us the world changed.
 */
type ClientCache struct {
	provider ClientProvider
	mu       sync.Mutex
	listings map[string]map[Listing][]string
}

func NewClientCache(provider ClientProvider) *ClientCache {
	return &ClientCache{
		provider: provider,
		listings: make(map[string]map[Listing][]string),
	}
}

func (c *ClientCache) Members(ctx context.Context, org string) ([]string, error) {
	return c.listing(ctx, org, ListingMembers)
}

func (c *ClientCache) Owners(ctx context.Context, org string) ([]string, error) {
	return c.listing(ctx, org, ListingOwners)
}

func (c *ClientCache) TeamSlugs(ctx context.Context, org string) ([]string, error) {
	return c.listing(ctx, org, ListingTeams)
}

func (c *ClientCache) RepositoryNames(ctx context.Context, org string) ([]string, error) {
	return c.listing(ctx, org, ListingRepositories)
}

// Invalidate drops one cached listing (or all of them when listing is
// "") for the organization.
func (c *ClientCache) Invalidate(org string, listing Listing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if listing == "" {
		delete(c.listings, org)
		return
	}
	if perOrg, ok := c.listings[org]; ok {
		delete(perOrg, listing)
	}
}

func (c *ClientCache) listing(ctx context.Context, org string, listing Listing) ([]string, error) {
	c.mu.Lock()
	if perOrg, ok := c.listings[org]; ok {
		if values, ok := perOrg[listing]; ok {
			c.mu.Unlock()
			return values, nil
		}
	}
	c.mu.Unlock()

	values, err := c.load(ctx, org, listing)
	if err != nil {
		return nil, err
	}
	sort.Strings(values)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.listings[org]; !ok {
		c.listings[org] = make(map[Listing][]string)
	}
	c.listings[org][listing] = values
	return values, nil
}

func (c *ClientCache) load(ctx context.Context, org string, listing Listing) ([]string, error) {
	client, err := c.provider.ClientFor(org, true)
	if err != nil {
		return nil, err
	}

	switch listing {
	case ListingMembers:
		return listPaginated(ctx, client, fmt.Sprintf("/orgs/%s/members", org), "role=all", "login")
	case ListingOwners:
		return listPaginated(ctx, client, fmt.Sprintf("/orgs/%s/members", org), "role=admin", "login")
	case ListingTeams:
		return listPaginated(ctx, client, fmt.Sprintf("/orgs/%s/teams", org), "", "slug")
	case ListingRepositories:
		return listPaginated(ctx, client, fmt.Sprintf("/orgs/%s/repos", org), "", "name")
	}
	return nil, fmt.Errorf("unknown listing: %s", listing)
}

func listPaginated(ctx context.Context, client Client, endpoint, parameters, field string) ([]string, error) {
	values := []string{}
	for page := 1; ; page++ {
		params := fmt.Sprintf("per_page=100&page=%d", page)
		if parameters != "" {
			params = parameters + "&" + params
		}
		body, err := client.CallRestAPI(ctx, endpoint, params, "GET", nil)
		if err != nil {
			return nil, err
		}
		var items []map[string]interface{}
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("cannot decode %s listing: %w", endpoint, err)
		}
		for _, item := range items {
			if v, ok := item[field].(string); ok {
				values = append(values, v)
			}
		}
		if len(items) < 100 {
			break
		}
	}
	return values, nil
}
