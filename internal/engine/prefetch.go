package engine

import (
	"context"
	"sync"

	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
)

const prefetchWorkers = 8

// RepoMetadata is the read-only snapshot a repo reconcile works from.
// It is written once by the prefetch pool and read lock-free after the
// barrier.
type RepoMetadata struct {
	Teams         map[string]map[string]bool // team slug -> permissions bitmap
	Collaborators []*GithubCollaborator
	Invitations   []*GithubInvitation
	RulesetIds    map[string]int
	Rulesets      map[string]*GithubRuleset
	Properties    map[string]entity.PropertyValue
}

/*
 * prefetchRepoMetadata loads the per-repo metadata for every
 * non-archived declared repo through a pool of 8 workers. The pool
 * drains completely before returning; the first read error aborts the
 * run (read errors are fatal to the org).
 */
func prefetchRepoMetadata(ctx context.Context, remote Remote, repos []*entity.RepositoryConfig, observed map[string]*GithubRepository, feedback observability.RemoteObservability) (map[*entity.RepositoryConfig]*RepoMetadata, error) {
	metadata := make(map[*entity.RepositoryConfig]*RepoMetadata)

	var wg sync.WaitGroup
	var collectWg sync.WaitGroup

	reposChan := make(chan *entity.RepositoryConfig, len(repos))
	errChan := make(chan error, 1) // holds the first error
	resultsChan := make(chan struct {
		repo *entity.RepositoryConfig
		meta *RepoMetadata
	}, len(repos))

	for i := 0; i < prefetchWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repo := range reposChan {
				meta, err := loadRepoMetadata(ctx, remote, repo)
				if err != nil {
					select {
					case errChan <- err:
					default:
					}
					return
				}
				resultsChan <- struct {
					repo *entity.RepositoryConfig
					meta *RepoMetadata
				}{repo, meta}
			}
		}()
	}

	queued := 0
	for _, repo := range repos {
		if observedRepo, ok := observed[repo.Name]; ok && !observedRepo.Archived {
			reposChan <- repo
			queued++
		}
	}
	close(reposChan)

	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		for result := range resultsChan {
			if feedback != nil {
				feedback.LoadingAsset("repository metadata", 1)
			}
			metadata[result.repo] = result.meta
		}
	}()

	wg.Wait()
	close(resultsChan)
	collectWg.Wait()

	select {
	case err := <-errChan:
		return metadata, err
	default:
	}

	return metadata, nil
}

func loadRepoMetadata(ctx context.Context, remote Remote, repo *entity.RepositoryConfig) (*RepoMetadata, error) {
	meta := &RepoMetadata{
		Rulesets: make(map[string]*GithubRuleset),
	}

	teams, err := remote.RepositoryTeams(ctx, repo.Name)
	if err != nil {
		return nil, err
	}
	meta.Teams = teams

	invitations, err := remote.RepositoryInvitations(ctx, repo.Name)
	if err != nil {
		return nil, err
	}
	meta.Invitations = invitations

	collaborators, err := remote.RepositoryCollaborators(ctx, repo.Name)
	if err != nil {
		return nil, err
	}
	meta.Collaborators = collaborators

	properties, err := remote.RepositoryProperties(ctx, repo.Name)
	if err != nil {
		return nil, err
	}
	meta.Properties = properties

	// the full form of each ruleset is only needed when the repo
	// declares rulesets
	if len(repo.ResolvedRulesets()) > 0 {
		rulesetIds, err := remote.RepositoryRulesets(ctx, repo.Name)
		if err != nil {
			return nil, err
		}
		meta.RulesetIds = rulesetIds
		for name, id := range rulesetIds {
			ruleset, err := remote.RepositoryRuleset(ctx, repo.Name, id)
			if err != nil {
				return nil, err
			}
			meta.Rulesets[name] = ruleset
		}
	}

	return meta, nil
}
