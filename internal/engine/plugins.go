package engine

import (
	"context"

	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
)

// Plugin is the marker every plugin implements; the capabilities are
// opt-in through TeamHandler and RepoHandler.
type Plugin interface {
	Name() string
}

// TeamHandler is called for every declared team after team reconcile.
type TeamHandler interface {
	HandleTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, team *entity.TeamConfig, sink alert.Sink)
}

// RepoHandler is called for every declared repo (archived ones
// included) after repo reconcile.
type RepoHandler interface {
	HandleRepo(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, repo *entity.RepositoryConfig, teams []*entity.TeamConfig, sink alert.Sink)
}

func (r *Reconciler) fanOutTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, team *entity.TeamConfig) {
	for _, plugin := range r.plugins {
		if handler, ok := plugin.(TeamHandler); ok {
			handler.HandleTeam(ctx, lc, dryrun, org, team, r.sink)
		}
	}
}

func (r *Reconciler) fanOutRepo(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, repo *entity.RepositoryConfig, teams []*entity.TeamConfig) {
	for _, plugin := range r.plugins {
		if handler, ok := plugin.(RepoHandler); ok {
			handler.HandleRepo(ctx, lc, dryrun, org, repo, teams, r.sink)
		}
	}
}
