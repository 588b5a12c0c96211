package generate

import (
	"context"
	"io"
	"sort"

	"github.com/sheriff-project/sheriff/internal/engine"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sheriff-project/sheriff/internal/utils"
	"gopkg.in/yaml.v3"
)

/*
 * Generator reads an organization's live state and emits the canonical
 * permissions document for it: teams and repositories sorted by name,
 * member lists sorted, map keys sorted by the YAML encoder. Reconciling
 * the emitted document against the same org is a no-op.
 *
 * Rulesets are not reverse-engineered: the declarative rule tokens are
 * a narrowing of the API surface and the mapping back is lossy. Repos
 * come out without a rulesets block.
 */
type Generator struct {
	remote   engine.Remote
	org      string
	feedback observability.RemoteObservability
}

func NewGenerator(remote engine.Remote, org string, feedback observability.RemoteObservability) *Generator {
	return &Generator{
		remote:   remote,
		org:      org,
		feedback: feedback,
	}
}

func (g *Generator) Generate(ctx context.Context) (*entity.OrganizationConfig, error) {
	teams, err := g.remote.Teams(ctx)
	if err != nil {
		return nil, err
	}
	repos, err := g.remote.Repositories(ctx)
	if err != nil {
		return nil, err
	}
	if g.feedback != nil {
		g.feedback.Init(len(teams) + len(repos))
	}

	orgConfig := &entity.OrganizationConfig{Organization: g.org}

	if err := g.generateCustomProperties(ctx, orgConfig); err != nil {
		return nil, err
	}
	if err := g.generateTeams(ctx, orgConfig, teams); err != nil {
		return nil, err
	}
	if err := g.generateRepositories(ctx, orgConfig, teams, repos); err != nil {
		return nil, err
	}
	return orgConfig, nil
}

// WriteYAML encodes the document; key order inside mappings is the
// encoder's (sorted), list order is ours.
func (g *Generator) WriteYAML(w io.Writer, orgConfig *entity.OrganizationConfig) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(orgConfig); err != nil {
		return err
	}
	return encoder.Close()
}

func (g *Generator) generateCustomProperties(ctx context.Context, orgConfig *entity.OrganizationConfig) error {
	observed, err := g.remote.CustomProperties(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(observed))
	for name := range observed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		property := observed[name]
		orgConfig.CustomProperties = append(orgConfig.CustomProperties, &entity.CustomProperty{
			PropertyName:  property.PropertyName,
			ValueType:     property.ValueType,
			Required:      property.Required,
			DefaultValue:  property.DefaultValue,
			Description:   property.Description,
			AllowedValues: property.AllowedValues,
		})
	}
	return nil
}

func (g *Generator) generateTeams(ctx context.Context, orgConfig *entity.OrganizationConfig, teams map[string]*engine.GithubTeam) error {
	slugToName := make(map[string]string, len(teams))
	for name, team := range teams {
		slugToName[team.Slug] = name
	}

	names := make([]string, 0, len(teams))
	for name := range teams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		team := teams[name]
		maintainers, err := g.remote.TeamMembers(ctx, team.Slug, "MAINTAINER")
		if err != nil {
			return err
		}
		members, err := g.remote.TeamMembers(ctx, team.Slug, "MEMBER")
		if err != nil {
			return err
		}
		sort.Strings(maintainers)
		sort.Strings(members)

		teamConfig := &entity.TeamConfig{
			Name:        name,
			Maintainers: maintainers,
			Members:     members,
			Secret:      team.Privacy == "secret",
		}
		if team.ParentSlug != nil {
			if parentName, ok := slugToName[*team.ParentSlug]; ok {
				teamConfig.Parent = &parentName
			}
		}
		orgConfig.Teams = append(orgConfig.Teams, teamConfig)

		if g.feedback != nil {
			g.feedback.LoadingAsset("teams", 1)
		}
	}
	return nil
}

func (g *Generator) generateRepositories(ctx context.Context, orgConfig *entity.OrganizationConfig, teams map[string]*engine.GithubTeam, repos map[string]*engine.GithubRepository) error {
	slugToName := make(map[string]string, len(teams))
	for name, team := range teams {
		slugToName[team.Slug] = name
	}

	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if utils.SkipRepo(name) {
			continue
		}
		repo := repos[name]

		if repo.Archived {
			// archived repos are never reconciled; keep a placeholder so
			// they do not show up as undeclared
			orgConfig.Repositories = append(orgConfig.Repositories, &entity.RepositoryConfig{
				Name:       name,
				Visibility: "current",
			})
			if g.feedback != nil {
				g.feedback.LoadingAsset("repositories", 1)
			}
			continue
		}

		repoConfig := &entity.RepositoryConfig{
			Name:     name,
			Settings: &entity.RepositorySettings{HasWiki: &repo.HasWiki},
		}
		switch {
		case repo.Fork:
			// a fork's visibility follows its parent; do not manage it
			repoConfig.Visibility = "current"
		case repo.Private:
			repoConfig.Visibility = "private"
		default:
			repoConfig.Visibility = "public"
		}

		repoTeams, err := g.remote.RepositoryTeams(ctx, name)
		if err != nil {
			return err
		}
		for teamSlug, permissions := range repoTeams {
			teamName, ok := slugToName[teamSlug]
			if !ok {
				continue
			}
			if level, ok := entity.AccessLevelFromPermissions(permissions); ok {
				if repoConfig.Teams == nil {
					repoConfig.Teams = make(map[string]entity.AccessLevel)
				}
				repoConfig.Teams[teamName] = level
			}
		}

		collaborators, err := g.remote.RepositoryCollaborators(ctx, name)
		if err != nil {
			return err
		}
		for _, collaborator := range collaborators {
			if level, ok := entity.AccessLevelFromPermissions(collaborator.Permissions); ok {
				if repoConfig.ExternalCollaborators == nil {
					repoConfig.ExternalCollaborators = make(map[string]entity.AccessLevel)
				}
				repoConfig.ExternalCollaborators[collaborator.Login] = level
			}
		}

		properties, err := g.remote.RepositoryProperties(ctx, name)
		if err != nil {
			return err
		}
		if len(properties) > 0 {
			repoConfig.Properties = properties
		}

		orgConfig.Repositories = append(orgConfig.Repositories, repoConfig)

		if g.feedback != nil {
			g.feedback.LoadingAsset("repositories", 1)
		}
	}
	return nil
}
