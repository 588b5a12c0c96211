package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/gosimple/slug"
	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sheriff-project/sheriff/internal/utils"
	"github.com/sirupsen/logrus"
)

// a public->private flip on a repo this popular (or whose count we
// cannot read) is refused and alerted instead of applied
const visibilityStargazerGuard = 100

type Reconciler struct {
	remote   Remote
	executor Executor
	sink     alert.Sink
	plugins  []Plugin
	feedback observability.RemoteObservability
}

func NewReconciler(remote Remote, executor Executor, sink alert.Sink, plugins []Plugin, feedback observability.RemoteObservability) *Reconciler {
	return &Reconciler{
		remote:   remote,
		executor: executor,
		sink:     sink,
		plugins:  plugins,
		feedback: feedback,
	}
}

/*
 * Reconcile drives one organization toward its declared state. Steps
 * run sequentially; read errors abort the org (previous writes stay in
 * place), write errors are collected and the loop continues.
 */
func (r *Reconciler) Reconcile(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, dryrun bool) error {
	orgname := orgConfig.Organization
	logrus.WithFields(logrus.Fields{"org": orgname, "dryrun": dryrun}).Info("reconciling organization")

	// step 1: custom properties
	if err := r.reconcileCustomProperties(ctx, lc, orgConfig, dryrun); err != nil {
		return err
	}

	// step 2: user invitations
	pendingInvites, err := r.reconcileInvitations(ctx, lc, orgConfig, dryrun)
	if err != nil {
		return err
	}

	// step 3: missing-repo warnings; undeclared repos are retained with
	// visibility "current" and no granted permissions
	observedRepos, err := r.remote.Repositories(ctx)
	if err != nil {
		return err
	}
	repos := append([]*entity.RepositoryConfig{}, orgConfig.Repositories...)
	for _, name := range sortedRepoNames(observedRepos) {
		if utils.SkipRepo(name) {
			continue
		}
		if orgConfig.Repository(name) == nil {
			lc.AddWarn(fmt.Errorf("repository %s/%s exists upstream but is not declared", orgname, name))
			r.executor.AddAlertLine("Repository %s is not declared in the permissions file", name)
			repos = append(repos, &entity.RepositoryConfig{Name: name, Visibility: "current"})
		}
	}

	// step 4: orphan team deletion
	observedTeams, err := r.remote.Teams(ctx)
	if err != nil {
		return err
	}
	for _, name := range sortedTeamNames(observedTeams) {
		if orgConfig.Team(name) == nil {
			r.executor.DeleteTeam(ctx, lc, dryrun, observedTeams[name].Slug)
		}
	}

	// step 5: team reconcile + team plugin fan-out
	for _, team := range orgConfig.Teams {
		if err := r.reconcileTeam(ctx, lc, orgConfig, team, pendingInvites, dryrun); err != nil {
			return err
		}
		r.fanOutTeam(ctx, lc, dryrun, orgname, team)
	}

	// step 6: repo creation; in dry-run the creation is only logged and
	// the rest of the per-repo work is skipped
	createdInDryrun := make(map[string]bool)
	for _, repo := range repos {
		if _, ok := observedRepos[repo.Name]; ok {
			continue
		}
		visibility := repo.EffectiveVisibility()
		if visibility == "current" {
			visibility = ""
		}
		r.executor.CreateRepository(ctx, lc, dryrun, repo.Name, visibility)
		r.remote.InvalidateRepositories()
		if dryrun {
			// creation was skipped, so the attachments step 8 would
			// perform are reported here and the repo drops out of the
			// rest of the run
			createdInDryrun[repo.Name] = true
			observedTeams, err := r.remote.Teams(ctx)
			if err != nil {
				return err
			}
			for _, name := range sortedMapKeys(repo.Teams) {
				level := repo.Teams[name]
				r.executor.RepoAddTeam(ctx, lc, dryrun, repo.Name, r.teamSlug(observedTeams, name), level.GithubPermission(), level)
			}
			for _, login := range sortedMapKeys(repo.ExternalCollaborators) {
				r.executor.AddCollaborator(ctx, lc, dryrun, repo.Name, login, repo.ExternalCollaborators[login].GithubPermission())
			}
		}
	}
	observedRepos, err = r.remote.Repositories(ctx)
	if err != nil {
		return err
	}

	// step 7: bounded-concurrency metadata prefetch; the pool drains
	// before any repo reconcile starts
	prefetchable := make([]*entity.RepositoryConfig, 0, len(repos))
	for _, repo := range repos {
		if !createdInDryrun[repo.Name] {
			prefetchable = append(prefetchable, repo)
		}
	}
	metadata, err := prefetchRepoMetadata(ctx, r.remote, prefetchable, observedRepos, r.feedback)
	if err != nil {
		return err
	}

	// step 8: repo reconcile in declaration order; archived repos skip
	// permission reconcile but still get the plugin fan-out
	observedTeams, err = r.remote.Teams(ctx)
	if err != nil {
		return err
	}
	for _, repo := range repos {
		if createdInDryrun[repo.Name] {
			continue
		}
		observedRepo, ok := observedRepos[repo.Name]
		if !ok {
			// freshly created this run
			r.fanOutRepo(ctx, lc, dryrun, orgname, repo, orgConfig.Teams)
			continue
		}
		if !observedRepo.Archived {
			if err := r.reconcileRepository(ctx, lc, orgConfig, repo, observedRepo, metadata[repo], observedTeams, dryrun); err != nil {
				return err
			}
		}
		r.fanOutRepo(ctx, lc, dryrun, orgname, repo, orgConfig.Teams)
	}

	r.flushAlerts(ctx, orgname, dryrun)
	return nil
}

// flushAlerts sends the org report. The org banner is suppressed when
// the run produced no lines.
func (r *Reconciler) flushAlerts(ctx context.Context, orgname string, dryrun bool) {
	lines := r.executor.AlertLines()
	if len(lines) == 0 {
		return
	}
	builder := alert.NewMessage(alert.SeverityNormal, fmt.Sprintf("## %s", orgname))
	if dryrun {
		builder.AddContext("dry-run: no mutation was performed")
	}
	for _, line := range lines {
		builder.AddSection("%s", line)
	}
	builder.AddDivider()
	if err := r.sink.Send(ctx, builder.Build()); err != nil {
		logrus.WithField("org", orgname).Warnf("cannot send alert message: %v", err)
	}
}

// step 1
func (r *Reconciler) reconcileCustomProperties(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, dryrun bool) error {
	observed, err := r.remote.CustomProperties(ctx)
	if err != nil {
		return err
	}

	declared := make(map[string]*GithubCustomProperty)
	for _, prop := range orgConfig.CustomProperties {
		declared[prop.PropertyName] = &GithubCustomProperty{
			PropertyName:  prop.PropertyName,
			ValueType:     prop.ValueType,
			Required:      prop.Required,
			DefaultValue:  prop.DefaultValue,
			Description:   prop.Description,
			AllowedValues: prop.AllowedValues,
		}
	}

	compare := func(name string, d *GithubCustomProperty, o *GithubCustomProperty) bool {
		if d.ValueType != o.ValueType || d.Required != o.Required || d.Description != o.Description {
			return false
		}
		if equivalent, _, _ := utils.StringArrayEquivalent(d.AllowedValues, o.AllowedValues); !equivalent {
			return false
		}
		if (d.DefaultValue == nil) != (o.DefaultValue == nil) {
			return false
		}
		if d.DefaultValue != nil && !d.DefaultValue.Equal(*o.DefaultValue) {
			return false
		}
		return true
	}

	CompareEntities(declared, observed, compare,
		func(name string, d *GithubCustomProperty, o *GithubCustomProperty) {
			r.executor.CreateCustomProperty(ctx, lc, dryrun, d)
		},
		func(name string, d *GithubCustomProperty, o *GithubCustomProperty) {
			r.executor.DeleteCustomProperty(ctx, lc, dryrun, name)
		},
		func(name string, d *GithubCustomProperty, o *GithubCustomProperty) {
			r.executor.CreateCustomProperty(ctx, lc, dryrun, d)
		})

	return nil
}

/*
 * step 2: invite every declared user missing from the org. The
 * canonical login must match the declared one exactly; a case mismatch
 * or an unknown user posts a critical alert and halts the org. Returns
 * the set of logins holding a pending invitation (pre-existing plus
 * the ones issued now), used to suppress team adds in step 5.
 */
func (r *Reconciler) reconcileInvitations(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, dryrun bool) (map[string]bool, error) {
	orgname := orgConfig.Organization

	members, err := r.remote.OrgMembers(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := r.remote.PendingOrgInvitations(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool)
	for _, team := range orgConfig.Teams {
		for _, login := range team.Members {
			wanted[login] = true
		}
		for _, login := range team.Maintainers {
			wanted[login] = true
		}
	}

	logins := make([]string, 0, len(wanted))
	for login := range wanted {
		if !members[login] {
			logins = append(logins, login)
		}
	}
	sort.Strings(logins)

	for _, login := range logins {
		if pending[login] {
			continue
		}
		canonical, err := r.remote.ResolveUser(ctx, login)
		if err != nil {
			r.postUserAlert(ctx, orgname, login, fmt.Sprintf("User %s cannot be found on the platform", login))
			return nil, entity.NewPolicyViolation("org %s: user %s cannot be found, halting", orgname, login)
		}
		if canonical != login {
			r.postUserAlert(ctx, orgname, login, fmt.Sprintf("User %s is spelled %s on the platform, fix the permissions file", login, canonical))
			return nil, entity.NewPolicyViolation("org %s: user %s canonical login is %s, halting", orgname, login, canonical)
		}
		r.executor.InviteUser(ctx, lc, dryrun, login)
		pending[login] = true
	}

	return pending, nil
}

func (r *Reconciler) postUserAlert(ctx context.Context, orgname, login, text string) {
	message := alert.NewMessage(alert.SeverityCritical, fmt.Sprintf("Halting reconcile of %s", orgname)).
		AddUser(login).
		AddSection("%s", text).
		Build()
	if err := r.sink.Send(ctx, message); err != nil {
		logrus.WithField("org", orgname).Warnf("cannot send alert message: %v", err)
	}
}

// step 5: the team state machine
func (r *Reconciler) reconcileTeam(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, team *entity.TeamConfig, pendingInvites map[string]bool, dryrun bool) error {
	observedTeams, err := r.remote.Teams(ctx)
	if err != nil {
		return err
	}
	owners, err := r.remote.OrgOwners(ctx)
	if err != nil {
		return err
	}

	desiredPrivacy := "closed"
	if team.Secret {
		desiredPrivacy = "secret"
	}

	observed, exists := observedTeams[team.Name]
	if !exists {
		var parentId *int
		if team.Parent != nil {
			if parent, ok := observedTeams[*team.Parent]; ok {
				parentId = &parent.Id
			}
		}
		// creation carries the initial memberships; nothing left to sync
		r.executor.CreateTeam(ctx, lc, dryrun, team.Name, desiredPrivacy, parentId, team.Maintainers, team.Members)
		r.remote.InvalidateTeams()
		return nil
	}

	if observed.Privacy != desiredPrivacy {
		r.executor.UpdateTeamPrivacy(ctx, lc, dryrun, observed.Slug, desiredPrivacy)
	}

	if team.Parent != nil {
		parent, ok := observedTeams[*team.Parent]
		if ok && (observed.ParentSlug == nil || *observed.ParentSlug != parent.Slug) {
			r.executor.UpdateTeamParent(ctx, lc, dryrun, observed.Slug, &parent.Id)
		}
	}

	// membership sync via two cross-indexed directories; a team created
	// in dry-run has the sentinel id and nothing to fetch
	observedRoles := make(map[string]string)
	if observed.Id != -1 {
		maintainers, err := r.remote.TeamMembers(ctx, observed.Slug, "MAINTAINER")
		if err != nil {
			return err
		}
		members, err := r.remote.TeamMembers(ctx, observed.Slug, "MEMBER")
		if err != nil {
			return err
		}
		for _, login := range members {
			observedRoles[login] = "member"
		}
		for _, login := range maintainers {
			observedRoles[login] = "maintainer"
		}
	}

	desiredRoles := make(map[string]string)
	for _, login := range team.Members {
		desiredRoles[login] = "member"
	}
	for _, login := range team.Maintainers {
		desiredRoles[login] = "maintainer"
	}

	logins := make(map[string]bool)
	for login := range desiredRoles {
		logins[login] = true
	}
	for login := range observedRoles {
		logins[login] = true
	}
	sorted := make([]string, 0, len(logins))
	for login := range logins {
		sorted = append(sorted, login)
	}
	sort.Strings(sorted)

	for _, login := range sorted {
		desired := desiredRoles[login]
		current := observedRoles[login]
		switch {
		case desired == current:
			// no-op
		case desired == "maintainer" && current == "member":
			if !pendingInvites[login] {
				r.executor.TeamUpdateMember(ctx, lc, dryrun, observed.Slug, login, "maintainer")
			}
		case desired == "maintainer" && current == "":
			if !pendingInvites[login] {
				r.executor.TeamAddMember(ctx, lc, dryrun, observed.Slug, login, "maintainer")
			}
		case desired == "member" && current == "maintainer":
			// org owners are always reported as maintainers; never
			// demote them
			if !owners[login] {
				r.executor.TeamUpdateMember(ctx, lc, dryrun, observed.Slug, login, "member")
			}
		case desired == "member" && current == "":
			if !pendingInvites[login] {
				r.executor.TeamAddMember(ctx, lc, dryrun, observed.Slug, login, "member")
			}
		case desired == "" && current == "maintainer":
			if !(owners[login] && team.IsMember(login)) {
				r.executor.TeamRemoveMember(ctx, lc, dryrun, observed.Slug, login)
			}
		case desired == "" && current == "member":
			r.executor.TeamRemoveMember(ctx, lc, dryrun, observed.Slug, login)
		}
	}

	return nil
}

// step 8: one repository against its prefetched metadata
func (r *Reconciler) reconcileRepository(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, repo *entity.RepositoryConfig, observedRepo *GithubRepository, meta *RepoMetadata, observedTeams map[string]*GithubTeam, dryrun bool) error {
	if meta == nil {
		return nil
	}

	r.reconcileRepoTeams(ctx, lc, repo, meta, observedTeams, dryrun)
	r.reconcileRepoCollaborators(ctx, lc, repo, meta, dryrun)
	if err := r.reconcileRepoSettings(ctx, lc, orgConfig, repo, observedRepo, dryrun); err != nil {
		return err
	}
	r.reconcileRepoVisibility(ctx, lc, orgConfig.Organization, repo, observedRepo, dryrun)
	r.reconcileRepoProperties(ctx, lc, orgConfig, repo, meta, dryrun)
	r.reconcileRepoRulesets(ctx, lc, repo, meta, observedTeams, dryrun)
	return nil
}

func (r *Reconciler) teamSlug(observedTeams map[string]*GithubTeam, name string) string {
	if team, ok := observedTeams[name]; ok {
		return team.Slug
	}
	return slug.Make(name)
}

func (r *Reconciler) reconcileRepoTeams(ctx context.Context, lc *observability.LogCollection, repo *entity.RepositoryConfig, meta *RepoMetadata, observedTeams map[string]*GithubTeam, dryrun bool) {
	declared := make(map[string]entity.AccessLevel)
	for name, level := range repo.Teams {
		declared[r.teamSlug(observedTeams, name)] = level
	}

	observed := make(map[string]entity.AccessLevel)
	for teamSlug, permissions := range meta.Teams {
		if level, ok := entity.AccessLevelFromPermissions(permissions); ok {
			observed[teamSlug] = level
		}
	}

	CompareEntities(declared, observed,
		func(teamSlug string, d entity.AccessLevel, o entity.AccessLevel) bool {
			return d == o
		},
		func(teamSlug string, d entity.AccessLevel, o entity.AccessLevel) {
			r.executor.RepoAddTeam(ctx, lc, dryrun, repo.Name, teamSlug, d.GithubPermission(), d)
		},
		func(teamSlug string, d entity.AccessLevel, o entity.AccessLevel) {
			r.executor.RepoRemoveTeam(ctx, lc, dryrun, repo.Name, teamSlug)
		},
		func(teamSlug string, d entity.AccessLevel, o entity.AccessLevel) {
			r.executor.RepoUpdateTeam(ctx, lc, dryrun, repo.Name, teamSlug, d.GithubPermission())
		})
}

func (r *Reconciler) reconcileRepoCollaborators(ctx context.Context, lc *observability.LogCollection, repo *entity.RepositoryConfig, meta *RepoMetadata, dryrun bool) {
	covered := make(map[string]bool)

	// pending invitations first: an invite is equivalent to presence
	for _, invitation := range meta.Invitations {
		covered[invitation.Login] = true
		expected, ok := repo.ExternalCollaborators[invitation.Login]
		if !ok {
			r.executor.RepoRemoveInvitation(ctx, lc, dryrun, repo.Name, invitation.Id, invitation.Login)
			continue
		}
		observedLevel, ok := entity.AccessLevelFromGithubPermission(invitation.Permissions)
		if !ok || observedLevel != expected {
			r.executor.AddCollaborator(ctx, lc, dryrun, repo.Name, invitation.Login, expected.GithubPermission())
		}
	}

	for _, collaborator := range meta.Collaborators {
		covered[collaborator.Login] = true
		expected, ok := repo.ExternalCollaborators[collaborator.Login]
		if !ok {
			r.executor.RemoveCollaborator(ctx, lc, dryrun, repo.Name, collaborator.Login)
			continue
		}
		observedLevel, ok := entity.AccessLevelFromPermissions(collaborator.Permissions)
		if !ok || observedLevel != expected {
			r.executor.AddCollaborator(ctx, lc, dryrun, repo.Name, collaborator.Login, expected.GithubPermission())
		}
	}

	logins := make([]string, 0, len(repo.ExternalCollaborators))
	for login := range repo.ExternalCollaborators {
		if !covered[login] {
			logins = append(logins, login)
		}
	}
	sort.Strings(logins)
	for _, login := range logins {
		r.executor.AddCollaborator(ctx, lc, dryrun, repo.Name, login, repo.ExternalCollaborators[login].GithubPermission())
	}
}

// effective settings fall back field by field to repository_defaults
func (r *Reconciler) reconcileRepoSettings(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, repo *entity.RepositoryConfig, observedRepo *GithubRepository, dryrun bool) error {
	hasWiki := orgConfig.RepositoryDefaults.HasWiki
	forksApproval := orgConfig.RepositoryDefaults.ForksNeedActionsApproval
	if repo.Settings != nil {
		if repo.Settings.HasWiki != nil {
			hasWiki = repo.Settings.HasWiki
		}
		if repo.Settings.ForksNeedActionsApproval != nil {
			forksApproval = repo.Settings.ForksNeedActionsApproval
		}
	}

	if hasWiki != nil && *hasWiki != observedRepo.HasWiki {
		r.executor.UpdateRepositorySetting(ctx, lc, dryrun, repo.Name, "has_wiki", *hasWiki)
	}

	if forksApproval != nil && *forksApproval && repo.EffectiveVisibility() != "private" {
		policy, err := r.remote.ForkPRApprovalPolicy(ctx, repo.Name)
		if err != nil {
			return err
		}
		if policy != "all_external_contributors" {
			r.executor.SetForkPRApprovalPolicy(ctx, lc, dryrun, repo.Name)
		}
	}
	return nil
}

func (r *Reconciler) reconcileRepoVisibility(ctx context.Context, lc *observability.LogCollection, orgname string, repo *entity.RepositoryConfig, observedRepo *GithubRepository, dryrun bool) {
	visibility := repo.EffectiveVisibility()
	if visibility == "current" {
		return
	}
	shouldBePrivate := visibility == "private"
	if shouldBePrivate == observedRepo.Private {
		return
	}

	if observedRepo.StargazersCount == nil || *observedRepo.StargazersCount >= visibilityStargazerGuard {
		stars := "an unknown number of"
		if observedRepo.StargazersCount != nil {
			stars = fmt.Sprintf("`%d`", *observedRepo.StargazersCount)
		}
		text := fmt.Sprintf("Aborting repository visibility update of %s as repo has %s stargazers", repo.Name, stars)
		r.executor.AddAlertLine("%s", text)
		lc.AddWarn(fmt.Errorf("%s", text))
		message := alert.NewMessage(alert.SeverityCritical, "Repository visibility change refused").
			AddRepo(orgname, repo.Name).
			AddSection("%s", text).
			Build()
		if err := r.sink.Send(ctx, message); err != nil {
			logrus.WithField("org", orgname).Warnf("cannot send alert message: %v", err)
		}
		return
	}

	r.executor.UpdateRepositoryVisibility(ctx, lc, dryrun, repo.Name, shouldBePrivate)
}

// declared property values, augmented with the definition defaults the
// repo does not override, compared in property_name order
func (r *Reconciler) reconcileRepoProperties(ctx context.Context, lc *observability.LogCollection, orgConfig *entity.OrganizationConfig, repo *entity.RepositoryConfig, meta *RepoMetadata, dryrun bool) {
	desired := make(map[string]entity.PropertyValue)
	for _, prop := range orgConfig.CustomProperties {
		if prop.DefaultValue != nil {
			desired[prop.PropertyName] = *prop.DefaultValue
		}
	}
	for name, value := range repo.Properties {
		desired[name] = value
	}
	if len(desired) == 0 {
		return
	}

	names := make(map[string]bool)
	for name := range desired {
		names[name] = true
	}
	for name := range meta.Properties {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		desiredValue, declared := desired[name]
		observedValue, present := meta.Properties[name]
		if declared != present || !desiredValue.Equal(observedValue) {
			r.executor.UpdateRepositoryProperties(ctx, lc, dryrun, repo.Name, desired)
			return
		}
	}
}

func (r *Reconciler) reconcileRepoRulesets(ctx context.Context, lc *observability.LogCollection, repo *entity.RepositoryConfig, meta *RepoMetadata, observedTeams map[string]*GithubTeam, dryrun bool) {
	if len(repo.ResolvedRulesets()) == 0 {
		return
	}

	teamIds := make(map[string]int, len(observedTeams))
	for name, team := range observedTeams {
		teamIds[name] = team.Id
	}

	declared := make(map[string]*GithubRuleset)
	for _, ruleset := range repo.ResolvedRulesets() {
		declared[ruleset.Name] = NormalizeRuleset(ruleset, teamIds)
	}

	CompareEntities(declared, meta.Rulesets,
		func(name string, d *GithubRuleset, o *GithubRuleset) bool {
			return RulesetsEqual(d, ProjectObservedRuleset(o))
		},
		func(name string, d *GithubRuleset, o *GithubRuleset) {
			r.executor.AddRepositoryRuleset(ctx, lc, dryrun, repo.Name, d)
		},
		func(name string, d *GithubRuleset, o *GithubRuleset) {
			r.executor.DeleteRepositoryRuleset(ctx, lc, dryrun, repo.Name, meta.RulesetIds[name])
		},
		func(name string, d *GithubRuleset, o *GithubRuleset) {
			diff := DiffRulesets(d, ProjectObservedRuleset(o), false)
			r.executor.AddAlertLine("Ruleset %s on repo %s drifted:\n%s", name, repo.Name, diff)
			r.executor.UpdateRepositoryRuleset(ctx, lc, dryrun, repo.Name, meta.RulesetIds[name], d)
		})
}

func sortedMapKeys(m map[string]entity.AccessLevel) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedRepoNames(repos map[string]*GithubRepository) []string {
	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedTeamNames(teams map[string]*GithubTeam) []string {
	names := make([]string, 0, len(teams))
	for name := range teams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
