package enforce

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/github"
)

// enforceCollaborator decides what to do with a member.added/.edited/
// .removed delivery. The decision ladder:
//
//  - org or repo not under management          -> ALLOW
//  - member is an org owner                    -> ALLOW (admin is implied)
//  - undeclared and the event removed them     -> ALLOW
//  - undeclared but still present              -> remove, REVERT
//  - declared, absent or at the wrong level    -> re-add at the declared
//    level; REVERT when the event removed them, ADJUST otherwise
//  - declared and at the declared level        -> ALLOW
//
// Collaborator state is re-read from the API right before comparing, so
// a racing delivery at worst triggers one more benign round.
func (e *Engine) enforceCollaborator(ctx context.Context, event *eventPayload, payload []byte) error {
	org := event.Repository.Owner.Login
	repo := event.Repository.Name
	login := event.Member.Login

	permissions, err := e.loadConfig(ctx)
	if err != nil {
		return fmt.Errorf("cannot load permissions config: %w", err)
	}
	orgConfig := permissions.Org(org)
	if orgConfig == nil {
		return nil
	}
	repoConfig := orgConfig.Repository(repo)
	if repoConfig == nil {
		return nil
	}

	expectedLevel, declared := repoConfig.ExternalCollaborators[login]

	owners, err := e.cache.Owners(ctx, org)
	if err != nil {
		return fmt.Errorf("cannot list %s owners: %w", org, err)
	}
	for _, owner := range owners {
		if owner == login {
			return nil
		}
	}

	if !declared && event.Action == "removed" {
		return nil
	}

	client, err := e.provider.ClientFor(org, false)
	if err != nil {
		return err
	}

	if !declared {
		if err := e.removeCollaborator(ctx, client, org, repo, login); err != nil {
			return err
		}
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Undeclared collaborator %s on %s/%s was automatically reverted", login, org, repo),
			event, payload, alert.OutcomeRevert)
		return nil
	}

	currentLevel, found, err := e.directCollaboratorLevel(ctx, client, org, repo, login)
	if err != nil {
		return err
	}
	if found && currentLevel == expectedLevel {
		return nil
	}

	if err := e.addCollaborator(ctx, client, org, repo, login, expectedLevel); err != nil {
		return err
	}
	if event.Action == "removed" {
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Collaborator %s on %s/%s was automatically reverted", login, org, repo),
			event, payload, alert.OutcomeRevert)
	} else {
		e.post(ctx, alert.SeverityCritical,
			fmt.Sprintf("Collaborator %s on %s/%s was adjusted to the correct state of `%s`", login, org, repo, expectedLevel),
			event, payload, alert.OutcomeAdjust)
	}
	return nil
}

// directCollaboratorLevel re-reads the direct collaborators of the repo
// and returns the current level of login, if any.
func (e *Engine) directCollaboratorLevel(ctx context.Context, client github.Client, org, repo, login string) (entity.AccessLevel, bool, error) {
	type restCollaborator struct {
		Login       string          `json:"login"`
		Permissions map[string]bool `json:"permissions"`
	}

	page := 1
	for {
		body, err := client.CallRestAPI(ctx,
			fmt.Sprintf("/repos/%s/%s/collaborators", org, repo),
			fmt.Sprintf("affiliation=direct&per_page=100&page=%d", page),
			"GET", nil)
		if err != nil {
			return "", false, fmt.Errorf("cannot list %s/%s collaborators: %w", org, repo, err)
		}
		collaborators := []restCollaborator{}
		if err := json.Unmarshal(body, &collaborators); err != nil {
			return "", false, err
		}
		for _, c := range collaborators {
			if c.Login != login {
				continue
			}
			level, ok := entity.AccessLevelFromPermissions(c.Permissions)
			return level, ok, nil
		}
		if len(collaborators) < 100 {
			return "", false, nil
		}
		page++
	}
}

func (e *Engine) addCollaborator(ctx context.Context, client github.Client, org, repo, login string, level entity.AccessLevel) error {
	_, err := client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/collaborators/%s", org, repo, login),
		"", "PUT",
		map[string]interface{}{"permission": level.GithubPermission()})
	if err != nil {
		return fmt.Errorf("cannot add collaborator %s to %s/%s: %w", login, org, repo, err)
	}
	return nil
}

func (e *Engine) removeCollaborator(ctx context.Context, client github.Client, org, repo, login string) error {
	_, err := client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/collaborators/%s", org, repo, login),
		"", "DELETE", nil)
	if err != nil {
		return fmt.Errorf("cannot remove collaborator %s from %s/%s: %w", login, org, repo, err)
	}
	return nil
}
