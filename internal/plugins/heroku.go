package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sheriff-project/sheriff/internal/utils"
	"github.com/sirupsen/logrus"
)

const herokuAPIBase = "https://api.heroku.com"

/*
 * HerokuPlugin mirrors the hosting access of every repo carrying a
 * heroku block: the collaborators of the app are kept equal to the
 * declared team's roster (plus the magic admin), addressed by email
 * through the gsuite domain.
 */
type HerokuPlugin struct {
	httpClient *http.Client
	apiBase    string
}

func NewHerokuPlugin(httpClient *http.Client) *HerokuPlugin {
	return &HerokuPlugin{
		httpClient: httpClient,
		apiBase:    herokuAPIBase,
	}
}

func (p *HerokuPlugin) Name() string {
	return "heroku"
}

func (p *HerokuPlugin) HandleRepo(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, repo *entity.RepositoryConfig, teams []*entity.TeamConfig, sink alert.Sink) {
	if repo.Heroku == nil {
		return
	}
	if config.Config.HerokuToken == "" {
		lc.AddWarn(fmt.Errorf("repo %s declares heroku but HEROKU_TOKEN is not set", repo.Name))
		return
	}

	desired := p.desiredCollaborators(repo, teams)

	current, err := p.appCollaborators(ctx, repo.Heroku.AppName)
	if err != nil {
		lc.AddError(fmt.Errorf("heroku: cannot list collaborators of %s: %w", repo.Heroku.AppName, err))
		return
	}

	equivalent, toRemove, toAdd := utils.StringArrayEquivalent(desired, current)
	if equivalent {
		return
	}

	logrus.WithFields(logrus.Fields{"dryrun": dryrun, "plugin": "heroku", "org": org}).
		Infof("Syncing heroku app %s: %d to add, %d to remove", repo.Heroku.AppName, len(toAdd), len(toRemove))
	if dryrun {
		return
	}

	for _, email := range toAdd {
		if err := p.addCollaborator(ctx, repo.Heroku.AppName, email); err != nil {
			lc.AddError(fmt.Errorf("heroku: cannot add %s to %s: %w", email, repo.Heroku.AppName, err))
		}
	}
	for _, email := range toRemove {
		if err := p.removeCollaborator(ctx, repo.Heroku.AppName, email); err != nil {
			lc.AddError(fmt.Errorf("heroku: cannot remove %s from %s: %w", email, repo.Heroku.AppName, err))
		}
	}
}

// desiredCollaborators is the roster of the declared team (or of every
// team granted on the repo when no team is named), plus the magic
// admin, as emails.
func (p *HerokuPlugin) desiredCollaborators(repo *entity.RepositoryConfig, teams []*entity.TeamConfig) []string {
	logins := make(map[string]bool)
	for _, team := range teams {
		granted := repo.Heroku.Team == team.Name
		if repo.Heroku.Team == "" {
			_, granted = repo.Teams[team.Name]
		}
		if !granted {
			continue
		}
		for _, login := range team.Maintainers {
			logins[login] = true
		}
		for _, login := range team.Members {
			logins[login] = true
		}
	}

	emails := []string{}
	for login := range logins {
		emails = append(emails, fmt.Sprintf("%s@%s", login, config.Config.GsuiteDomain))
	}
	if config.Config.HerokuMagicAdmin != "" {
		emails = append(emails, config.Config.HerokuMagicAdmin)
	}
	sort.Strings(emails)
	return emails
}

func (p *HerokuPlugin) appCollaborators(ctx context.Context, app string) ([]string, error) {
	body, status, err := p.call(ctx, http.MethodGet, fmt.Sprintf("/apps/%s/collaborators", app), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("heroku api returned %d", status)
	}

	collaborators := []struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}{}
	if err := json.Unmarshal(body, &collaborators); err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(collaborators))
	for _, c := range collaborators {
		emails = append(emails, c.User.Email)
	}
	sort.Strings(emails)
	return emails, nil
}

func (p *HerokuPlugin) addCollaborator(ctx context.Context, app, email string) error {
	payload := map[string]interface{}{"user": email, "silent": true}
	_, status, err := p.call(ctx, http.MethodPost, fmt.Sprintf("/apps/%s/collaborators", app), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("heroku api returned %d", status)
	}
	return nil
}

func (p *HerokuPlugin) removeCollaborator(ctx context.Context, app, email string) error {
	_, status, err := p.call(ctx, http.MethodDelete, fmt.Sprintf("/apps/%s/collaborators/%s", app, email), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("heroku api returned %d", status)
	}
	return nil
}

func (p *HerokuPlugin) call(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.apiBase+path, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+config.Config.HerokuToken)
	req.Header.Set("Accept", "application/vnd.heroku+json; version=3")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}
