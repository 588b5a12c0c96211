package plugins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sirupsen/logrus"
)

const npmEnvironmentName = "npm"
const npmClientIdVariable = "NPM_TRUSTED_PUBLISHER_GITHUB_APP_CLIENT_ID"

/*
 * GithubPlugin maintains the npm trusted-publisher deployment
 * environment on every repo asking for it: an environment named "npm"
 * carrying the publishing app's client id as an actions variable.
 */
type GithubPlugin struct {
	provider github.ClientProvider
}

func NewGithubPlugin(provider github.ClientProvider) *GithubPlugin {
	return &GithubPlugin{provider: provider}
}

func (p *GithubPlugin) Name() string {
	return "github"
}

func (p *GithubPlugin) HandleRepo(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, repo *entity.RepositoryConfig, teams []*entity.TeamConfig, sink alert.Sink) {
	if !repo.NpmTrustedPublisher {
		return
	}
	clientId := config.Config.NpmTrustedPublisherClientID
	if clientId == "" {
		lc.AddWarn(fmt.Errorf("repo %s asks for npm trusted publisher but NPM_TRUSTED_PUBLISHER_GITHUB_APP_CLIENT_ID is not set", repo.Name))
		return
	}

	client, err := p.provider.ClientFor(org, dryrun)
	if err != nil {
		lc.AddError(err)
		return
	}

	current, err := p.currentClientId(ctx, client, org, repo.Name)
	if err != nil {
		lc.AddError(fmt.Errorf("cannot read npm environment of %s/%s: %w", org, repo.Name, err))
		return
	}
	if current == clientId {
		return
	}

	logrus.WithFields(logrus.Fields{"dryrun": dryrun, "plugin": "github", "org": org}).
		Infof("Configuring npm trusted publisher environment on %s", repo.Name)
	if dryrun {
		return
	}

	_, err = client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/environments/%s", org, repo.Name, npmEnvironmentName),
		"", "PUT", map[string]interface{}{})
	if err != nil {
		lc.AddError(fmt.Errorf("cannot create npm environment on %s/%s: %w", org, repo.Name, err))
		return
	}

	method := "POST"
	endpoint := fmt.Sprintf("/repos/%s/%s/environments/%s/variables", org, repo.Name, npmEnvironmentName)
	if current != "" {
		method = "PATCH"
		endpoint = endpoint + "/" + npmClientIdVariable
	}
	_, err = client.CallRestAPI(ctx, endpoint, "", method, map[string]interface{}{
		"name":  npmClientIdVariable,
		"value": clientId,
	})
	if err != nil {
		lc.AddError(fmt.Errorf("cannot set npm publisher variable on %s/%s: %w", org, repo.Name, err))
	}
}

// currentClientId returns the configured client id, or "" when the
// environment or the variable does not exist yet.
func (p *GithubPlugin) currentClientId(ctx context.Context, client github.Client, org, repo string) (string, error) {
	body, err := client.CallRestAPI(ctx,
		fmt.Sprintf("/repos/%s/%s/environments/%s/variables/%s", org, repo, npmEnvironmentName, npmClientIdVariable),
		"", "GET", nil)
	if err != nil {
		// a missing environment or variable reads as not configured
		return "", nil
	}
	variable := struct {
		Value string `json:"value"`
	}{}
	if err := json.Unmarshal(body, &variable); err != nil {
		return "", err
	}
	return variable.Value, nil
}
