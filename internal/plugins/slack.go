package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sirupsen/logrus"
)

const slackAPIBase = "https://slack.com/api"

/*
 * SlackPlugin mirrors every team carrying a slack setting as a chat
 * user group. The group handle is either declared explicitly
 * (`slack: some-handle`) or derived from the team name.
 */
type SlackPlugin struct {
	httpClient *http.Client
	apiBase    string
}

func NewSlackPlugin(httpClient *http.Client) *SlackPlugin {
	return &SlackPlugin{
		httpClient: httpClient,
		apiBase:    slackAPIBase,
	}
}

func (p *SlackPlugin) Name() string {
	return "slack"
}

func (p *SlackPlugin) HandleTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, team *entity.TeamConfig, sink alert.Sink) {
	if team.Slack == nil || !team.Slack.Enabled {
		return
	}
	if config.Config.SlackToken == "" {
		lc.AddWarn(fmt.Errorf("team %s declares slack but SLACK_TOKEN is not set", team.Name))
		return
	}

	handle := team.Slack.UserGroup
	if handle == "" {
		handle = slug.Make(team.Name)
	}

	groupId, err := p.findUserGroup(ctx, handle)
	if err != nil {
		lc.AddError(fmt.Errorf("slack: cannot list user groups: %w", err))
		return
	}

	logins := append(append([]string{}, team.Maintainers...), team.Members...)
	sort.Strings(logins)

	logrus.WithFields(logrus.Fields{"dryrun": dryrun, "plugin": "slack", "org": org}).
		Infof("Syncing user group %s with %d users", handle, len(logins))
	if dryrun {
		return
	}

	if groupId == "" {
		groupId, err = p.createUserGroup(ctx, handle, team.Name)
		if err != nil {
			lc.AddError(fmt.Errorf("slack: cannot create user group %s: %w", handle, err))
			return
		}
	}

	if err := p.setUserGroupMembers(ctx, groupId, logins); err != nil {
		lc.AddError(fmt.Errorf("slack: cannot update user group %s: %w", handle, err))
	}
}

type slackUserGroup struct {
	Id     string `json:"id"`
	Handle string `json:"handle"`
}

func (p *SlackPlugin) findUserGroup(ctx context.Context, handle string) (string, error) {
	response := struct {
		Ok         bool             `json:"ok"`
		Error      string           `json:"error"`
		Usergroups []slackUserGroup `json:"usergroups"`
	}{}
	if err := p.call(ctx, "usergroups.list", url.Values{}, &response); err != nil {
		return "", err
	}
	if !response.Ok {
		return "", fmt.Errorf("slack api error: %s", response.Error)
	}
	for _, group := range response.Usergroups {
		if group.Handle == handle {
			return group.Id, nil
		}
	}
	return "", nil
}

func (p *SlackPlugin) createUserGroup(ctx context.Context, handle, name string) (string, error) {
	response := struct {
		Ok        bool           `json:"ok"`
		Error     string         `json:"error"`
		Usergroup slackUserGroup `json:"usergroup"`
	}{}
	values := url.Values{"handle": {handle}, "name": {name}}
	if err := p.call(ctx, "usergroups.create", values, &response); err != nil {
		return "", err
	}
	if !response.Ok {
		return "", fmt.Errorf("slack api error: %s", response.Error)
	}
	return response.Usergroup.Id, nil
}

func (p *SlackPlugin) setUserGroupMembers(ctx context.Context, groupId string, logins []string) error {
	// the chat directory is keyed by email; logins map through the
	// configured domain
	emails := make([]string, 0, len(logins))
	for _, login := range logins {
		emails = append(emails, fmt.Sprintf("%s@%s", login, config.Config.SlackDomain))
	}

	response := struct {
		Ok    bool   `json:"ok"`
		Error string `json:"error"`
	}{}
	values := url.Values{"usergroup": {groupId}, "users": {strings.Join(emails, ",")}}
	if err := p.call(ctx, "usergroups.users.update", values, &response); err != nil {
		return err
	}
	if !response.Ok {
		return fmt.Errorf("slack api error: %s", response.Error)
	}
	return nil
}

func (p *SlackPlugin) call(ctx context.Context, method string, values url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s", p.apiBase, method),
		strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+config.Config.SlackToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
