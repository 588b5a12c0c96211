package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gosimple/slug"
	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sheriff-project/sheriff/internal/utils"
	"github.com/sirupsen/logrus"
)

const gsuiteAPIBase = "https://admin.googleapis.com/admin/directory/v1"

/*
 * GsuitePlugin mirrors every team carrying a gsuite block as a
 * directory group. The group address is derived from the team's
 * displayName under the configured domain.
 */
type GsuitePlugin struct {
	httpClient *http.Client
	apiBase    string
}

func NewGsuitePlugin(httpClient *http.Client) *GsuitePlugin {
	return &GsuitePlugin{
		httpClient: httpClient,
		apiBase:    gsuiteAPIBase,
	}
}

func (p *GsuitePlugin) Name() string {
	return "gsuite"
}

func (p *GsuitePlugin) HandleTeam(ctx context.Context, lc *observability.LogCollection, dryrun bool, org string, team *entity.TeamConfig, sink alert.Sink) {
	if team.Gsuite == nil {
		return
	}
	if config.Config.GsuiteToken == "" || config.Config.GsuiteDomain == "" {
		lc.AddWarn(fmt.Errorf("team %s declares gsuite but GSUITE_TOKEN or SHERIFF_GSUITE_DOMAIN is not set", team.Name))
		return
	}

	groupEmail := fmt.Sprintf("%s@%s", slug.Make(team.DisplayName), config.Config.GsuiteDomain)

	desired := []string{}
	for _, login := range append(append([]string{}, team.Maintainers...), team.Members...) {
		desired = append(desired, fmt.Sprintf("%s@%s", login, config.Config.GsuiteDomain))
	}
	sort.Strings(desired)

	current, exists, err := p.groupMembers(ctx, groupEmail)
	if err != nil {
		lc.AddError(fmt.Errorf("gsuite: cannot read group %s: %w", groupEmail, err))
		return
	}

	if equivalent, _, _ := utils.StringArrayEquivalent(desired, current); exists && equivalent {
		return
	}

	logrus.WithFields(logrus.Fields{"dryrun": dryrun, "plugin": "gsuite", "org": org}).
		Infof("Syncing directory group %s with %d members", groupEmail, len(desired))
	if dryrun {
		return
	}

	if !exists {
		if err := p.createGroup(ctx, groupEmail, team.DisplayName); err != nil {
			lc.AddError(fmt.Errorf("gsuite: cannot create group %s: %w", groupEmail, err))
			return
		}
	}

	_, toRemove, toAdd := utils.StringArrayEquivalent(desired, current)
	for _, email := range toAdd {
		if err := p.addMember(ctx, groupEmail, email); err != nil {
			lc.AddError(fmt.Errorf("gsuite: cannot add %s to %s: %w", email, groupEmail, err))
		}
	}
	for _, email := range toRemove {
		if err := p.removeMember(ctx, groupEmail, email); err != nil {
			lc.AddError(fmt.Errorf("gsuite: cannot remove %s from %s: %w", email, groupEmail, err))
		}
	}
}

func (p *GsuitePlugin) groupMembers(ctx context.Context, groupEmail string) ([]string, bool, error) {
	body, status, err := p.call(ctx, http.MethodGet, fmt.Sprintf("/groups/%s/members", groupEmail), nil)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status != http.StatusOK {
		return nil, false, fmt.Errorf("directory api returned %d", status)
	}

	response := struct {
		Members []struct {
			Email string `json:"email"`
		} `json:"members"`
	}{}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, false, err
	}
	emails := make([]string, 0, len(response.Members))
	for _, member := range response.Members {
		emails = append(emails, member.Email)
	}
	sort.Strings(emails)
	return emails, true, nil
}

func (p *GsuitePlugin) createGroup(ctx context.Context, groupEmail, name string) error {
	payload := map[string]string{"email": groupEmail, "name": name}
	_, status, err := p.call(ctx, http.MethodPost, "/groups", payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("directory api returned %d", status)
	}
	return nil
}

func (p *GsuitePlugin) addMember(ctx context.Context, groupEmail, email string) error {
	payload := map[string]string{"email": email, "role": "MEMBER"}
	_, status, err := p.call(ctx, http.MethodPost, fmt.Sprintf("/groups/%s/members", groupEmail), payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("directory api returned %d", status)
	}
	return nil
}

func (p *GsuitePlugin) removeMember(ctx context.Context, groupEmail, email string) error {
	_, status, err := p.call(ctx, http.MethodDelete, fmt.Sprintf("/groups/%s/members/%s", groupEmail, email), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return fmt.Errorf("directory api returned %d", status)
	}
	return nil
}

func (p *GsuitePlugin) call(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
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
	req.Header.Set("Authorization", "Bearer "+config.Config.GsuiteToken)
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
