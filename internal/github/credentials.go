package github

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sheriff-project/sheriff/internal/config"
)

/*
 * AppCredentials is the decoded SHERIFF_GITHUB_APP_CREDS document. The
 * env variable holds either the JSON itself or a path to a file
 * containing it. A personal access token can be supplied instead of
 * (app_id, private_key) for development.
 */
type AppCredentials struct {
	AppID               int64  `json:"app_id"`
	PrivateKey          string `json:"private_key"`
	PersonalAccessToken string `json:"pat,omitempty"`
}

func LoadAppCredentials() (*AppCredentials, error) {
	raw := config.Config.GithubAppCreds
	if raw == "" {
		return nil, fmt.Errorf("SHERIFF_GITHUB_APP_CREDS is not set")
	}
	if !strings.HasPrefix(strings.TrimSpace(raw), "{") {
		content, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot read credentials file %s: %w", raw, err)
		}
		raw = string(content)
	}
	creds := &AppCredentials{}
	if err := json.Unmarshal([]byte(raw), creds); err != nil {
		return nil, fmt.Errorf("cannot decode SHERIFF_GITHUB_APP_CREDS: %w", err)
	}
	if creds.PersonalAccessToken == "" && (creds.AppID == 0 || creds.PrivateKey == "") {
		return nil, fmt.Errorf("SHERIFF_GITHUB_APP_CREDS must carry a pat or (app_id, private_key)")
	}
	return creds, nil
}

/*
 * ClientProvider hands out per-organization clients. While the global
 * dry-run flag is set every client is narrowed to read-only at the
 * transport level, whatever the caller asked for.
 */
type ClientProvider interface {
	ClientFor(org string, readOnly bool) (Client, error)
}

type ClientProviderImpl struct {
	creds   *AppCredentials
	mu      sync.Mutex
	clients map[string]Client // keyed by org + readonly flag
}

func NewClientProvider(creds *AppCredentials) *ClientProviderImpl {
	return &ClientProviderImpl{
		creds:   creds,
		clients: make(map[string]Client),
	}
}

func (p *ClientProviderImpl) ClientFor(org string, readOnly bool) (Client, error) {
	if config.Config.DryRun {
		readOnly = true
	}

	key := fmt.Sprintf("%s/%t", org, readOnly)

	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[key]; ok {
		return client, nil
	}

	client, err := newClientImpl(
		config.Config.GithubServer,
		org,
		p.creds.AppID,
		[]byte(p.creds.PrivateKey),
		p.creds.PersonalAccessToken,
		readOnly,
	)
	if err != nil {
		return nil, err
	}
	p.clients[key] = client
	return client, nil
}
