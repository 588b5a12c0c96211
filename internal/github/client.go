package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gogithub "github.com/google/go-github/v55/github"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Client interface {
	QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error)
	CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}) ([]byte, error)
	// Rest returns a typed client sharing the same authenticated
	// transport; used for check runs, gists, releases and pull requests
	Rest() *gogithub.Client
	GetAccessToken(ctx context.Context) (string, error)
	ReadOnly() bool
}

type ClientImpl struct {
	gitHubServer    string
	appID           int64
	installationID  int64
	privateKey      []byte
	patToken        string // if not "" we use the personal access token
	accessToken     string
	readOnly        bool
	httpClient      *http.Client
	restClient      *gogithub.Client
	tokenExpiration time.Time
	mu              sync.Mutex
}

type authorizedTransport struct {
	client *ClientImpl
}

func (t *authorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// read-only narrowing happens at the transport level, so even a
	// code path that forgot to check the dry-run flag cannot mutate
	if t.client.readOnly && req.Method != http.MethodGet && req.Method != http.MethodHead {
		return nil, fmt.Errorf("read-only client: refusing %s %s", req.Method, req.URL.Path)
	}

	t.client.mu.Lock()

	if t.client.patToken != "" {
		req.Header.Add("Authorization", "Bearer "+t.client.patToken)
		t.client.mu.Unlock()
		return http.DefaultTransport.RoundTrip(req)
	}

	// Refresh the access token if necessary
	if t.client.accessToken == "" || time.Until(t.client.tokenExpiration) < 5*time.Minute {
		token, err := t.client.createJWT()
		if err != nil {
			t.client.mu.Unlock()
			return nil, err
		}

		accessToken, expiresAt, err := t.client.getAccessTokenForInstallation(req.Context(), token)
		if err != nil {
			t.client.mu.Unlock()
			return nil, err
		}
		t.client.accessToken = accessToken
		t.client.tokenExpiration = expiresAt
	}
	t.client.mu.Unlock()

	req.Header.Add("Authorization", "Bearer "+t.client.accessToken)

	return http.DefaultTransport.RoundTrip(req)
}

func newClientImpl(githubServer, organizationName string, appID int64, privateKey []byte, patToken string, readOnly bool) (*ClientImpl, error) {
	client := &ClientImpl{
		gitHubServer: githubServer,
		appID:        appID,
		privateKey:   privateKey,
		patToken:     patToken,
		readOnly:     readOnly,
	}

	// If a personal access token is not provided, we need to find the
	// installation ID for the organization
	if client.patToken == "" {
		token, err := client.createJWT()
		if err != nil {
			return nil, err
		}

		installations, err := client.getInstallations(token)
		if err != nil {
			return nil, err
		}

		for _, installation := range installations {
			logrus.Debugf("found installation %d for organization: %s", installation.ID, organizationName)
			if strings.EqualFold(installation.Account.Login, organizationName) && installation.AppId == appID {
				client.installationID = installation.ID
				break
			}
		}

		if client.installationID == 0 {
			return nil, fmt.Errorf("installation not found for organization: %s", organizationName)
		}
	}

	transport := &authorizedTransport{client: client}
	client.httpClient = &http.Client{Transport: transport}
	client.restClient = gogithub.NewClient(client.httpClient)

	return client, nil
}

// waitRateLimit helps dealing with rate limits
// cf https://docs.github.com/en/rest/guides/best-practices-for-integrators?apiVersion=2022-11-28#dealing-with-rate-limits
func waitRateLimit(resetTimeStr string) error {
	if resetTimeStr == "" {
		return fmt.Errorf("X-RateLimit-Reset header not found")
	}

	logrus.Infof("Rate limit exceeded, waiting for %s", resetTimeStr)

	resetTimeUnix, err := strconv.ParseInt(resetTimeStr, 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse X-RateLimit-Reset header: %w", err)
	}

	resetTime := time.Unix(resetTimeUnix, 0)
	time.Sleep(time.Until(resetTime))

	return nil
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func (client *ClientImpl) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	var childSpan trace.Span
	if config.Config.OpenTelemetryEnabled {
		if strings.Contains(query, "mutation") || config.Config.OpenTelemetryTraceAll {
			ctx, childSpan = otel.Tracer("sheriff").Start(ctx, "QueryGraphQLAPI")
			defer childSpan.End()

			childSpan.SetAttributes(
				attribute.String("query", query),
			)
		}
	}
	body, err := json.Marshal(graphQLRequest{
		Query:     query,
		Variables: variables,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", client.gitHubServer+"/graphql", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	stats := ctx.Value(config.ContextKeyStatistics)
	if stats != nil {
		sheriffStats := stats.(*config.SheriffStatistics)
		sheriffStats.GithubApiCalls++
	}

	resp, err := client.httpClient.Do(req)
	if err != nil {
		if childSpan != nil {
			childSpan.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		if stats != nil {
			sheriffStats := stats.(*config.SheriffStatistics)
			sheriffStats.GithubThrottled++
		}

		if resp.Header.Get("X-RateLimit-Reset") != "" {
			if err := waitRateLimit(resp.Header.Get("X-RateLimit-Reset")); err != nil {
				return nil, err
			}
		} else if resp.Header.Get("Retry-After") != "" {
			retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
			if err != nil {
				return nil, err
			}
			if retryAfter > 30 {
				retryAfter = retryAfter / 2 // ok we shouldn't be too aggressive
			}
			logrus.Debugf("2nd rate limit reached, waiting for %d seconds", retryAfter)
			time.Sleep(time.Duration(retryAfter) * time.Second)
		} else {
			return nil, fmt.Errorf("unexpected status: %s", resp.Status)
		}

		// Retry the request.
		return client.QueryGraphQLAPI(ctx, query, variables)
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return responseBody, nil
}

func (client *ClientImpl) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}) ([]byte, error) {
	var childSpan trace.Span
	if config.Config.OpenTelemetryEnabled {
		if method != "GET" || config.Config.OpenTelemetryTraceAll {
			ctx, childSpan = otel.Tracer("sheriff").Start(ctx, fmt.Sprintf("CallRestAPI %s", endpoint))
			defer childSpan.End()

			childSpan.SetAttributes(
				attribute.String("method", method),
				attribute.String("endpoint", endpoint),
				attribute.String("parameters", parameters),
			)
		}
	}
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		if childSpan != nil {
			childSpan.SetAttributes(attribute.String("body", string(jsonBody)))
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}
	urlpath, err := url.JoinPath(client.gitHubServer, endpoint)
	if err != nil {
		return nil, err
	}

	stats := ctx.Value(config.ContextKeyStatistics)
	if stats != nil {
		sheriffStats := stats.(*config.SheriffStatistics)
		sheriffStats.GithubApiCalls++
	}

	if parameters != "" {
		urlpath = urlpath + "?" + parameters
	}

	req, err := http.NewRequestWithContext(ctx, method, urlpath, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		if childSpan != nil {
			childSpan.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if stats != nil {
			sheriffStats := stats.(*config.SheriffStatistics)
			sheriffStats.GithubThrottled++
		}

		if err := waitRateLimit(resp.Header.Get("X-RateLimit-Reset")); err != nil {
			return nil, err
		}

		// Retry the request.
		return client.CallRestAPI(ctx, endpoint, parameters, method, body)
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if childSpan != nil {
			childSpan.SetStatus(codes.Error, fmt.Sprintf("unexpected status: %s", resp.Status))
		}
		return responseBody, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	return responseBody, nil
}

func (client *ClientImpl) Rest() *gogithub.Client {
	return client.restClient
}

func (client *ClientImpl) ReadOnly() bool {
	return client.readOnly
}

func (client *ClientImpl) createJWT() (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(client.privateKey)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iat": int32(time.Now().Unix()),
		"exp": int32(time.Now().Add(10 * time.Minute).Unix()),
		"iss": client.appID,
	})

	signedToken, err := token.SignedString(key)
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

type accessTokenResponse struct {
	Token string `json:"token"`
}

func (client *ClientImpl) getAccessTokenForInstallation(ctx context.Context, jwtToken string) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/app/installations/%d/access_tokens", client.gitHubServer, client.installationID), nil)
	if err != nil {
		return "", time.Now(), err
	}

	req.Header.Add("Authorization", "Bearer "+jwtToken)
	req.Header.Add("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", time.Now(), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", time.Now(), fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var tokenResponse accessTokenResponse
	err = json.NewDecoder(resp.Body).Decode(&tokenResponse)
	if err != nil {
		return "", time.Now(), err
	}

	return tokenResponse.Token, time.Now().Add(1 * time.Hour), nil
}

type installation struct {
	ID      int64 `json:"id"`
	AppId   int64 `json:"app_id"`
	Account struct {
		Login string `json:"login"`
	} `json:"account"`
}

func (client *ClientImpl) getInstallations(jwtToken string) ([]installation, error) {
	req, err := http.NewRequest("GET", client.gitHubServer+"/app/installations", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", "Bearer "+jwtToken)
	req.Header.Add("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var installations []installation
	if err := json.NewDecoder(resp.Body).Decode(&installations); err != nil {
		return nil, err
	}
	return installations, nil
}

func (client *ClientImpl) GetAccessToken(ctx context.Context) (string, error) {
	if client.patToken != "" {
		return client.patToken, nil
	}
	if client.accessToken != "" && client.tokenExpiration.After(time.Now()) {
		return client.accessToken, nil
	}

	jwtToken, err := client.createJWT()
	if err != nil {
		return "", err
	}

	accessToken, expiration, err := client.getAccessTokenForInstallation(ctx, jwtToken)
	if err != nil {
		return "", err
	}

	client.accessToken = accessToken
	client.tokenExpiration = expiration

	return accessToken, nil
}
