package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	gogithub "github.com/google/go-github/v55/github"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/stretchr/testify/assert"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// githubAPIStub fakes the typed REST surface the harness touches:
// pull request poll, check runs, file contents and gist upload.
type githubAPIStub struct {
	mu       sync.Mutex
	requests []recordedRequest
	mergeSha string
}

func (g *githubAPIStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{}
		if r.Method == http.MethodPost || r.Method == http.MethodPatch {
			raw, _ := io.ReadAll(r.Body)
			json.Unmarshal(raw, &body)
		}
		g.mu.Lock()
		g.requests = append(g.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		g.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/myorg/.permissions/pulls/42":
			fmt.Fprintf(w, `{"number": 42, "merge_commit_sha": %q, "head": {"sha": "H"}}`, g.mergeSha)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/myorg/.permissions/check-runs":
			fmt.Fprint(w, `{"id": 7}`)
		case r.Method == http.MethodPatch && r.URL.Path == "/repos/myorg/.permissions/check-runs/7":
			fmt.Fprint(w, `{"id": 7}`)
		case r.Method == http.MethodGet && r.URL.Path == "/repos/myorg/.permissions/contents/config.yaml":
			content := base64.StdEncoding.EncodeToString([]byte("organization: myorg\n"))
			fmt.Fprintf(w, `{"type": "file", "name": "config.yaml", "path": "config.yaml", "encoding": "base64", "content": %q}`, content)
		case r.Method == http.MethodPost && r.URL.Path == "/gists":
			fmt.Fprint(w, `{"id": "g1", "files": {"dryrun.svg": {"raw_url": "https://gist.example/raw/dryrun.svg"}}}`)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func (g *githubAPIStub) recorded(method, pathPrefix string) []recordedRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	matches := []recordedRequest{}
	for _, r := range g.requests {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			matches = append(matches, r)
		}
	}
	return matches
}

type restOnlyClient struct {
	rest *gogithub.Client
}

func (c *restOnlyClient) CallRestAPI(ctx context.Context, endpoint, parameters, method string, body map[string]interface{}) ([]byte, error) {
	return nil, fmt.Errorf("not used")
}

func (c *restOnlyClient) QueryGraphQLAPI(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	return nil, fmt.Errorf("not used")
}

func (c *restOnlyClient) Rest() *gogithub.Client {
	return c.rest
}

func (c *restOnlyClient) GetAccessToken(ctx context.Context) (string, error) {
	return "token", nil
}

func (c *restOnlyClient) ReadOnly() bool {
	return false
}

type fixedProvider struct {
	client github.Client
}

func (p *fixedProvider) ClientFor(org string, readOnly bool) (github.Client, error) {
	return p.client, nil
}

func restClientFor(serverURL string) *gogithub.Client {
	rest := gogithub.NewClient(nil)
	baseURL, _ := url.Parse(serverURL + "/")
	rest.BaseURL = baseURL
	return rest
}

func newTestHarness(stub *githubAPIStub, t *testing.T) (*DryRunHarness, *httptest.Server) {
	apiServer := httptest.NewServer(stub.handler(t))
	rest := restClientFor(apiServer.URL)
	harness := NewDryRunHarness(&fixedProvider{client: &restOnlyClient{rest: rest}})
	harness.pollInterval = time.Millisecond
	harness.gistClient = rest
	return harness, apiServer
}

func withPermissionsRepo(t *testing.T) {
	savedOrg := config.Config.PermissionsFileOrg
	config.Config.PermissionsFileOrg = "myorg"
	t.Cleanup(func() { config.Config.PermissionsFileOrg = savedOrg })
}

var prPayload = []byte(`{
	"action": "synchronize",
	"number": 42,
	"repository": {"name": ".permissions", "owner": {"login": "myorg"}},
	"pull_request": {"head": {"sha": "H"}}
}`)

func TestDryRunHarness(t *testing.T) {
	ctx := context.TODO()

	t.Run("happy path: clean dry-run posts an in_progress then a success check", func(t *testing.T) {
		withPermissionsRepo(t)
		stub := &githubAPIStub{mergeSha: "M"}
		harness, apiServer := newTestHarness(stub, t)
		defer apiServer.Close()
		harness.command = []string{"/bin/echo", "dry run ok"}

		harness.HandlePullRequest(ctx, prPayload)
		harness.Drain()

		created := stub.recorded(http.MethodPost, "/repos/myorg/.permissions/check-runs")
		assert.Len(t, created, 1)
		assert.Equal(t, "Sheriff Dry Run", created[0].Body["name"])
		assert.Equal(t, "H", created[0].Body["head_sha"])
		assert.Equal(t, "in_progress", created[0].Body["status"])

		completed := stub.recorded(http.MethodPatch, "/repos/myorg/.permissions/check-runs/7")
		assert.Len(t, completed, 1)
		assert.Equal(t, "completed", completed[0].Body["status"])
		assert.Equal(t, "success", completed[0].Body["conclusion"])
		output := completed[0].Body["output"].(map[string]interface{})
		assert.Equal(t, `<img src="https://gist.example/raw/dryrun.svg" width="800" />`, output["text"])
	})

	t.Run("happy path: failing subprocess concludes failure", func(t *testing.T) {
		withPermissionsRepo(t)
		stub := &githubAPIStub{mergeSha: "M"}
		harness, apiServer := newTestHarness(stub, t)
		defer apiServer.Close()
		harness.command = []string{"/bin/false"}

		harness.HandlePullRequest(ctx, prPayload)
		harness.Drain()

		completed := stub.recorded(http.MethodPatch, "/repos/myorg/.permissions/check-runs/7")
		assert.Len(t, completed, 1)
		assert.Equal(t, "failure", completed[0].Body["conclusion"])
	})

	t.Run("error path: missing merge sha concludes failure without running", func(t *testing.T) {
		withPermissionsRepo(t)
		stub := &githubAPIStub{mergeSha: ""}
		harness, apiServer := newTestHarness(stub, t)
		defer apiServer.Close()
		harness.command = []string{"/bin/echo"}

		harness.HandlePullRequest(ctx, prPayload)
		harness.Drain()

		created := stub.recorded(http.MethodPost, "/repos/myorg/.permissions/check-runs")
		assert.Len(t, created, 1)
		assert.Equal(t, "completed", created[0].Body["status"])
		assert.Equal(t, "failure", created[0].Body["conclusion"])
		output := created[0].Body["output"].(map[string]interface{})
		assert.Equal(t, "No merge sha available", output["summary"])
	})

	t.Run("happy path: default command reconciles without the progress bar", func(t *testing.T) {
		harness := NewDryRunHarness(&fixedProvider{})

		// the subprocess output feeds the SVG snapshot verbatim, so the
		// progress bar's carriage-return animation frames must stay out
		assert.Equal(t, []string{"reconcile", "--color", "--noprogressbar"}, harness.command[1:])
	})

	t.Run("happy path: pull requests on other repos are ignored", func(t *testing.T) {
		withPermissionsRepo(t)
		stub := &githubAPIStub{mergeSha: "M"}
		harness, apiServer := newTestHarness(stub, t)
		defer apiServer.Close()

		harness.HandlePullRequest(ctx, []byte(`{
			"action": "opened",
			"number": 1,
			"repository": {"name": "app", "owner": {"login": "myorg"}},
			"pull_request": {"head": {"sha": "X"}}
		}`))
		harness.Drain()

		assert.Empty(t, stub.requests)
	})
}

func signed(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {

	newTestServer := func(t *testing.T) *Server {
		withPermissionsRepo(t)
		stub := &githubAPIStub{mergeSha: "M"}
		harness, apiServer := newTestHarness(stub, t)
		t.Cleanup(apiServer.Close)
		return NewServer(nil, harness)
	}

	t.Run("happy path: ping with a valid signature is accepted", func(t *testing.T) {
		server := newTestServer(t)
		body := []byte(`{"zen": "Design for failure."}`)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("X-GitHub-Event", "ping")
		req.Header.Set("X-Hub-Signature-256", signed(config.Config.WebhookSecret, body))
		recorder := httptest.NewRecorder()

		server.WebhookHandler(recorder, req)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("error path: invalid signature is rejected", func(t *testing.T) {
		server := newTestServer(t)
		body := []byte(`{}`)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("X-GitHub-Event", "ping")
		req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
		recorder := httptest.NewRecorder()

		server.WebhookHandler(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("error path: missing signature is rejected", func(t *testing.T) {
		server := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("X-GitHub-Event", "ping")
		recorder := httptest.NewRecorder()

		server.WebhookHandler(recorder, req)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("error path: non-POST is refused", func(t *testing.T) {
		server := newTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		recorder := httptest.NewRecorder()

		server.WebhookHandler(recorder, req)
		assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
	})
}

func TestAnsiToSVG(t *testing.T) {

	t.Run("happy path: colored output becomes tinted tspans", func(t *testing.T) {
		svg := AnsiToSVG("plain\n\x1b[31mred alert\x1b[0m tail\n")

		assert.Contains(t, svg, `<tspan fill="#d8dee9">plain</tspan>`)
		assert.Contains(t, svg, `<tspan fill="#bf616a">red alert</tspan>`)
		assert.Contains(t, svg, `<tspan fill="#d8dee9"> tail</tspan>`)
	})

	t.Run("happy path: markup characters are escaped", func(t *testing.T) {
		svg := AnsiToSVG("a < b & c > d")
		assert.Contains(t, svg, "a &lt; b &amp; c &gt; d")
	})

	t.Run("happy path: multibyte runes count once toward the viewport width", func(t *testing.T) {
		// both lines are 9 runes, only the byte counts differ
		wide := AnsiToSVG("déjà vu ☕\n")
		narrow := AnsiToSVG("deja vu c\n")

		assert.Contains(t, narrow, fmt.Sprintf(`width="%d"`, 9*svgCharWidth+2*svgPadding))
		assert.Contains(t, wide, fmt.Sprintf(`width="%d"`, 9*svgCharWidth+2*svgPadding))
	})
}
