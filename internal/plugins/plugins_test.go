package plugins

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {

	t.Run("happy path: declared plugins are built in order", func(t *testing.T) {
		saved := config.Config.Plugins
		config.Config.Plugins = []string{"slack", "heroku", "unknown", "github"}
		defer func() { config.Config.Plugins = saved }()

		enabled := Enabled(nil)
		names := []string{}
		for _, plugin := range enabled {
			names = append(names, plugin.Name())
		}
		assert.Equal(t, []string{"slack", "heroku", "github"}, names)
	})
}

func TestSlackPlugin(t *testing.T) {
	ctx := context.TODO()

	withSlack := func(t *testing.T) {
		savedToken, savedDomain := config.Config.SlackToken, config.Config.SlackDomain
		config.Config.SlackToken = "xoxb-test"
		config.Config.SlackDomain = "example.com"
		t.Cleanup(func() {
			config.Config.SlackToken, config.Config.SlackDomain = savedToken, savedDomain
		})
	}

	team := &entity.TeamConfig{
		Name:        "core",
		Maintainers: []string{"alice"},
		Members:     []string{"bob"},
		Slack:       &entity.SlackSetting{Enabled: true},
	}

	t.Run("happy path: existing user group gets its roster updated", func(t *testing.T) {
		withSlack(t)
		calls := []string{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			calls = append(calls, r.URL.Path)
			switch r.URL.Path {
			case "/usergroups.list":
				fmt.Fprint(w, `{"ok": true, "usergroups": [{"id": "S1", "handle": "core"}]}`)
			case "/usergroups.users.update":
				assert.Equal(t, "S1", r.Form.Get("usergroup"))
				assert.Equal(t, "alice@example.com,bob@example.com", r.Form.Get("users"))
				fmt.Fprint(w, `{"ok": true}`)
			default:
				t.Errorf("unexpected call %s", r.URL.Path)
			}
		}))
		defer server.Close()

		plugin := NewSlackPlugin(server.Client())
		plugin.apiBase = server.URL
		lc := observability.NewLogCollection()

		plugin.HandleTeam(ctx, lc, false, "myorg", team, nil)

		assert.False(t, lc.HasErrors())
		assert.Equal(t, []string{"/usergroups.list", "/usergroups.users.update"}, calls)
	})

	t.Run("happy path: dry-run stops after the read", func(t *testing.T) {
		withSlack(t)
		calls := []string{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, r.URL.Path)
			fmt.Fprint(w, `{"ok": true, "usergroups": []}`)
		}))
		defer server.Close()

		plugin := NewSlackPlugin(server.Client())
		plugin.apiBase = server.URL
		lc := observability.NewLogCollection()

		plugin.HandleTeam(ctx, lc, true, "myorg", team, nil)

		assert.False(t, lc.HasErrors())
		assert.Equal(t, []string{"/usergroups.list"}, calls)
	})

	t.Run("happy path: teams without a slack setting are skipped", func(t *testing.T) {
		withSlack(t)
		plugin := NewSlackPlugin(http.DefaultClient)
		plugin.apiBase = "http://127.0.0.1:1" // would fail if called
		lc := observability.NewLogCollection()

		plugin.HandleTeam(ctx, lc, false, "myorg", &entity.TeamConfig{Name: "quiet"}, nil)
		assert.False(t, lc.HasErrors())
	})

	t.Run("error path: missing token is a warning, not a crash", func(t *testing.T) {
		saved := config.Config.SlackToken
		config.Config.SlackToken = ""
		defer func() { config.Config.SlackToken = saved }()

		plugin := NewSlackPlugin(http.DefaultClient)
		lc := observability.NewLogCollection()

		plugin.HandleTeam(ctx, lc, false, "myorg", team, nil)
		assert.False(t, lc.HasErrors())
		assert.Len(t, lc.Warns, 1)
	})
}

func TestHerokuPlugin(t *testing.T) {
	ctx := context.TODO()

	withHeroku := func(t *testing.T) {
		savedToken, savedAdmin, savedDomain := config.Config.HerokuToken, config.Config.HerokuMagicAdmin, config.Config.GsuiteDomain
		config.Config.HerokuToken = "heroku-test"
		config.Config.HerokuMagicAdmin = "admin@example.com"
		config.Config.GsuiteDomain = "example.com"
		t.Cleanup(func() {
			config.Config.HerokuToken, config.Config.HerokuMagicAdmin, config.Config.GsuiteDomain = savedToken, savedAdmin, savedDomain
		})
	}

	teams := []*entity.TeamConfig{
		{Name: "core", Maintainers: []string{"alice"}, Members: []string{"bob"}},
		{Name: "other", Maintainers: []string{"mallory"}},
	}
	repo := &entity.RepositoryConfig{
		Name:   "app",
		Teams:  map[string]entity.AccessLevel{"core": entity.AccessWrite},
		Heroku: &entity.HerokuSettings{AppName: "app-prod"},
	}

	t.Run("happy path: roster drift is corrected on the app", func(t *testing.T) {
		withHeroku(t)
		mutations := []string{}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				// bob is missing, mallory should not be here
				fmt.Fprint(w, `[{"user": {"email": "admin@example.com"}}, {"user": {"email": "alice@example.com"}}, {"user": {"email": "mallory@example.com"}}]`)
				return
			}
			mutations = append(mutations, r.Method+" "+r.URL.Path)
			w.WriteHeader(http.StatusCreated)
		}))
		defer server.Close()

		plugin := NewHerokuPlugin(server.Client())
		plugin.apiBase = server.URL
		lc := observability.NewLogCollection()

		plugin.HandleRepo(ctx, lc, false, "myorg", repo, teams, nil)

		assert.False(t, lc.HasErrors())
		assert.Equal(t, []string{
			"POST /apps/app-prod/collaborators",
			"DELETE /apps/app-prod/collaborators/mallory@example.com",
		}, mutations)
	})

	t.Run("happy path: matching roster is a no-op", func(t *testing.T) {
		withHeroku(t)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("unexpected mutation %s %s", r.Method, r.URL.Path)
			}
			fmt.Fprint(w, `[{"user": {"email": "admin@example.com"}}, {"user": {"email": "alice@example.com"}}, {"user": {"email": "bob@example.com"}}]`)
		}))
		defer server.Close()

		plugin := NewHerokuPlugin(server.Client())
		plugin.apiBase = server.URL
		lc := observability.NewLogCollection()

		plugin.HandleRepo(ctx, lc, false, "myorg", repo, teams, nil)
		assert.False(t, lc.HasErrors())
	})

	t.Run("happy path: repos without a heroku block are skipped", func(t *testing.T) {
		withHeroku(t)
		plugin := NewHerokuPlugin(http.DefaultClient)
		plugin.apiBase = "http://127.0.0.1:1"
		lc := observability.NewLogCollection()

		plugin.HandleRepo(ctx, lc, false, "myorg", &entity.RepositoryConfig{Name: "plain"}, teams, nil)
		assert.False(t, lc.HasErrors())
	})
}
