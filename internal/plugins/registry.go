package plugins

import (
	"net/http"
	"time"

	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/engine"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/sirupsen/logrus"
)

/*
 * Enabled builds the plugin set declared in SHERIFF_PLUGINS. Plugins
 * are thin collaborators of the reconciler: they are fanned out per
 * team or per repo after the core reconcile and consume the alert
 * sink. An unknown plugin name is logged and skipped.
 */
func Enabled(provider github.ClientProvider) []engine.Plugin {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	enabled := []engine.Plugin{}
	for _, name := range config.Config.Plugins {
		switch name {
		case "slack":
			enabled = append(enabled, NewSlackPlugin(httpClient))
		case "gsuite":
			enabled = append(enabled, NewGsuitePlugin(httpClient))
		case "heroku":
			enabled = append(enabled, NewHerokuPlugin(httpClient))
		case "github":
			enabled = append(enabled, NewGithubPlugin(provider))
		case "":
		default:
			logrus.Warnf("unknown plugin %q, skipping", name)
		}
	}
	return enabled
}
