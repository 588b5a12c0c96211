package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/sheriff-project/sheriff/internal/alert"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/enforce"
	"github.com/sheriff-project/sheriff/internal/engine"
	"github.com/sheriff-project/sheriff/internal/entity"
	"github.com/sheriff-project/sheriff/internal/generate"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/sheriff-project/sheriff/internal/observability"
	"github.com/sheriff-project/sheriff/internal/plugins"
	"github.com/sheriff-project/sheriff/internal/server"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var colorParameter bool
var noProgressbar bool
var forRealParameter bool
var outputParameter string

func newClientProvider() (github.ClientProvider, error) {
	creds, err := github.LoadAppCredentials()
	if err != nil {
		return nil, fmt.Errorf("failed to load app credentials: %w", err)
	}
	return github.NewClientProvider(creds), nil
}

// githubContentFetcher reads a file from a repository through the
// contents endpoint, used when no local permissions document is found.
func githubContentFetcher(provider github.ClientProvider) entity.ContentFetcher {
	return func(ctx context.Context, org, repo, path, ref string) ([]byte, string, error) {
		client, err := provider.ClientFor(org, true)
		if err != nil {
			return nil, "", err
		}
		body, err := client.CallRestAPI(ctx,
			fmt.Sprintf("/repos/%s/%s/contents/%s", org, repo, path),
			fmt.Sprintf("ref=%s", url.QueryEscape(ref)),
			"GET", nil)
		if err != nil {
			return nil, "", err
		}
		file := struct {
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		}{}
		if err := json.Unmarshal(body, &file); err != nil {
			return nil, "", err
		}
		return []byte(file.Content), file.Encoding, nil
	}
}

// reconcileOrganizations loads the permissions document and reconciles
// every organization it declares.
func reconcileOrganizations(ctx context.Context, provider github.ClientProvider, lc *observability.LogCollection, dryrun bool, feedback observability.RemoteObservability) error {
	permissions, err := entity.LoadPermissionsConfig(ctx, osfs.New("."), githubContentFetcher(provider))
	if err != nil {
		return err
	}

	sink := alert.NewSink()
	enabledPlugins := plugins.Enabled(provider)

	for _, org := range permissions.Organizations {
		client, err := provider.ClientFor(org.Organization, dryrun)
		if err != nil {
			return err
		}
		remote := engine.NewRemoteImpl(client, org.Organization)
		executor := engine.NewGithubExecutor(client, org.Organization)
		reconciler := engine.NewReconciler(remote, executor, sink, enabledPlugins, feedback)
		if err := reconciler.Reconcile(ctx, lc, org, dryrun); err != nil {
			return err
		}
	}
	return nil
}

func reportLogCollection(lc *observability.LogCollection, failureBanner string) {
	if lc.HasErrors() {
		logrus.Errorf("%s", failureBanner)
		for _, err := range lc.Errors {
			logrus.Errorf("- %s", err)
		}
	}
	if lc.HasWarns() {
		logrus.Warnf("Warnings:")
		for _, warn := range lc.Warns {
			logrus.Warnf("- %s", warn)
		}
	}
	for _, info := range lc.Logs {
		logrus.WithFields(info.Fields).Logf(info.LogLevel, info.Format, info.Args...)
	}
}

func main() {
	reconcileCmd := &cobra.Command{
		Use:   "reconcile [--do-it-for-real-this-time]",
		Short: "Compare the permissions document with the live organization and close the gap",
		Long: `Compare the permissions document with the live Github organization(s)
and close the gap. Without --do-it-for-real-this-time the command only
logs the mutations it would execute.`,
		Run: func(cmd *cobra.Command, args []string) {
			if colorParameter {
				logrus.SetFormatter(&logrus.TextFormatter{ForceColors: true})
			}
			dryrun := !forRealParameter
			config.Config.DryRun = dryrun

			provider, err := newClientProvider()
			if err != nil {
				logrus.Fatalf("failed to create the client provider: %s", err)
			}

			ctx := context.WithValue(context.Background(), config.ContextKeyStatistics, &config.SheriffStatistics{})
			var span trace.Span
			if config.Config.OpenTelemetryEnabled {
				tracer := otel.Tracer("sheriff")
				ctx, span = tracer.Start(ctx, "reconcile")
			}

			var feedback observability.RemoteObservability
			if !noProgressbar {
				feedback = &generate.ProgressBarFeedback{}
			}

			lc := observability.NewLogCollection()
			err = reconcileOrganizations(ctx, provider, lc, dryrun, feedback)
			if span != nil {
				span.End()
				config.ShutdownTraceProvider()
			}
			if err != nil {
				logrus.Fatalf("failed to reconcile: %s", err)
			}

			reportLogCollection(lc, "Failed to reconcile:")
			if stats, ok := ctx.Value(config.ContextKeyStatistics).(*config.SheriffStatistics); ok {
				logrus.Infof("github api calls: %d (throttled: %d)", stats.GithubApiCalls, stats.GithubThrottled)
			}
			if lc.HasErrors() {
				os.Exit(1)
			}
		},
	}
	reconcileCmd.Flags().BoolVar(&forRealParameter, "do-it-for-real-this-time", false, "execute the mutations instead of logging them")
	reconcileCmd.Flags().BoolVarP(&colorParameter, "color", "c", false, "force colored output")
	reconcileCmd.Flags().BoolVarP(&noProgressbar, "noprogressbar", "p", false, "do not display a progress bar")

	generateCmd := &cobra.Command{
		Use:   "generate <organization>",
		Short: "Generate a permissions document from the live organization",
		Long: `Read the live Github organization and write the equivalent
permissions document on stdout (or to --output), as a starting point.`,
		Args: cobra.MatchAll(cobra.MinimumNArgs(1), cobra.OnlyValidArgs),
		Run: func(cmd *cobra.Command, args []string) {
			org := args[0]

			provider, err := newClientProvider()
			if err != nil {
				logrus.Fatalf("failed to create the client provider: %s", err)
			}
			client, err := provider.ClientFor(org, true)
			if err != nil {
				logrus.Fatalf("failed to create the client for %s: %s", org, err)
			}

			ctx := context.WithValue(context.Background(), config.ContextKeyStatistics, &config.SheriffStatistics{})
			var span trace.Span
			if config.Config.OpenTelemetryEnabled {
				tracer := otel.Tracer("sheriff")
				ctx, span = tracer.Start(ctx, "generate")
			}

			var feedback observability.RemoteObservability
			if !noProgressbar {
				feedback = &generate.ProgressBarFeedback{}
			}

			generator := generate.NewGenerator(engine.NewRemoteImpl(client, org), org, feedback)
			orgConfig, err := generator.Generate(ctx)
			if span != nil {
				span.End()
				config.ShutdownTraceProvider()
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "\x1b[31mfailed to generate the permissions document\x1b[0m: %s\n", err)
				os.Exit(1)
			}

			out := os.Stdout
			if outputParameter != "" {
				f, err := os.Create(outputParameter)
				if err != nil {
					logrus.Fatalf("failed to create %s: %s", outputParameter, err)
				}
				defer f.Close()
				out = f
			}
			if err := generator.WriteYAML(out, orgConfig); err != nil {
				logrus.Fatalf("failed to write the permissions document: %s", err)
			}
		},
	}
	generateCmd.Flags().StringVarP(&outputParameter, "output", "o", "", "write the document to a file instead of stdout")
	generateCmd.Flags().BoolVarP(&noProgressbar, "noprogressbar", "p", false, "do not display a progress bar")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook enforcement server",
		Long: `Start the application in server mode: receive organization webhooks,
enforce the permissions document on every observed drift, and run the
dry-run harness on pull requests against the permissions repository.
When SHERIFF_RECONCILE_INTERVAL is > 0 the server also reconciles
periodically.`,
		Run: func(cmd *cobra.Command, args []string) {
			// the server enforces for real
			config.Config.DryRun = false

			provider, err := newClientProvider()
			if err != nil {
				logrus.Fatalf("failed to create the client provider: %s", err)
			}

			cache := github.NewClientCache(provider)
			sink := alert.NewSink()
			loadConfig := func(ctx context.Context) (*entity.PermissionsConfig, error) {
				return entity.LoadPermissionsConfig(ctx, osfs.New("."), githubContentFetcher(provider))
			}

			enforcer := enforce.NewEngine(provider, cache, sink, loadConfig)
			harness := server.NewDryRunHarness(provider)
			srv := server.NewServer(enforcer, harness)

			if config.Config.ReconcileInterval > 0 {
				interval := time.Duration(config.Config.ReconcileInterval) * time.Second
				go func() {
					ticker := time.NewTicker(interval)
					defer ticker.Stop()
					for range ticker.C {
						ctx := context.WithValue(context.Background(), config.ContextKeyStatistics, &config.SheriffStatistics{})
						lc := observability.NewLogCollection()
						if err := reconcileOrganizations(ctx, provider, lc, false, nil); err != nil {
							logrus.Errorf("periodic reconcile failed: %s", err)
							continue
						}
						reportLogCollection(lc, "Periodic reconcile errors:")
					}
				}()
			}

			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					logrus.Fatalf("failed to start the server: %s", err)
				}
			}()

			sigc := make(chan os.Signal, 1)
			signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
			<-sigc

			logrus.Info("shutting down")
			if err := srv.Shutdown(); err != nil {
				logrus.Errorf("failed to shut down cleanly: %s", err)
			}
			if config.Config.OpenTelemetryEnabled {
				config.ShutdownTraceProvider()
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Return the version of the sheriff CLI",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(config.SheriffBuildVersion)
		},
	}

	rootCmd := &cobra.Command{
		Use:   "sheriff",
		Short: "A CLI for declarative Github organization permissions",
		Long: `sheriff keeps one or several Github organizations equal to a declared
permissions document: teams, repositories, access levels and rulesets.
It can reconcile on demand, generate the document from a live
organization, or run as a webhook server enforcing the document
continuously.`,
	}

	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
