package config

// Config is the whole configuration of the app
var Config = struct {

	// LogrusLevel sets the logrus logging level
	LogrusLevel string `env:"SHERIFF_LOGRUS_LEVEL" envDefault:"info"`
	// LogrusFormat sets the logrus logging formatter
	// Possible values: text, json
	LogrusFormat string `env:"SHERIFF_LOGRUS_FORMAT" envDefault:"text"`

	GithubServer   string `env:"SHERIFF_GITHUB_SERVER" envDefault:"https://api.github.com"`
	GithubAppCreds string `env:"SHERIFF_GITHUB_APP_CREDS" envDefault:""`

	// Where the permissions document lives on GitHub, used when no
	// local copy is found
	PermissionsFileOrg       string `env:"PERMISSIONS_FILE_ORG" envDefault:""`
	PermissionsFileRepo      string `env:"PERMISSIONS_FILE_REPO" envDefault:".permissions"`
	PermissionsFilePath      string `env:"PERMISSIONS_FILE_PATH" envDefault:"config.yaml"`
	PermissionsFileRef       string `env:"PERMISSIONS_FILE_REF" envDefault:"main"`
	PermissionsFileLocalPath string `env:"PERMISSIONS_FILE_LOCAL_PATH" envDefault:""`

	WebhookSecret string `env:"GITHUB_WEBHOOK_SECRET" envDefault:"development"`
	Port          int    `env:"PORT" envDefault:"8080"`
	HostURL       string `env:"SHERIFF_HOST_URL" envDefault:""`

	SelfLogin       string `env:"SHERIFF_SELF_LOGIN" envDefault:""`
	ImportantBranch string `env:"SHERIFF_IMPORTANT_BRANCH" envDefault:""`

	TrustedReleasers        []string `env:"SHERIFF_TRUSTED_RELEASERS" envSeparator:","`
	TrustedReleaserPolicies string   `env:"SHERIFF_TRUSTED_RELEASER_POLICIES" envDefault:""`

	GistToken string `env:"SHERIFF_GIST_TOKEN" envDefault:""`

	// Plugins is the list of enabled plugins, each in
	// {gsuite, slack, heroku, github}
	Plugins []string `env:"SHERIFF_PLUGINS" envSeparator:","`

	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL" envDefault:""`
	SlackToken      string `env:"SLACK_TOKEN" envDefault:""`
	SlackDomain     string `env:"SHERIFF_SLACK_DOMAIN" envDefault:""`

	GsuiteCredentials string `env:"GSUITE_CREDENTIALS" envDefault:""`
	GsuiteToken       string `env:"GSUITE_TOKEN" envDefault:""`
	GsuiteDomain      string `env:"SHERIFF_GSUITE_DOMAIN" envDefault:""`

	HerokuToken      string `env:"HEROKU_TOKEN" envDefault:""`
	HerokuMagicAdmin string `env:"HEROKU_MAGIC_ADMIN" envDefault:""`

	NpmTrustedPublisherClientID string `env:"NPM_TRUSTED_PUBLISHER_GITHUB_APP_CLIENT_ID" envDefault:""`

	// AutoTunnelNgrok is only acknowledged: the tunnel itself is managed
	// by the process supervisor, not by this binary
	AutoTunnelNgrok string `env:"AUTO_TUNNEL_NGROK" envDefault:""`

	// ReconcileInterval - when > 0 the serve command also reconciles
	// periodically (seconds)
	ReconcileInterval int `env:"SHERIFF_RECONCILE_INTERVAL" envDefault:"0"`

	// OpenTelemetryEnabled - enable OpenTelemetry traces export
	OpenTelemetryEnabled      bool   `env:"SHERIFF_OPENTELEMETRY_ENABLED" envDefault:"false"`
	OpenTelemetryGrpcEndpoint string `env:"SHERIFF_OPENTELEMETRY_GRPC_ENDPOINT" envDefault:"localhost:4317"`
	OpenTelemetryTraceAll     bool   `env:"SHERIFF_OPENTELEMETRY_TRACE_ALL" envDefault:"false"`

	MiddlewareGzipEnabled          bool     `env:"SHERIFF_MIDDLEWARE_GZIP_ENABLED" envDefault:"true"`
	MiddlewareVerboseLoggerEnabled bool     `env:"SHERIFF_MIDDLEWARE_VERBOSE_LOGGER_ENABLED" envDefault:"false"`
	CORSEnabled                    bool     `env:"SHERIFF_CORS_ENABLED" envDefault:"false"`
	CORSAllowedOrigins             []string `env:"SHERIFF_CORS_ALLOWED_ORIGINS" envSeparator:","`
	CORSAllowedMethods             []string `env:"SHERIFF_CORS_ALLOWED_METHODS" envSeparator:","`
	CORSAllowedHeaders             []string `env:"SHERIFF_CORS_ALLOWED_HEADERS" envSeparator:","`

	// DryRun is not read from the environment: it defaults to true and is
	// switched off only by the reconcile CLI literal argument
	// --do-it-for-real-this-time. Every client handed out while DryRun is
	// set is narrowed to read-only.
	DryRun bool `env:"-"`
}{DryRun: true}
