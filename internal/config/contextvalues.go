package config

type contextKey string

const (
	// ContextKeyStatistics is the key used to store the API call counters in the context.
	ContextKeyStatistics contextKey = "githubStatistics"
)

type SheriffStatistics struct {
	GithubApiCalls  int
	GithubThrottled int
}
