package config

// SheriffBuildVersion is set at build time via
// -ldflags "-X github.com/sheriff-project/sheriff/internal/config.SheriffBuildVersion=..."
var SheriffBuildVersion = "unknown"
