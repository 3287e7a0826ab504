package config

import "time"

// Default values for configuration.
const (
	// Discord defaults
	DefaultBaseURL     = "https://discord.com/api/v10/"
	DefaultTokenKind   = "auto"
	DefaultHTTPTimeout = 5 * time.Minute

	// Retry defaults
	DefaultRetryMaxAttempts     = 8
	DefaultRetryInitialInterval = 1 * time.Second
	DefaultRetryMaxInterval     = 30 * time.Second

	// Rate limit defaults
	DefaultRateLimitBuffer   = 1 * time.Second
	DefaultRateLimitMaxDelay = 60 * time.Second

	// Export defaults
	DefaultExportParallel     = 1
	DefaultExportOutputDir    = "export"
	DefaultExportTotalTimeout = 0 * time.Second
	DefaultExportProgressStep = 0.1

	// Logging defaults
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	// DefaultConfigFile — файл конфигурации, читаемый из текущего каталога.
	DefaultConfigFile = "config.yml"
)
