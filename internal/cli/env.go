package cli

import (
	"os"
	"strings"
)

// Environment variables consulted for flag defaults.
const (
	EnvConfig          = "LLMHOST_CONFIG"
	EnvLogFile         = "LLMHOST_LOG_FILE"
	EnvLogLevel        = "LLMHOST_LOG_LEVEL"
	EnvDryRun          = "LLMHOST_DRY_RUN"
	EnvMetricsTextfile = "LLMHOST_METRICS_TEXTFILE"
)

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	s := strings.ToLower(v)
	return s == "1" || s == "true" || s == "yes"
}
