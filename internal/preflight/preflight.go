package preflight

import (
	"context"

	"aplose/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the preflight checks for the given config. A nil checker
// skips the database check.
func RunAll(ctx context.Context, cfg *config.Config, checker HealthChecker) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))

	// Static files are usually served by a separate web server; only check
	// the directory when one is configured.
	if cfg.Paths.StaticDir != "" {
		results = append(results, CheckDirectoryAccess("Static directory", cfg.Paths.StaticDir))
	}

	if checker != nil {
		results = append(results, CheckDatabase(ctx, checker))
	}

	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}
