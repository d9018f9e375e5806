package preflight

import (
	"context"

	"meetingmedia/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Cache directory", cfg.Paths.AppDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckEndpoint(ctx, "Media links API", cfg.Remote.PubMediaURL, cfg.Remote.UserAgent),
		CheckEndpoint(ctx, "Mediator API", cfg.Remote.MediatorURL+"/languages/E/web", cfg.Remote.UserAgent),
	}

	if cfg.Congregation.Enabled {
		results = append(results, CheckCongregation(ctx, cfg))
	}

	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
