package preflight

import (
	"path/filepath"
	"strings"

	"speechline/internal/config"
	"speechline/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir))
	if strings.TrimSpace(cfg.Paths.LogDir) != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Ledger.Enabled {
		results = append(results, CheckDirectoryAccess("Ledger directory", filepath.Dir(cfg.Paths.LedgerPath)))
	}
	results = append(results, CheckBinaries(deps.Requirements(cfg))...)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
