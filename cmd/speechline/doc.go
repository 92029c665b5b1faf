// Package main hosts the speechline CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, then hands off to the
// internal packages: detect wires preflight, analysis, the detector pair and
// the pipeline; check renders preflight results; history browses the run
// ledger; config scaffolds and validates the TOML file.
package main
