// Package config loads, normalizes, and validates speechline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment fallbacks such as SPEECHLINE_DETECTOR_COMMAND. The Config type
// centralizes every knob the CLI needs so scratch, log, and ledger locations
// and the detector device pair are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
