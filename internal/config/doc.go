// Package config loads, normalizes, and validates aplose configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// APLOSE_BIND and APLOSE_STATIC_URL. The Config type centralizes every knob
// the server and CLI need so the database location, static URL prefix, and
// HTTP timeouts are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
