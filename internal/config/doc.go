// Package config loads, normalizes, and validates michatta configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MICHATTA_API_TOKEN. Derived paths (the viewed-item database and the legacy
// mirror file) default to locations under the data directory so a single
// data_dir setting relocates everything the daemon persists.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
