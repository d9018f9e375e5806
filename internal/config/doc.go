// Package config loads, normalizes, and validates meetingmedia configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEETINGMEDIA_WEBDAV_PASSWORD. The Config type centralizes the language,
// resolution, schedule, and override-store preferences the engine consumes.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical language symbols, and clear validation errors.
package config
