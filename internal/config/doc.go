// Package config loads, normalizes, and validates Scriptorium configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as SCRIPTORIUM_NATS_URL. Scheduler cadences and
// import delays are written in the timespan grammar ("30s", "5m", "1d") and
// are validated here so the daemon never starts with an unparseable interval.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
