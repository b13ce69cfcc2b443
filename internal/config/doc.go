// Package config loads, normalizes, and validates dvr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads .env files, and honours environment
// fallbacks such as DVR_API_SECRET. The Config type centralizes every knob the
// daemon and CLI need: storage and state directories, scheduler timing, the
// capture engine, cleanup thresholds, event fan-out, archive credentials, and
// the stream sources used for URL regeneration.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
