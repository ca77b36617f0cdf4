// Package config loads, normalizes, and validates seasonbot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, then applies a .env file and SEASONBOT_*
// environment overrides. The Config type centralizes every knob the bot and
// CLI need, so storage backends, session expiry and delivery pacing are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
