// Package config loads, normalizes, and validates whisperer configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as OPENROUTER_API_KEY and
// SMTP_PASSWORD. The Config type centralizes the podcast list and every
// external service setting so the CLI and the pipeline discover them in one
// pass.
package config
