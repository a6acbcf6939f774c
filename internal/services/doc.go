// Package services defines shared utilities consumed by the pipeline stages
// and the external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp podcast slugs, episode numbers, stage names,
//     and run identifiers for logging.
//   - Structured error markers plus the Wrap helper that let the retry
//     executor, the run history, and operator alerts classify failures
//     without string matching.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
