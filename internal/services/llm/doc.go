// Package llm provides an OpenRouter-compatible chat completions client.
//
// The attribution stage uses it to turn a speaker-chunked transcript into a
// speaker map and a synopsis.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Complete: send system/user prompts, receive the text reply.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode JSON from a reply, tolerating code fences and prose.
//
// # Retry Behaviour
//
// HTTP 408/429/5xx responses, network timeouts and empty replies are retried
// through internal/retry with exponential backoff (base 1s, max 10s, 3
// attempts by default). A Retry-After header overrides the backoff.
// Context cancellation aborts retries immediately.
package llm
