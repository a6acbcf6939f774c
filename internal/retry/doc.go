// Package retry provides the explicit retry executor wrapped around every
// external call: a Policy names the attempt budget, the capped exponential
// backoff, and the predicate deciding which errors are worth another attempt.
//
// StatusError is the shared HTTP failure type; it carries the status code and
// any Retry-After hint so the executor can honour server pacing.
package retry
