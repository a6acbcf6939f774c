// Package notifications tells subscribers about new episodes and the
// operator about failed runs.
//
// Subscriber mail goes out over SMTP. Operator alerts go to the admin
// address and, when a topic is configured, to ntfy. NewService returns a
// no-op implementation when neither transport is configured so callers never
// need nil checks.
package notifications
