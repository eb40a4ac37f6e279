// Package metrics defines Prometheus metrics for the cat fact mailer, covering
// dispatch cycles, per-recipient mail delivery, store gate contention and the
// write endpoints of the HTTP API.
package metrics
