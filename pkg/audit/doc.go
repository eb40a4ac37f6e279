// Package audit records what happened to facts, subscribers and dispatch
// cycles, forwarding events to a structured log and optionally to Kafka.
package audit
