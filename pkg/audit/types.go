// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventFactCreated          EventType = "fact.created"
	EventSubscriberRegistered EventType = "subscriber.registered"
	EventDispatchCompleted    EventType = "dispatch.completed"
	EventDispatchFailed       EventType = "dispatch.failed"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a single audit record.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	// Subject identifies what the event is about, e.g. "fact/42" or
	// "cycle/<uuid>".
	Subject string `json:"subject"`

	// SourceIP is the client address for events caused by an HTTP request.
	SourceIP string `json:"sourceIP,omitempty"`

	Details map[string]any `json:"details,omitempty"`
}

// SeverityForEventType returns the default severity for an event type.
func SeverityForEventType(t EventType) Severity {
	switch t {
	case EventDispatchFailed:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}
