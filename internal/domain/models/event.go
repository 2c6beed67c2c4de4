// Package models defines the domain models for the Sentra security engine.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// SecurityEvent is a single discrete security observation (a login, a data
// access, a network call). It is created by a collaborator or by the engine's
// own error paths, annotated by the orchestrator while flowing through the
// pipeline, and eventually evicted from the bounded metrics history.
type SecurityEvent struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Type classifies the originating subsystem.
	Type constants.EventType `json:"type"`

	// Severity is the severity class; the orchestrator may upgrade it while
	// annotating but never downgrades it.
	Severity constants.Severity `json:"severity"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// PrincipalID identifies the acting principal, when known.
	PrincipalID string `json:"principal_id,omitempty"`

	// DeviceID identifies the originating device, when known.
	DeviceID string `json:"device_id,omitempty"`

	// IPAddress is the source address, when known.
	IPAddress string `json:"ip_address,omitempty"`

	// UserAgent is the client identification string, when known.
	UserAgent string `json:"user_agent,omitempty"`

	// Details carries free-form annotations keyed by check name.
	Details map[string]string `json:"details,omitempty"`

	// RiskScore is the event's aggregate danger level in [0,1].
	RiskScore float64 `json:"risk_score"`

	// Action is the disposition the engine attached to the event.
	Action constants.EventAction `json:"action,omitempty"`
}

// NewSecurityEvent creates an event with a fresh id and the current timestamp.
func NewSecurityEvent(eventType constants.EventType, severity constants.Severity) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
		Details:   make(map[string]string),
		Action:    constants.ActionMonitored,
	}
}

// Escalate raises the event's severity if the new class outranks the current
// one, and records the reason under the given detail key.
func (e *SecurityEvent) Escalate(severity constants.Severity, detailKey, reason string) {
	if severityRank(severity) > severityRank(e.Severity) {
		e.Severity = severity
	}
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[detailKey] = reason
}

// IsHighSeverity reports whether the event is high or critical.
func (e *SecurityEvent) IsHighSeverity() bool {
	return e.Severity == constants.SeverityHigh || e.Severity == constants.SeverityCritical
}

func severityRank(s constants.Severity) int {
	switch s {
	case constants.SeverityLow:
		return 0
	case constants.SeverityMedium:
		return 1
	case constants.SeverityHigh:
		return 2
	case constants.SeverityCritical:
		return 3
	default:
		return 0
	}
}

// EventSummary is the trimmed copy of an event retained in a behavioral
// profile's learning window.
type EventSummary struct {
	ID        string              `json:"id"`
	Type      constants.EventType `json:"type"`
	Severity  constants.Severity  `json:"severity"`
	Timestamp time.Time           `json:"timestamp"`
	Location  string              `json:"location,omitempty"`
	RiskScore float64             `json:"risk_score"`
}

// Summarize produces the learning-window form of the event. Location falls
// back to the source IP when no explicit location detail is present.
func (e *SecurityEvent) Summarize() EventSummary {
	location := e.Details["location"]
	if location == "" {
		location = e.IPAddress
	}
	return EventSummary{
		ID:        e.ID,
		Type:      e.Type,
		Severity:  e.Severity,
		Timestamp: e.Timestamp,
		Location:  location,
		RiskScore: e.RiskScore,
	}
}
