package models

import (
	"time"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// SecurityMetricsSnapshot is the lossless serialized form of the aggregate
// metrics counters. Restoring a snapshot reproduces identical counts.
type SecurityMetricsSnapshot struct {
	TotalEvents       int64                           `json:"total_events"`
	EventsByType      map[constants.EventType]int64   `json:"events_by_type"`
	EventsBySeverity  map[constants.Severity]int64    `json:"events_by_severity"`
	EventsByHour      [24]int64                       `json:"events_by_hour"`
	EventsByWeekday   [7]int64                        `json:"events_by_weekday"`
	ResponseTimeTotal time.Duration                   `json:"response_time_total"`
	ResponseTimeCount int64                           `json:"response_time_count"`
	History           []*SecurityEvent                `json:"history"`
}

// SecurityStatus is the derived, stateless snapshot of the system's posture.
// It is recomputed on demand and never persisted.
type SecurityStatus struct {
	// Overall is the aggregate posture band.
	Overall constants.OverallStatus `json:"overall"`

	// RiskScore is the severity-weighted aggregate risk in [0,1].
	RiskScore float64 `json:"risk_score"`

	// ActiveThreats counts critical-severity events in the retained history.
	ActiveThreats int `json:"active_threats"`

	// RecentAnomalies counts behavioral events in the retained history.
	RecentAnomalies int `json:"recent_anomalies"`

	// EnclaveHealth is the mean health of registered enclaves in [0,1].
	EnclaveHealth float64 `json:"enclave_health"`

	// Trend is the direction of recent event volume.
	Trend constants.Trend `json:"trend"`

	// Recommendations always holds at least one entry.
	Recommendations []string `json:"recommendations"`

	// GeneratedAt is when this snapshot was derived.
	GeneratedAt time.Time `json:"generated_at"`

	// LastEventAt is the timestamp of the newest retained event.
	LastEventAt time.Time `json:"last_event_at,omitempty"`
}

// SecurityExport is the audit/debug snapshot produced by ExportSecurityData.
type SecurityExport struct {
	ExportedAt time.Time                     `json:"exported_at"`
	Metrics    *SecurityMetricsSnapshot      `json:"metrics"`
	Profiles   map[string]*BehavioralProfile `json:"profiles"`
	Enclaves   []*SecureEnclave              `json:"enclaves"`
	Sessions   []*Session                    `json:"sessions"`
}
