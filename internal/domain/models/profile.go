package models

import (
	"time"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// BehavioralProfile is the evolving per-principal baseline the behavioral
// analyzer maintains. It is created lazily on the principal's first event and
// only removed by an explicit operation.
type BehavioralProfile struct {
	// PrincipalID identifies the principal this profile describes.
	PrincipalID string `json:"principal_id"`

	// Hourly counts events per hour of day.
	Hourly [24]int64 `json:"hourly"`

	// Daily counts events per weekday (Sunday = 0).
	Daily [7]int64 `json:"daily"`

	// TypeCounts counts events per event type.
	TypeCounts map[constants.EventType]int64 `json:"type_counts"`

	// LocationCounts counts events per observed location.
	LocationCounts map[string]int64 `json:"location_counts"`

	// RiskScore is the exponentially-smoothed running risk in [0,1].
	RiskScore float64 `json:"risk_score"`

	// AnomalyCount is the number of times the smoothed risk crossed the
	// anomaly threshold.
	AnomalyCount int64 `json:"anomaly_count"`

	// Confidence is the most recent anomaly confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// LearningWindow holds the most recent event summaries, oldest first,
	// capped at the configured window size.
	LearningWindow []EventSummary `json:"learning_window"`

	// LastActivity is the timestamp of the most recent event.
	LastActivity time.Time `json:"last_activity"`
}

// NewBehavioralProfile creates an empty profile for a principal.
func NewBehavioralProfile(principalID string) *BehavioralProfile {
	return &BehavioralProfile{
		PrincipalID:    principalID,
		TypeCounts:     make(map[constants.EventType]int64),
		LocationCounts: make(map[string]int64),
	}
}

// TotalEvents returns the number of events folded into the hourly histogram.
func (p *BehavioralProfile) TotalEvents() int64 {
	var total int64
	for _, n := range p.Hourly {
		total += n
	}
	return total
}

// RecentSummaries returns the newest n learning-window entries, oldest first.
func (p *BehavioralProfile) RecentSummaries(n int) []EventSummary {
	if len(p.LearningWindow) <= n {
		return p.LearningWindow
	}
	return p.LearningWindow[len(p.LearningWindow)-n:]
}

// Clone returns a deep copy safe to hand to callers outside the analyzer's lock.
func (p *BehavioralProfile) Clone() *BehavioralProfile {
	clone := *p
	clone.TypeCounts = make(map[constants.EventType]int64, len(p.TypeCounts))
	for k, v := range p.TypeCounts {
		clone.TypeCounts[k] = v
	}
	clone.LocationCounts = make(map[string]int64, len(p.LocationCounts))
	for k, v := range p.LocationCounts {
		clone.LocationCounts[k] = v
	}
	clone.LearningWindow = make([]EventSummary, len(p.LearningWindow))
	copy(clone.LearningWindow, p.LearningWindow)
	return &clone
}

// AnomalyReport is the result of an anomaly detection pass.
type AnomalyReport struct {
	// PrincipalID identifies the examined principal.
	PrincipalID string `json:"principal_id"`

	// IsAnomaly reports whether the summed confidence crossed the threshold.
	IsAnomaly bool `json:"is_anomaly"`

	// Confidence is the summed confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Details holds one human-readable entry per triggered check.
	Details []string `json:"details"`

	// CheckedAt is when the detection pass ran.
	CheckedAt time.Time `json:"checked_at"`
}
