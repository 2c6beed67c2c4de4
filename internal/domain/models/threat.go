package models

import "github.com/sentra-sec/sentra/pkg/constants"

// ThreatPattern is one registered attack signature. Patterns are configured
// at construction or via explicit registration, never created by event flow.
type ThreatPattern struct {
	// ID is the unique registry identifier.
	ID string `json:"id"`

	// Name is a short human-readable label.
	Name string `json:"name"`

	// Severity is the class assigned to payloads matching this pattern.
	Severity constants.Severity `json:"severity"`

	// Expression is the regular expression the detector compiles.
	Expression string `json:"expression"`

	// Description explains what the pattern detects.
	Description string `json:"description"`

	// Mitigation is the recommended response to a match.
	Mitigation string `json:"mitigation"`
}

// ThreatVerdict is the result of evaluating a payload against the registry.
type ThreatVerdict struct {
	// IsThreat reports whether the payload crossed the threat threshold or
	// matched any critical pattern.
	IsThreat bool `json:"is_threat"`

	// RiskScore is the aggregate contribution in [0,1].
	RiskScore float64 `json:"risk_score"`

	// MatchedPatterns lists the ids of every pattern that matched.
	MatchedPatterns []string `json:"matched_patterns,omitempty"`

	// MatchedPattern is the highest-severity match, when any.
	MatchedPattern *ThreatPattern `json:"matched_pattern,omitempty"`
}
