// Package threat implements the stateless threat pattern matcher. A payload
// is evaluated against a registry of compiled attack signatures; matching is
// pure over the registry and input.
package threat

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
)

// Scorer converts the set of matched patterns into a risk contribution in
// [0,1]. It is pluggable so the static weights can be replaced by a trained
// detector without touching the matcher or the orchestrator.
type Scorer interface {
	Score(matches []models.ThreatPattern) float64
}

// severityScorer is the default Scorer: a fixed weight per matched pattern's
// severity class, summed and clamped.
type severityScorer struct{}

func (severityScorer) Score(matches []models.ThreatPattern) float64 {
	var score float64
	for _, p := range matches {
		switch p.Severity {
		case constants.SeverityCritical:
			score += 1.0
		case constants.SeverityHigh:
			score += 0.5
		case constants.SeverityMedium:
			score += 0.3
		default:
			score += 0.1
		}
	}
	if score > 1 {
		return 1
	}
	return score
}

// compiledPattern pairs a registered pattern with its compiled expression.
type compiledPattern struct {
	pattern models.ThreatPattern
	re      *regexp.Regexp
}

// Matcher is the threat pattern registry and evaluator.
type Matcher struct {
	mu       sync.RWMutex
	patterns map[string]compiledPattern
	scorer   Scorer
}

// Option customizes a Matcher.
type Option func(*Matcher)

// WithScorer replaces the default severity-weight scorer.
func WithScorer(s Scorer) Option {
	return func(m *Matcher) { m.scorer = s }
}

// NewMatcher creates a matcher preloaded with the built-in attack signatures.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		patterns: make(map[string]compiledPattern),
		scorer:   severityScorer{},
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, p := range builtinPatterns() {
		// Built-ins compile by construction.
		_ = m.Register(p)
	}
	return m
}

// builtinPatterns returns the known attack signatures shipped with the engine.
func builtinPatterns() []models.ThreatPattern {
	return []models.ThreatPattern{
		{
			ID:          "sql-injection",
			Name:        "SQL injection",
			Severity:    constants.SeverityCritical,
			Expression:  `(?i)(\bunion\b.*\bselect\b|\bselect\b.*\bfrom\b.*\bwhere\b|\bdrop\s+table\b|\binsert\s+into\b|'\s*or\s+'?1'?\s*=\s*'?1|--\s|;\s*--)`,
			Description: "SQL keywords and tautologies characteristic of injection attempts",
			Mitigation:  "use parameterized queries and reject the request",
		},
		{
			ID:          "script-injection",
			Name:        "Script injection",
			Severity:    constants.SeverityCritical,
			Expression:  `(?i)(<script[\s>]|javascript:|\bon(?:error|load|click|mouseover)\s*=|<iframe[\s>]|document\.cookie)`,
			Description: "markup and handlers characteristic of cross-site scripting",
			Mitigation:  "encode output and reject the request",
		},
		{
			ID:          "path-traversal",
			Name:        "Path traversal",
			Severity:    constants.SeverityHigh,
			Expression:  `(\.\./|\.\.\\|%2e%2e%2f|%2e%2e/|\.\.%2f)`,
			Description: "parent-directory sequences attempting to escape a base path",
			Mitigation:  "canonicalize paths before use and reject the request",
		},
		{
			ID:          "shell-metacharacters",
			Name:        "Shell metacharacters",
			Severity:    constants.SeverityHigh,
			Expression:  "(;\\s*(?:rm|cat|wget|curl|nc|sh|bash)\\b|\\|\\s*(?:sh|bash)\\b|`[^`]+`|\\$\\((?:[^)]+)\\))",
			Description: "command separators and substitutions characteristic of shell injection",
			Mitigation:  "never pass user input to a shell; reject the request",
		},
	}
}

// Register adds a pattern, replacing any existing pattern with the same id.
func (m *Matcher) Register(pattern models.ThreatPattern) error {
	if pattern.ID == "" {
		return fmt.Errorf("threat pattern id is required")
	}
	re, err := regexp.Compile(pattern.Expression)
	if err != nil {
		return fmt.Errorf("compile threat pattern %q: %w", pattern.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns[pattern.ID] = compiledPattern{pattern: pattern, re: re}
	return nil
}

// Unregister removes a pattern by id, reporting whether it existed.
func (m *Matcher) Unregister(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.patterns[id]; !ok {
		return false
	}
	delete(m.patterns, id)
	return true
}

// Patterns returns the registered patterns, ordered by id.
func (m *Matcher) Patterns() []models.ThreatPattern {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ThreatPattern, 0, len(m.patterns))
	for _, cp := range m.patterns {
		out = append(out, cp.pattern)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Evaluate scores a payload against the registry. A critical-severity match
// forces IsThreat regardless of the aggregate score; otherwise the score must
// cross the threat threshold.
func (m *Matcher) Evaluate(payload string) *models.ThreatVerdict {
	m.mu.RLock()
	defer m.mu.RUnlock()

	verdict := &models.ThreatVerdict{}
	if payload == "" {
		return verdict
	}

	var matches []models.ThreatPattern
	for _, cp := range m.patterns {
		if cp.re.MatchString(payload) {
			matches = append(matches, cp.pattern)
			verdict.MatchedPatterns = append(verdict.MatchedPatterns, cp.pattern.ID)
			if cp.pattern.Severity == constants.SeverityCritical {
				verdict.IsThreat = true
			}
		}
	}
	if len(matches) == 0 {
		return verdict
	}

	sort.Slice(matches, func(i, j int) bool {
		return severityRank(matches[i].Severity) > severityRank(matches[j].Severity)
	})
	sort.Strings(verdict.MatchedPatterns)

	top := matches[0]
	verdict.MatchedPattern = &top
	verdict.RiskScore = m.scorer.Score(matches)
	if verdict.RiskScore >= constants.ThreatScoreThreshold {
		verdict.IsThreat = true
	}
	return verdict
}

func severityRank(s constants.Severity) int {
	switch s {
	case constants.SeverityCritical:
		return 3
	case constants.SeverityHigh:
		return 2
	case constants.SeverityMedium:
		return 1
	default:
		return 0
	}
}
