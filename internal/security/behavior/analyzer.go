// Package behavior maintains per-principal behavioral baselines and scores
// how unusual recent activity is relative to each baseline. Profiles are
// created lazily on a principal's first event and removed only by explicit
// operation.
package behavior

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
	"github.com/sentra-sec/sentra/pkg/logger"
)

const (
	hourlySpikeWeight   = 0.3
	typeSkewWeight      = 0.2
	highClusterWeight   = 0.4
	hourlySpikeFactor   = 3.0
	typeSkewFactor      = 2.0
	highClusterLookback = 10
	highClusterMin      = 3
)

// entry pairs a profile with its ring-buffered learning window. The window
// lives outside the model so appends never reallocate; profile copies handed
// to callers get the window materialized oldest-first.
type entry struct {
	profile *models.BehavioralProfile
	window  *window
}

// Analyzer maintains the profile table. All public methods are safe for
// concurrent use; per-profile mutation happens under the table lock, keeping
// updates for the same principal linearizable.
type Analyzer struct {
	log logger.Logger
	now func() time.Time

	mu               sync.RWMutex
	profiles         map[string]*entry
	anomalyThreshold float64
	learningRate     float64
	windowCap        int
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithWindowCap overrides the learning-window capacity.
func WithWindowCap(capacity int) Option {
	return func(a *Analyzer) { a.windowCap = capacity }
}

// NewAnalyzer creates an analyzer with the default threshold and learning rate.
func NewAnalyzer(log logger.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		log:              log.WithComponent("behavior"),
		now:              time.Now,
		profiles:         make(map[string]*entry),
		anomalyThreshold: constants.DefaultAnomalyThreshold,
		learningRate:     constants.DefaultLearningRate,
		windowCap:        constants.DefaultLearningWindowCap,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configure updates the anomaly threshold and learning rate. Both must lie in
// (0,1].
func (a *Analyzer) Configure(anomalyThreshold, learningRate float64) error {
	if anomalyThreshold <= 0 || anomalyThreshold > 1 {
		return errors.ErrInvalidConfig(fmt.Sprintf("anomaly threshold %v outside (0,1]", anomalyThreshold))
	}
	if learningRate <= 0 || learningRate > 1 {
		return errors.ErrInvalidConfig(fmt.Sprintf("learning rate %v outside (0,1]", learningRate))
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.anomalyThreshold = anomalyThreshold
	a.learningRate = learningRate
	return nil
}

// UpdateProfile folds an event into the principal's profile, creating the
// profile on first sight. The event's contribution is scored by independent
// signals whose sum is blended into the running risk by exponential smoothing.
func (a *Analyzer) UpdateProfile(principalID string, event *models.SecurityEvent) {
	if principalID == "" || event == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ent, ok := a.profiles[principalID]
	if !ok {
		ent = &entry{
			profile: models.NewBehavioralProfile(principalID),
			window:  newWindow(a.windowCap),
		}
		a.profiles[principalID] = ent
	}
	p := ent.profile

	summary := event.Summarize()
	ts := event.Timestamp.UTC()
	p.Hourly[ts.Hour()]++
	p.Daily[int(ts.Weekday())]++
	p.TypeCounts[event.Type]++
	if summary.Location != "" {
		p.LocationCounts[summary.Location]++
	}
	ent.window.append(summary)
	p.LastActivity = event.Timestamp

	delta, _ := a.score(ent, ts)
	p.RiskScore = clamp(p.RiskScore*(1-a.learningRate) + delta*a.learningRate)
	if p.RiskScore > a.anomalyThreshold {
		p.AnomalyCount++
		a.log.Warn(context.Background(), "principal risk crossed anomaly threshold",
			logger.String("principal_id", principalID),
			logger.Float64("risk_score", p.RiskScore),
			logger.Int64("anomaly_count", p.AnomalyCount))
	}
}

// DetectAnomalies recomputes anomaly confidence from the principal's current
// profile state and reports whether it crosses the threshold, with one
// human-readable detail per triggered check.
func (a *Analyzer) DetectAnomalies(principalID string) (*models.AnomalyReport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ent, ok := a.profiles[principalID]
	if !ok {
		return nil, errors.ErrProfileNotFound(principalID)
	}

	confidence, details := a.score(ent, a.now().UTC())
	ent.profile.Confidence = confidence

	return &models.AnomalyReport{
		PrincipalID: principalID,
		IsAnomaly:   confidence > a.anomalyThreshold,
		Confidence:  confidence,
		Details:     details,
		CheckedAt:   a.now(),
	}, nil
}

// score runs the signal checks against current profile state. Callers hold
// the table lock. The reference time, in UTC, selects which hour bucket
// counts as "current".
func (a *Analyzer) score(ent *entry, at time.Time) (float64, []string) {
	p := ent.profile
	var confidence float64
	var details []string

	total := p.TotalEvents()
	if total > 0 {
		hourlyAvg := float64(total) / 24
		current := float64(p.Hourly[at.Hour()])
		if current > hourlySpikeFactor*hourlyAvg {
			confidence += hourlySpikeWeight
			details = append(details, fmt.Sprintf(
				"current-hour activity %.0f exceeds 3x the hourly average %.2f", current, hourlyAvg))
		}
	}

	if len(p.TypeCounts) > 0 {
		var typeTotal int64
		for _, n := range p.TypeCounts {
			typeTotal += n
		}
		typeAvg := float64(typeTotal) / float64(len(p.TypeCounts))
		for eventType, n := range p.TypeCounts {
			if float64(n) > typeSkewFactor*typeAvg {
				confidence += typeSkewWeight
				details = append(details, fmt.Sprintf(
					"event type %q count %d exceeds 2x the per-type average %.2f", eventType, n, typeAvg))
			}
		}
	}

	var high int
	for _, s := range ent.window.recent(highClusterLookback) {
		if s.Severity == constants.SeverityHigh || s.Severity == constants.SeverityCritical {
			high++
		}
	}
	if high > highClusterMin {
		confidence += highClusterWeight
		details = append(details, fmt.Sprintf(
			"%d high-severity events among the last %d", high, highClusterLookback))
	}

	return clamp(confidence), details
}

// Profile returns a copy of a principal's profile with the learning window
// materialized oldest first.
func (a *Analyzer) Profile(principalID string) (*models.BehavioralProfile, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ent, ok := a.profiles[principalID]
	if !ok {
		return nil, errors.ErrProfileNotFound(principalID)
	}
	return a.export(ent), nil
}

// Profiles returns copies of every profile keyed by principal.
func (a *Analyzer) Profiles() map[string]*models.BehavioralProfile {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]*models.BehavioralProfile, len(a.profiles))
	for id, ent := range a.profiles {
		out[id] = a.export(ent)
	}
	return out
}

func (a *Analyzer) export(ent *entry) *models.BehavioralProfile {
	clone := ent.profile.Clone()
	clone.LearningWindow = ent.window.ordered()
	return clone
}

// RemoveProfile deletes a profile, reporting whether it existed.
func (a *Analyzer) RemoveProfile(principalID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.profiles[principalID]; !ok {
		return false
	}
	delete(a.profiles, principalID)
	return true
}

// Reset clears all profiles.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles = make(map[string]*entry)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
