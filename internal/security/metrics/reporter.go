// Package metrics accumulates processed security events and derives the
// aggregate posture status on demand. All state is in-memory; the snapshot
// form round-trips losslessly for export and restore.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/errors"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// history is a fixed-capacity ring of retained events, oldest evicted first.
type history struct {
	buf  []*models.SecurityEvent
	head int
	size int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]*models.SecurityEvent, capacity)}
}

func (h *history) append(e *models.SecurityEvent) {
	if h.size < len(h.buf) {
		h.buf[(h.head+h.size)%len(h.buf)] = e
		h.size++
		return
	}
	h.buf[h.head] = e
	h.head = (h.head + 1) % len(h.buf)
}

func (h *history) ordered() []*models.SecurityEvent {
	out := make([]*models.SecurityEvent, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.head+i)%len(h.buf)]
	}
	return out
}

// Reporter is the metrics accumulator. Mutation happens under one lock;
// GenerateStatus reads a consistent view and never mutates.
type Reporter struct {
	log logger.Logger
	now func() time.Time

	mu                sync.RWMutex
	totalEvents       int64
	eventsByType      map[constants.EventType]int64
	eventsBySeverity  map[constants.Severity]int64
	eventsByHour      [24]int64
	eventsByWeekday   [7]int64
	responseTimeTotal time.Duration
	responseTimeCount int64
	history           *history
	historyCap        int
}

// Option customizes a Reporter.
type Option func(*Reporter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// WithHistoryCap overrides the retained-history capacity.
func WithHistoryCap(capacity int) Option {
	return func(r *Reporter) { r.historyCap = capacity }
}

// NewReporter creates a reporter with the default history capacity.
func NewReporter(log logger.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		log:        log.WithComponent("metrics"),
		now:        time.Now,
		historyCap: constants.DefaultMetricsHistoryCap,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetLocked()
	return r
}

// Configure resizes the retained history, keeping the newest events that fit.
func (r *Reporter) Configure(historyCap int) error {
	if historyCap <= 0 {
		return errors.ErrInvalidConfig(fmt.Sprintf("metrics history cap must be positive: %d", historyCap))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	retained := r.history.ordered()
	if len(retained) > historyCap {
		retained = retained[len(retained)-historyCap:]
	}
	r.historyCap = historyCap
	r.history = newHistory(historyCap)
	for _, e := range retained {
		r.history.append(e)
	}
	return nil
}

// RecordEvent folds an event into the counters and retained history.
func (r *Reporter) RecordEvent(event *models.SecurityEvent) {
	if event == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.totalEvents++
	r.eventsByType[event.Type]++
	r.eventsBySeverity[event.Severity]++
	r.eventsByHour[event.Timestamp.Hour()]++
	r.eventsByWeekday[int(event.Timestamp.Weekday())]++
	r.history.append(event)
}

// RecordResponseTime accumulates one processing-latency sample.
func (r *Reporter) RecordResponseTime(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responseTimeTotal += d
	r.responseTimeCount++
}

// GenerateStatus derives the current posture. The risk score is the
// severity-weighted sum of class proportions; the trend compares the two most
// recent fixed-size history windows.
func (r *Reporter) GenerateStatus(enclaveHealth float64) *models.SecurityStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	risk := r.riskScoreLocked()
	trend := r.trendLocked()
	retained := r.history.ordered()

	var activeThreats, recentAnomalies int
	var lastEventAt time.Time
	for _, e := range retained {
		if e.Severity == constants.SeverityCritical {
			activeThreats++
		}
		if e.Type == constants.EventTypeBehavioral {
			recentAnomalies++
		}
		if e.Timestamp.After(lastEventAt) {
			lastEventAt = e.Timestamp
		}
	}

	overall := constants.StatusSecure
	switch {
	case risk > constants.StatusRiskCriticalThreshold:
		overall = constants.StatusCritical
	case risk > constants.StatusRiskWarningThreshold:
		overall = constants.StatusWarning
	}

	return &models.SecurityStatus{
		Overall:         overall,
		RiskScore:       risk,
		ActiveThreats:   activeThreats,
		RecentAnomalies: recentAnomalies,
		EnclaveHealth:   enclaveHealth,
		Trend:           trend,
		Recommendations: r.recommendationsLocked(risk, trend, enclaveHealth),
		GeneratedAt:     r.now(),
		LastEventAt:     lastEventAt,
	}
}

func (r *Reporter) riskScoreLocked() float64 {
	if r.totalEvents == 0 {
		return 0
	}
	total := float64(r.totalEvents)
	risk := constants.SeverityWeightCritical*float64(r.eventsBySeverity[constants.SeverityCritical])/total +
		constants.SeverityWeightHigh*float64(r.eventsBySeverity[constants.SeverityHigh])/total +
		constants.SeverityWeightMedium*float64(r.eventsBySeverity[constants.SeverityMedium])/total +
		constants.SeverityWeightLow*float64(r.eventsBySeverity[constants.SeverityLow])/total
	if risk > 1 {
		risk = 1
	}
	return risk
}

// trendLocked compares event counts in the newest window against the
// preceding one. With less than two full windows of history the trend is
// stable by definition.
func (r *Reporter) trendLocked() constants.Trend {
	retained := r.history.ordered()
	if len(retained) < 2*constants.TrendWindowSize {
		return constants.TrendStable
	}

	recent := retained[len(retained)-constants.TrendWindowSize:]
	previous := retained[len(retained)-2*constants.TrendWindowSize : len(retained)-constants.TrendWindowSize]

	// Windows are equal-sized, so compare the event rate via the span each
	// window covers: a shrinking span means rising volume.
	recentSpan := recent[len(recent)-1].Timestamp.Sub(recent[0].Timestamp)
	previousSpan := previous[len(previous)-1].Timestamp.Sub(previous[0].Timestamp)
	if previousSpan <= 0 || recentSpan <= 0 {
		return constants.TrendStable
	}

	ratio := float64(previousSpan) / float64(recentSpan)
	switch {
	case ratio > 1+constants.TrendChangeRatio:
		return constants.TrendDeclining
	case ratio < 1-constants.TrendChangeRatio:
		return constants.TrendImproving
	}
	return constants.TrendStable
}

func (r *Reporter) recommendationsLocked(risk float64, trend constants.Trend, enclaveHealth float64) []string {
	var recs []string

	if risk > constants.StatusRiskCriticalThreshold {
		recs = append(recs, "risk score is critical: review recent high-severity events and consider restricting access")
	} else if risk > constants.StatusRiskWarningThreshold {
		recs = append(recs, "risk score is elevated: increase monitoring cadence")
	}
	if trend == constants.TrendDeclining {
		recs = append(recs, "event volume is rising: investigate the source of increased activity")
	}
	if n := r.eventsBySeverity[constants.SeverityHigh] + r.eventsBySeverity[constants.SeverityCritical]; n > 10 {
		recs = append(recs, fmt.Sprintf("%d high-severity events recorded: audit affected principals", n))
	}
	if r.responseTimeCount > 0 {
		avg := r.responseTimeTotal / time.Duration(r.responseTimeCount)
		if avg > time.Second {
			recs = append(recs, fmt.Sprintf("average processing latency %v exceeds 1s: check downstream load", avg))
		}
	}
	if enclaveHealth < constants.EnclaveHealthFloor {
		recs = append(recs, "enclave health is degraded: re-run hardware attestation")
	}

	if len(recs) == 0 {
		recs = append(recs, "security posture is healthy: no action required")
	}
	return recs
}

// Snapshot returns a lossless copy of counters and history, oldest first.
func (r *Reporter) Snapshot() *models.SecurityMetricsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &models.SecurityMetricsSnapshot{
		TotalEvents:       r.totalEvents,
		EventsByType:      make(map[constants.EventType]int64, len(r.eventsByType)),
		EventsBySeverity:  make(map[constants.Severity]int64, len(r.eventsBySeverity)),
		EventsByHour:      r.eventsByHour,
		EventsByWeekday:   r.eventsByWeekday,
		ResponseTimeTotal: r.responseTimeTotal,
		ResponseTimeCount: r.responseTimeCount,
		History:           r.history.ordered(),
	}
	for k, v := range r.eventsByType {
		snap.EventsByType[k] = v
	}
	for k, v := range r.eventsBySeverity {
		snap.EventsBySeverity[k] = v
	}
	return snap
}

// Restore replaces accumulated state with a snapshot.
func (r *Reporter) Restore(snapshot *models.SecurityMetricsSnapshot) {
	if snapshot == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.resetLocked()
	r.totalEvents = snapshot.TotalEvents
	for k, v := range snapshot.EventsByType {
		r.eventsByType[k] = v
	}
	for k, v := range snapshot.EventsBySeverity {
		r.eventsBySeverity[k] = v
	}
	r.eventsByHour = snapshot.EventsByHour
	r.eventsByWeekday = snapshot.EventsByWeekday
	r.responseTimeTotal = snapshot.ResponseTimeTotal
	r.responseTimeCount = snapshot.ResponseTimeCount
	for _, e := range snapshot.History {
		r.history.append(e)
	}
}

// Reset clears all accumulated state.
func (r *Reporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

func (r *Reporter) resetLocked() {
	r.totalEvents = 0
	r.eventsByType = make(map[constants.EventType]int64)
	r.eventsBySeverity = make(map[constants.Severity]int64)
	r.eventsByHour = [24]int64{}
	r.eventsByWeekday = [7]int64{}
	r.responseTimeTotal = 0
	r.responseTimeCount = 0
	r.history = newHistory(r.historyCap)
}
