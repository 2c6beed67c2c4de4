package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-sec/sentra/internal/domain/models"
	"github.com/sentra-sec/sentra/internal/security/metrics"
	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

func newReporter(opts ...metrics.Option) *metrics.Reporter {
	return metrics.NewReporter(logger.NewDefaultLogger(), opts...)
}

func recordedEvent(ts time.Time, typ constants.EventType, sev constants.Severity) *models.SecurityEvent {
	e := models.NewSecurityEvent(typ, sev)
	e.Timestamp = ts
	return e
}

func TestReporter_EmptyStateIsSecure(t *testing.T) {
	r := newReporter()

	status := r.GenerateStatus(1.0)
	assert.Equal(t, constants.StatusSecure, status.Overall)
	assert.Zero(t, status.RiskScore)
	assert.Equal(t, constants.TrendStable, status.Trend)
	assert.NotEmpty(t, status.Recommendations, "at least one recommendation always present")
	assert.True(t, status.LastEventAt.IsZero())
}

func TestReporter_RecordEventUpdatesCounters(t *testing.T) {
	r := newReporter()
	ts := time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)

	r.RecordEvent(recordedEvent(ts, constants.EventTypeAuthentication, constants.SeverityLow))
	r.RecordEvent(recordedEvent(ts, constants.EventTypeAuthentication, constants.SeverityHigh))
	r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))

	snap := r.Snapshot()
	assert.Equal(t, int64(3), snap.TotalEvents)
	assert.Equal(t, int64(2), snap.EventsByType[constants.EventTypeAuthentication])
	assert.Equal(t, int64(1), snap.EventsByType[constants.EventTypeNetwork])
	assert.Equal(t, int64(2), snap.EventsBySeverity[constants.SeverityLow])
	assert.Equal(t, int64(3), snap.EventsByHour[14])
	assert.Equal(t, int64(3), snap.EventsByWeekday[int(ts.Weekday())])
	assert.Len(t, snap.History, 3)
}

func TestReporter_CriticalDominatedStreamIsCritical(t *testing.T) {
	r := newReporter()
	ts := time.Now()

	for i := 0; i < 8; i++ {
		r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityCritical))
	}
	for i := 0; i < 2; i++ {
		r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
	}

	status := r.GenerateStatus(1.0)
	assert.Greater(t, status.RiskScore, constants.StatusRiskCriticalThreshold)
	assert.Equal(t, constants.StatusCritical, status.Overall)
	assert.Equal(t, 8, status.ActiveThreats)
}

func TestReporter_MixedStreamIsWarning(t *testing.T) {
	r := newReporter()
	ts := time.Now()

	for i := 0; i < 8; i++ {
		r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityHigh))
	}
	for i := 0; i < 2; i++ {
		r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
	}

	// 0.6*0.8 + 0.1*0.2 = 0.5: above the warning band, below critical.
	status := r.GenerateStatus(1.0)
	assert.InDelta(t, 0.5, status.RiskScore, 1e-9)
	assert.Equal(t, constants.StatusWarning, status.Overall)
}

func TestReporter_HistoryEvictsOldestBeyondCap(t *testing.T) {
	r := newReporter(metrics.WithHistoryCap(5))
	base := time.Now()

	var ids []string
	for i := 0; i < 8; i++ {
		e := recordedEvent(base.Add(time.Duration(i)*time.Second), constants.EventTypeNetwork, constants.SeverityLow)
		ids = append(ids, e.ID)
		r.RecordEvent(e)
	}

	snap := r.Snapshot()
	assert.Equal(t, int64(8), snap.TotalEvents, "counters are not bounded by the history cap")
	require.Len(t, snap.History, 5)
	for i, e := range snap.History {
		assert.Equal(t, ids[i+3], e.ID)
	}
}

func TestReporter_TrendTracksEventRate(t *testing.T) {
	base := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)

	t.Run("rising volume is declining", func(t *testing.T) {
		r := newReporter()
		ts := base
		for i := 0; i < constants.TrendWindowSize; i++ {
			r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
			ts = ts.Add(time.Minute)
		}
		for i := 0; i < constants.TrendWindowSize; i++ {
			r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
			ts = ts.Add(15 * time.Second)
		}
		assert.Equal(t, constants.TrendDeclining, r.GenerateStatus(1.0).Trend)
	})

	t.Run("falling volume is improving", func(t *testing.T) {
		r := newReporter()
		ts := base
		for i := 0; i < constants.TrendWindowSize; i++ {
			r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
			ts = ts.Add(15 * time.Second)
		}
		for i := 0; i < constants.TrendWindowSize; i++ {
			r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
			ts = ts.Add(time.Minute)
		}
		assert.Equal(t, constants.TrendImproving, r.GenerateStatus(1.0).Trend)
	})

	t.Run("steady volume is stable", func(t *testing.T) {
		r := newReporter()
		ts := base
		for i := 0; i < 2*constants.TrendWindowSize; i++ {
			r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))
			ts = ts.Add(time.Minute)
		}
		assert.Equal(t, constants.TrendStable, r.GenerateStatus(1.0).Trend)
	})

	t.Run("short history is stable", func(t *testing.T) {
		r := newReporter()
		for i := 0; i < 10; i++ {
			r.RecordEvent(recordedEvent(base, constants.EventTypeNetwork, constants.SeverityLow))
		}
		assert.Equal(t, constants.TrendStable, r.GenerateStatus(1.0).Trend)
	})
}

func TestReporter_RecommendationsNameTheFiringRules(t *testing.T) {
	r := newReporter()
	ts := time.Now()

	for i := 0; i < 12; i++ {
		r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityCritical))
	}
	r.RecordResponseTime(3 * time.Second)

	status := r.GenerateStatus(0.5)
	assert.GreaterOrEqual(t, len(status.Recommendations), 3,
		"critical risk, high-severity count, latency and enclave rules all fire: %v", status.Recommendations)
}

func TestReporter_BehavioralEventsCountAsAnomalies(t *testing.T) {
	r := newReporter()
	ts := time.Now()

	r.RecordEvent(recordedEvent(ts, constants.EventTypeBehavioral, constants.SeverityMedium))
	r.RecordEvent(recordedEvent(ts, constants.EventTypeNetwork, constants.SeverityLow))

	status := r.GenerateStatus(1.0)
	assert.Equal(t, 1, status.RecentAnomalies)
}

func TestReporter_SnapshotRestoreRoundTrip(t *testing.T) {
	r := newReporter()
	ts := time.Now()
	r.RecordEvent(recordedEvent(ts, constants.EventTypeAuthentication, constants.SeverityHigh))
	r.RecordEvent(recordedEvent(ts, constants.EventTypeBehavioral, constants.SeverityLow))
	r.RecordResponseTime(20 * time.Millisecond)

	snap := r.Snapshot()

	r.Reset()
	assert.Zero(t, r.Snapshot().TotalEvents)

	r.Restore(snap)
	restored := r.Snapshot()
	assert.Equal(t, snap.TotalEvents, restored.TotalEvents)
	assert.Equal(t, snap.EventsByType, restored.EventsByType)
	assert.Equal(t, snap.EventsBySeverity, restored.EventsBySeverity)
	assert.Equal(t, snap.ResponseTimeTotal, restored.ResponseTimeTotal)
	assert.Equal(t, snap.ResponseTimeCount, restored.ResponseTimeCount)
	require.Len(t, restored.History, len(snap.History))
	for i := range snap.History {
		assert.Equal(t, snap.History[i].ID, restored.History[i].ID)
	}
}

func TestReporter_ConfigureKeepsNewestHistory(t *testing.T) {
	r := newReporter()
	base := time.Now()

	var ids []string
	for i := 0; i < 10; i++ {
		e := recordedEvent(base.Add(time.Duration(i)*time.Second), constants.EventTypeNetwork, constants.SeverityLow)
		ids = append(ids, e.ID)
		r.RecordEvent(e)
	}

	assert.Error(t, r.Configure(0))
	require.NoError(t, r.Configure(4))

	snap := r.Snapshot()
	require.Len(t, snap.History, 4)
	for i, e := range snap.History {
		assert.Equal(t, ids[i+6], e.ID)
	}
}
