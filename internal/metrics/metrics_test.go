package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebiao/kebiao/pkg/engine"
	"github.com/kebiao/kebiao/pkg/scheduler/placement"
	"github.com/kebiao/kebiao/pkg/stats"
	"github.com/kebiao/kebiao/pkg/validator"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()

	result := &engine.RunResult{
		Conflicts: []validator.Conflict{
			{Type: validator.ConflictRoomDoubleBooked},
			{Type: validator.ConflictTeacherOverloaded},
		},
		Unplaced: []placement.Unplaced{{SubjectID: "chem", Reason: placement.ReasonNoCompatibleRoom}},
		Metrics:  stats.Metrics{QualityScore: 82.5, SchedulingRate: 90},
		Analysis: &stats.WorkloadMetrics{LoadGini: 0.25},
		Metadata: engine.Metadata{Algorithm: "genetic", Iterations: 40, Duration: 2 * time.Second},
	}
	m.ObserveRun(result)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("genetic", "success")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.iterations.WithLabelValues("genetic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("genetic", string(validator.ConflictRoomDoubleBooked))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.unplacedHours.WithLabelValues("genetic", placement.ReasonNoCompatibleRoom)))
	assert.Equal(t, 82.5, testutil.ToFloat64(m.qualityScore.WithLabelValues("genetic")))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.loadGini.WithLabelValues("genetic")))

	result.Metadata.Cancelled = true
	m.ObserveRun(result)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("genetic", "cancelled")))
}

func TestMetrics_TrackRun(t *testing.T) {
	m := New()
	done := m.TrackRun()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeRuns))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeRuns))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordRequest(http.MethodPost, "/api/v1/timetable/generate", 200, 15*time.Millisecond)
	m.RecordCacheLookup(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "kebiao_http_requests_total")
	assert.Contains(t, body, `kebiao_cache_lookups_total{result="hit"} 1`)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRun(&engine.RunResult{})
	m.RecordRequest("GET", "/", 200, time.Millisecond)
	m.TrackRun()()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
