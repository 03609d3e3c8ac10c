package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCountersIncrement(t *testing.T) {
	lbl := "metrics-test-category"

	before := testutil.ToFloat64(RequestsCreated.WithLabelValues(lbl))
	RequestsCreated.WithLabelValues(lbl).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsCreated.WithLabelValues(lbl)))

	Decisions.WithLabelValues(lbl, "approve").Add(2)
	assert.GreaterOrEqual(t, testutil.ToFloat64(Decisions.WithLabelValues(lbl, "approve")), 2.0)

	Transitions.WithLabelValues(lbl, "frozen").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(Transitions.WithLabelValues(lbl, "frozen")), 1.0)
}

func TestSweepCounters(t *testing.T) {
	before := testutil.ToFloat64(SweepsRun)
	SweepsRun.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SweepsRun))

	RequestsFlaggedOverdue.WithLabelValues("metrics-test-sweep").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(RequestsFlaggedOverdue.WithLabelValues("metrics-test-sweep")), 1.0)
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	StaleWrites.WithLabelValues("record_decision").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hr_approvals_stale_writes_total")
}
