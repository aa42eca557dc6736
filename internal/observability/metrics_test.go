package observability

import (
	"testing"
	"time"

	"github.com/danmuck/ransim/internal/testutil/testlog"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("gnb-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordBarrier("confirmed", 4*time.Millisecond)
	RecordAdminCommand("status", true)
}

func TestNgapCountersAccumulate(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(ngapMessages.WithLabelValues("sent", "PathSwitchRequest"))
	RecordNgapSent("PathSwitchRequest")
	RecordNgapSent("PathSwitchRequest")
	after := testutil.ToFloat64(ngapMessages.WithLabelValues("sent", "PathSwitchRequest"))
	if after-before != 2 {
		t.Fatalf("expected 2 increments, got %v", after-before)
	}
}

func TestAmfGaugesFollowContext(t *testing.T) {
	testlog.Start(t)
	SetAmfState(41, 2)
	SetAmfOverloaded(41, true)
	if got := testutil.ToFloat64(amfState.WithLabelValues("41")); got != 2 {
		t.Fatalf("expected state 2, got %v", got)
	}
	if got := testutil.ToFloat64(amfOverloaded.WithLabelValues("41")); got != 1 {
		t.Fatalf("expected overloaded 1, got %v", got)
	}
	ForgetAmf(41)
	if n := testutil.CollectAndCount(amfState, "ransim_ngap_amf_state"); n != 0 {
		t.Fatalf("expected no amf_state series after forget, got %d", n)
	}
}
