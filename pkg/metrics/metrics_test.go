package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDispatchMetricsExistAndIncrement(t *testing.T) {
	DispatchCycles.WithLabelValues("success").Inc()
	if v := testutil.ToFloat64(DispatchCycles.WithLabelValues("success")); v < 1 {
		t.Fatalf("expected DispatchCycles{success} >= 1, got %v", v)
	}

	DispatchLastCycleTimestamp.Set(42)
	if v := testutil.ToFloat64(DispatchLastCycleTimestamp); v != 42 {
		t.Fatalf("expected DispatchLastCycleTimestamp == 42, got %v", v)
	}

	SchedulerComputeErrors.Inc()
	if v := testutil.ToFloat64(SchedulerComputeErrors); v < 1 {
		t.Fatalf("expected SchedulerComputeErrors >= 1, got %v", v)
	}
}

func TestMailMetricsLabelCardinality(t *testing.T) {
	host := "metrics-test-host"
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("mail metrics panicked with label %q: %v", host, r)
		}
	}()

	MailSendSuccess.WithLabelValues(host).Inc()
	MailSendFailure.WithLabelValues(host).Add(2)
	if v := testutil.ToFloat64(MailSendFailure.WithLabelValues(host)); v != 2 {
		t.Fatalf("expected MailSendFailure == 2, got %v", v)
	}
}

func TestMetricsHandlerExposesCatfactsMetrics(t *testing.T) {
	StoreContention.Inc()

	w := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "catfacts_store_contention_total") {
		t.Fatal("expected catfacts_store_contention_total in exposition")
	}
}
