package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/news/", "200"))
	RecordAPIRequest("GET", "/api/news/", http.StatusOK, 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/news/", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != start+1 {
		t.Fatalf("expected gauge %v, got %v", start+1, got)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != start {
		t.Fatalf("expected gauge back to %v, got %v", start, got)
	}
}

func TestRecordResultsCreatedIgnoresEmpty(t *testing.T) {
	before := testutil.ToFloat64(AnnotationResultsCreated.WithLabelValues(SourceDetector))
	RecordResultsCreated(SourceDetector, 0)
	RecordResultsCreated(SourceDetector, 3)
	after := testutil.ToFloat64(AnnotationResultsCreated.WithLabelValues(SourceDetector))
	if after-before != 3 {
		t.Fatalf("expected +3, got %v", after-before)
	}
}

func TestRecordTaskSubmission(t *testing.T) {
	before := testutil.ToFloat64(TaskSubmissionsTotal.WithLabelValues("Check"))
	RecordTaskSubmission("Check")
	if got := testutil.ToFloat64(TaskSubmissionsTotal.WithLabelValues("Check")); got-before != 1 {
		t.Fatalf("expected +1, got %v", got-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveDBQuery("task_context", time.Now())
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "aplose_db_query_duration_seconds") {
		t.Fatal("expected db histogram in exposition output")
	}
}
