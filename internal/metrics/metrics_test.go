// ABOUTME: Tests that Record* helpers move the expected instruments
// ABOUTME: Reads values back through prometheus/testutil
package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordMessageSent(t *testing.T) {
	before := testutil.ToFloat64(messagesSent.WithLabelValues(KindOpening))
	RecordMessageSent(KindOpening)
	if got := testutil.ToFloat64(messagesSent.WithLabelValues(KindOpening)); got != before+1 {
		t.Errorf("opening counter = %v, want %v", got, before+1)
	}
}

func TestKillSwitchSetsPaused(t *testing.T) {
	SetPaused(false)
	RecordKillSwitchTrip()
	if got := testutil.ToFloat64(paused); got != 1 {
		t.Errorf("paused = %v, want 1", got)
	}
	SetPaused(false)
	if got := testutil.ToFloat64(paused); got != 0 {
		t.Errorf("paused = %v, want 0", got)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/x", "418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/x", "418")); got != before+1 {
		t.Errorf("request counter = %v, want %v", got, before+1)
	}
}
