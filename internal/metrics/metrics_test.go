package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeRoute(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain route", "/v1/tools/convert", "/v1/tools/convert"},
		{"param route", "/v1/runs/{run_id}", "/v1/runs/{run_id}"},
		{"mounted wildcard", "/v1/*", "/v1"},
		{"padded", "  /healthz ", "/healthz"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeRoute(tc.input); got != tc.expected {
				t.Errorf("SanitizeRoute(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if httpRequestsTotal == nil || toolCallsTotal == nil || activeWorkers == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(toolCallsTotal.WithLabelValues("get_info", "NotFound"))
	ObserveToolCall("get_info", "NotFound")
	if val := testutil.ToFloat64(toolCallsTotal.WithLabelValues("get_info", "NotFound")); val != before+1 {
		t.Errorf("Expected tool call counter to grow by 1, got %f", val-before)
	}
}

func TestWorkerAndStreamGauges(t *testing.T) {
	Init()
	workers := testutil.ToFloat64(activeWorkers)
	IncActiveWorkers()
	if val := testutil.ToFloat64(activeWorkers); val != workers+1 {
		t.Errorf("Expected active workers %f, got %f", workers+1, val)
	}
	DecActiveWorkers()

	streams := testutil.ToFloat64(progressStreams)
	IncProgressStreams()
	DecProgressStreams()
	if val := testutil.ToFloat64(progressStreams); val != streams {
		t.Errorf("Expected progress streams back at %f, got %f", streams, val)
	}

	dropped := testutil.ToFloat64(notificationsDroppedTotal)
	AddDroppedNotifications(0)
	AddDroppedNotifications(3)
	if val := testutil.ToFloat64(notificationsDroppedTotal); val != dropped+3 {
		t.Errorf("Expected dropped notifications %f, got %f", dropped+3, val)
	}
}

func TestObserveRateLimited(t *testing.T) {
	Init()
	before := testutil.ToFloat64(rateLimitedTotal.WithLabelValues("/v1/tools/convert"))
	ObserveRateLimited("/v1/tools/convert")
	if val := testutil.ToFloat64(rateLimitedTotal.WithLabelValues("/v1/tools/convert")); val != before+1 {
		t.Errorf("Expected rate limited counter to grow by 1, got %f", val-before)
	}
}

// Fuzz test for SanitizeRoute.
func FuzzSanitizeRoute(f *testing.F) {
	testcases := []string{"/v1/runs/{run_id}", "/*", "", "/healthz"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeRoute(orig) == "" {
			t.Errorf("SanitizeRoute(%q) returned an empty label", orig)
		}
	})
}
