package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSubmissionIncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(Submissions.WithLabelValues(string(ResultSuccess)))
	ObserveSubmission(ResultSuccess)
	after := testutil.ToFloat64(Submissions.WithLabelValues(string(ResultSuccess)))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}
