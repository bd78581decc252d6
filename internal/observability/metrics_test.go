package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordSubmission("mint_note", "passed", 12*time.Millisecond)
	RecordMaterialization("note")
	RecordStatusRequest("GET", "/health", 200)
}
