package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("domesticd", "GET", "/health", 200, 12*time.Millisecond)
	SetUnitUp("api", true)
	SetUnitUp("api", false)
	RecordUnitStart("api", "ok")
	RecordUnitStop("api", "error")
	RecordProbe("api", true, 8*time.Millisecond)
	RecordPortEviction("api", 8000)
}
