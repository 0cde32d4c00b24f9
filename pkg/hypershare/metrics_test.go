package hypershare

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecorder(t *testing.T) {
	rec := metricsRecorder{}

	before := testutil.ToFloat64(responseBytesTotal)
	rec.BytesSent(128)
	if got := testutil.ToFloat64(responseBytesTotal); got != before+128 {
		t.Errorf("Expected response bytes %v, got %v", before+128, got)
	}

	before = testutil.ToFloat64(connectionsTotal)
	rec.ConnectionOpened()
	if got := testutil.ToFloat64(connectionsTotal); got != before+1 {
		t.Errorf("Expected connections %v, got %v", before+1, got)
	}

	rec.SetOpenConnections(3)
	if got := testutil.ToFloat64(openConnections); got != 3 {
		t.Errorf("Expected open connections 3, got %v", got)
	}
	rec.SetOpenConnections(0)

	before = testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "200"))
	rec.RequestServed("GET", 200)
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("GET", "200")); got != before+1 {
		t.Errorf("Expected GET/200 count %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(uploadBytesTotal)
	rec.UploadStored(2, 1024)
	if got := testutil.ToFloat64(uploadBytesTotal); got != before+1024 {
		t.Errorf("Expected upload bytes %v, got %v", before+1024, got)
	}
}
