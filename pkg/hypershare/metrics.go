package hypershare

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hypershare_requests_total",
			Help: "Total number of HTTP requests answered",
		},
		[]string{"method", "status"},
	)

	responseBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hypershare_response_bytes_total",
			Help: "Total response body bytes written",
		},
	)

	connectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hypershare_connections_total",
			Help: "Total connections accepted",
		},
	)

	openConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hypershare_open_connections",
			Help: "Current number of open connections",
		},
	)

	uploadFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hypershare_upload_files_total",
			Help: "Total files stored by multipart uploads",
		},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hypershare_upload_bytes_total",
			Help: "Total bytes written to disk by multipart uploads",
		},
	)
)

// metricsRecorder feeds the loop's counters into the package collectors. It
// runs on the loop thread, so everything here must be cheap.
type metricsRecorder struct{}

func (metricsRecorder) ConnectionOpened() {
	connectionsTotal.Inc()
}

func (metricsRecorder) ConnectionClosed() {}

func (metricsRecorder) SetOpenConnections(n int) {
	openConnections.Set(float64(n))
}

func (metricsRecorder) RequestServed(method string, status int) {
	if method == "" {
		method = "unknown"
	}
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func (metricsRecorder) BytesSent(n int) {
	responseBytesTotal.Add(float64(n))
}

func (metricsRecorder) UploadStored(files int, bytes int64) {
	uploadFilesTotal.Add(float64(files))
	uploadBytesTotal.Add(float64(bytes))
}
