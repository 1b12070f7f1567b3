package ingest

import (
	"io"
	"net/http"

	"sensoralert/internal/metrics"
)

// HTTPHandler decodes JSON readings and forwards them to sink.
// Params: sink receives validated readings, max body limits payload size.
// Returns: HTTP handler for ingest endpoint.
type HTTPHandler struct {
	sink        ReadingSink
	maxBodySize int64
}

// NewHTTPHandler creates ingest HTTP handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewHTTPHandler(sink ReadingSink, maxBodySize int64) *HTTPHandler {
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming reading request.
// Params: HTTP request/response writer pair; payload may be one reading or an array.
// Returns: writes status code according to decode/push result.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		metrics.ReadingsTotal.WithLabelValues("http", "rejected").Inc()
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	readings, err := decodeReadingPayload(body)
	if err != nil {
		metrics.ReadingsTotal.WithLabelValues("http", "rejected").Inc()
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	metrics.IngestBatchSize.Observe(float64(len(readings)))

	if err := pushReadings(h.sink, readings); err != nil {
		metrics.ReadingsTotal.WithLabelValues("http", "rejected").Inc()
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	for range readings {
		metrics.ReadingsTotal.WithLabelValues("http", "accepted").Inc()
	}
	writer.WriteHeader(http.StatusAccepted)
}
