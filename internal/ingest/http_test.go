package ingest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"sensoralert/internal/domain"
)

type httpTestSink struct {
	pushCalls  int
	batchCalls int
	readings   []domain.Reading
	err        error
}

func (s *httpTestSink) Push(reading domain.Reading) error {
	s.pushCalls++
	if s.err != nil {
		return s.err
	}
	s.readings = append(s.readings, reading)
	return nil
}

func (s *httpTestSink) PushBatch(readings []domain.Reading) error {
	s.batchCalls++
	if s.err != nil {
		return s.err
	}
	s.readings = append(s.readings, readings...)
	return nil
}

func testReadingJSON(deviceID string) string {
	return fmt.Sprintf(`{"device_id":%q,"dt":1700000000000,"temperature":28.5,"humidity":61.2}`, deviceID)
}

func TestHTTPHandlerAcceptsSingleReading(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewHTTPHandler(sink, 1<<20)
	request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(testReadingJSON("h1")))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if sink.batchCalls != 1 || sink.pushCalls != 0 {
		t.Fatalf("unexpected sink calls push=%d batch=%d", sink.pushCalls, sink.batchCalls)
	}
	if len(sink.readings) != 1 || sink.readings[0].DeviceID != "h1" {
		t.Fatalf("unexpected readings %+v", sink.readings)
	}
}

func TestHTTPHandlerAcceptsBatchReadings(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewHTTPHandler(sink, 1<<20)
	body := "[" + testReadingJSON("h1") + "," + testReadingJSON("h2") + "]"
	request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, response.Code)
	}
	if sink.batchCalls != 1 {
		t.Fatalf("expected batch push, got push=%d batch=%d", sink.pushCalls, sink.batchCalls)
	}
	if len(sink.readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(sink.readings))
	}
}

func TestHTTPHandlerRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{name: "empty", body: ""},
		{name: "not_json", body: "nope"},
		{name: "missing_device", body: `{"dt":1700000000000,"temperature":28.5}`},
		{name: "missing_values", body: `{"device_id":"h1","dt":1700000000000}`},
		{name: "empty_batch", body: `[]`},
		{name: "trailing_garbage", body: `{"device_id":"h1","dt":1,"temperature":1} extra`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sink := &httpTestSink{}
			handler := NewHTTPHandler(sink, 1<<20)
			request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(tc.body))
			response := httptest.NewRecorder()

			handler.ServeHTTP(response, request)
			if response.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, response.Code)
			}
			if len(sink.readings) != 0 {
				t.Fatalf("expected no readings, got %+v", sink.readings)
			}
		})
	}
}

func TestHTTPHandlerRejectsNonPost(t *testing.T) {
	t.Parallel()

	handler := NewHTTPHandler(&httpTestSink{}, 1<<20)
	request := httptest.NewRequest(http.MethodGet, "/ingest", nil)
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, response.Code)
	}
}

func TestHTTPHandlerMapsSinkErrorToUnavailable(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{err: errors.New("sink down")}
	handler := NewHTTPHandler(sink, 1<<20)
	request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(testReadingJSON("h1")))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, response.Code)
	}
}

func TestHTTPHandlerEnforcesBodyLimit(t *testing.T) {
	t.Parallel()

	sink := &httpTestSink{}
	handler := NewHTTPHandler(sink, 16)
	request := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(testReadingJSON("h1")))
	response := httptest.NewRecorder()

	handler.ServeHTTP(response, request)
	if response.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, response.Code)
	}
}

func TestDecodeReadingPayloadFansOutObservations(t *testing.T) {
	t.Parallel()

	readings, err := decodeReadingPayload([]byte(testReadingJSON("h1")))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	observations := readings[0].Observations()
	if len(observations) != 2 {
		t.Fatalf("expected 2 observations, got %+v", observations)
	}
	if observations[0].SensorType != domain.SensorTemperature || observations[0].Value != 28.5 {
		t.Fatalf("unexpected first observation %+v", observations[0])
	}
	if observations[1].SensorType != domain.SensorHumidity || observations[1].Value != 61.2 {
		t.Fatalf("unexpected second observation %+v", observations[1])
	}
}
