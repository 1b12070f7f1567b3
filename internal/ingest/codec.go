package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"sensoralert/internal/domain"
)

// ReadingSink receives decoded readings from ingest interfaces.
// Params: decoded reading payload.
// Returns: processing error.
type ReadingSink interface {
	Push(reading domain.Reading) error
}

// batchReadingSink is an optional sink extension for batch pushes.
// Params: decoded reading batch.
// Returns: processing error for the whole batch.
type batchReadingSink interface {
	PushBatch(readings []domain.Reading) error
}

// decodeReadingPayload auto-detects batch vs single payload.
// Params: raw JSON bytes with one object or array.
// Returns: validated readings slice.
func decodeReadingPayload(raw []byte) ([]domain.Reading, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		return nil, errors.New("empty payload")
	}
	if payload[0] == '[' {
		readings, err := domain.DecodeReadings(payload)
		if err != nil {
			return nil, err
		}
		if len(readings) == 0 {
			return nil, errors.New("reading batch must contain at least one reading")
		}
		return readings, nil
	}
	reading, err := domain.DecodeReading(payload)
	if err != nil {
		return nil, err
	}
	return []domain.Reading{reading}, nil
}

// pushReadings sends readings to sink with optional batch support.
// Params: reading sink and reading slice.
// Returns: first push error or nil.
func pushReadings(sink ReadingSink, readings []domain.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	if batchSink, ok := sink.(batchReadingSink); ok {
		if err := batchSink.PushBatch(readings); err != nil {
			return fmt.Errorf("push reading batch: %w", err)
		}
		return nil
	}
	for _, reading := range readings {
		if err := sink.Push(reading); err != nil {
			return err
		}
	}
	return nil
}
