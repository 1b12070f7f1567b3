package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Observation is one transient (device, sensor, value) measurement.
// Params: device identity, sensor type, measured value, and event time.
// Returns: evaluation unit consumed once by the threshold evaluator.
type Observation struct {
	DeviceID   string     `json:"device_id"`
	SensorType SensorType `json:"sensor_type"`
	Value      float64    `json:"value"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Validate validates one observation against the contract.
// Params: observation fields from ingest fan-out.
// Returns: validation error when the contract is violated.
func (o Observation) Validate() error {
	if strings.TrimSpace(o.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if !o.SensorType.Valid() {
		return fmt.Errorf("unsupported sensor type %q", o.SensorType)
	}
	if o.Timestamp.IsZero() {
		return errors.New("timestamp is required")
	}
	if math.IsInf(o.Value, 0) {
		return errors.New("value must be finite")
	}
	return nil
}

// Reading is one raw device report carrying any subset of sensor fields.
// Params: device identity, unix-ms report time, and optional sensor values.
// Returns: ingest wire payload fanned out into observations.
type Reading struct {
	DeviceID    string   `json:"device_id"`
	DT          int64    `json:"dt"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Light       *float64 `json:"light,omitempty"`
	PM25        *float64 `json:"pm25,omitempty"`
	Rain        *float64 `json:"rain,omitempty"`
}

// ReadingTime converts milliseconds unix timestamp into UTC time.
// Params: reading timestamp in unix milliseconds.
// Returns: converted UTC time.
func (r Reading) ReadingTime() time.Time {
	return time.UnixMilli(r.DT).UTC()
}

// Validate validates one reading against the contract.
// Params: reading fields parsed from transport.
// Returns: validation error when schema is violated.
func (r Reading) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if r.DT <= 0 {
		return errors.New("dt must be >0")
	}
	if r.Temperature == nil && r.Humidity == nil && r.Light == nil && r.PM25 == nil && r.Rain == nil {
		return errors.New("reading must contain at least one sensor value")
	}
	for _, observation := range r.Observations() {
		if math.IsNaN(observation.Value) || math.IsInf(observation.Value, 0) {
			return fmt.Errorf("%s value must be finite", observation.SensorType)
		}
	}
	return nil
}

// Observations fans out reading fields into independent observations.
// Params: none.
// Returns: one observation per sensor value present in the payload.
func (r Reading) Observations() []Observation {
	at := r.ReadingTime()
	values := map[SensorType]*float64{
		SensorTemperature: r.Temperature,
		SensorHumidity:    r.Humidity,
		SensorLight:       r.Light,
		SensorPM25:        r.PM25,
		SensorRain:        r.Rain,
	}

	out := make([]Observation, 0, len(values))
	for _, sensorType := range sensorTypeOrder {
		value := values[sensorType]
		if value == nil {
			continue
		}
		out = append(out, Observation{
			DeviceID:   r.DeviceID,
			SensorType: sensorType,
			Value:      *value,
			Timestamp:  at,
		})
	}
	return out
}

// DecodeReading decodes and validates one reading payload.
// Params: JSON document bytes.
// Returns: validated reading or decode/validation error.
func DecodeReading(raw []byte) (Reading, error) {
	var reading Reading
	if err := json.Unmarshal(raw, &reading); err != nil {
		return Reading{}, fmt.Errorf("decode reading: %w", err)
	}
	if err := reading.Validate(); err != nil {
		return Reading{}, err
	}
	return reading, nil
}

// DecodeReadings decodes and validates one batch of reading payloads.
// Params: JSON array document bytes.
// Returns: validated readings slice or decode/validation error.
func DecodeReadings(raw []byte) ([]Reading, error) {
	var readings []Reading
	if err := json.Unmarshal(raw, &readings); err != nil {
		return nil, fmt.Errorf("decode reading batch: %w", err)
	}
	if len(readings) == 0 {
		return nil, errors.New("reading batch must contain at least one reading")
	}
	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			return nil, fmt.Errorf("reading[%d]: %w", i, err)
		}
	}
	return readings, nil
}
