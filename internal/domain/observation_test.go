package domain

import (
	"math"
	"testing"
	"time"
)

func validReading() Reading {
	temperature := 28.5
	return Reading{DeviceID: "dev-1", DT: 1700000000000, Temperature: &temperature}
}

func TestReadingValidate(t *testing.T) {
	t.Parallel()

	if err := validReading().Validate(); err != nil {
		t.Fatalf("expected valid reading, got error %v", err)
	}

	missingDevice := validReading()
	missingDevice.DeviceID = "  "
	if err := missingDevice.Validate(); err == nil {
		t.Fatalf("expected error for blank device_id, got %+v", missingDevice)
	}

	badTime := validReading()
	badTime.DT = 0
	if err := badTime.Validate(); err == nil {
		t.Fatalf("expected error for dt=0, got %+v", badTime)
	}

	empty := Reading{DeviceID: "dev-1", DT: 1700000000000}
	if err := empty.Validate(); err == nil {
		t.Fatalf("expected error for reading without sensor values, got %+v", empty)
	}

	nan := math.NaN()
	notFinite := Reading{DeviceID: "dev-1", DT: 1700000000000, Humidity: &nan}
	if err := notFinite.Validate(); err == nil {
		t.Fatalf("expected error for NaN humidity, got %+v", notFinite)
	}
}

func TestReadingObservationsFanOutOrder(t *testing.T) {
	t.Parallel()

	temperature := 28.5
	humidity := 61.2
	rain := 0.0
	reading := Reading{
		DeviceID:    "dev-1",
		DT:          1700000000000,
		Rain:        &rain,
		Humidity:    &humidity,
		Temperature: &temperature,
	}

	observations := reading.Observations()
	if len(observations) != 3 {
		t.Fatalf("expected 3 observations, got %d", len(observations))
	}
	wantOrder := []SensorType{SensorTemperature, SensorHumidity, SensorRain}
	for i, want := range wantOrder {
		if observations[i].SensorType != want {
			t.Fatalf("expected %q at position %d, got %+v", want, i, observations)
		}
	}
	wantTime := time.UnixMilli(1700000000000).UTC()
	for _, observation := range observations {
		if observation.DeviceID != "dev-1" || !observation.Timestamp.Equal(wantTime) {
			t.Fatalf("expected shared identity and time, got %+v", observation)
		}
	}
	if observations[2].Value != 0 {
		t.Fatalf("expected explicit zero rain value to survive fan-out, got %+v", observations[2])
	}
}

func TestDecodeReading(t *testing.T) {
	t.Parallel()

	reading, err := DecodeReading([]byte(`{"device_id":"dev-1","dt":1700000000000,"temperature":28.5}`))
	if err != nil {
		t.Fatalf("expected decoded reading, got error %v", err)
	}
	if reading.Temperature == nil || *reading.Temperature != 28.5 {
		t.Fatalf("expected temperature 28.5, got %+v", reading)
	}

	if _, err := DecodeReading([]byte(`{"device_id":"dev-1","dt":1700000000000}`)); err == nil {
		t.Fatal("expected validation error for reading without values")
	}
	if _, err := DecodeReading([]byte(`not json`)); err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}

func TestDecodeReadingsBatch(t *testing.T) {
	t.Parallel()

	readings, err := DecodeReadings([]byte(`[
		{"device_id":"dev-1","dt":1700000000000,"temperature":28.5},
		{"device_id":"dev-2","dt":1700000001000,"humidity":61.2}
	]`))
	if err != nil {
		t.Fatalf("expected decoded batch, got error %v", err)
	}
	if len(readings) != 2 || readings[1].DeviceID != "dev-2" {
		t.Fatalf("expected two readings, got %+v", readings)
	}

	if _, err := DecodeReadings([]byte(`[]`)); err == nil {
		t.Fatal("expected error for empty batch")
	}
	if _, err := DecodeReadings([]byte(`[{"device_id":"","dt":1,"temperature":1}]`)); err == nil {
		t.Fatal("expected per-item validation error")
	}
}

func TestObservationValidate(t *testing.T) {
	t.Parallel()

	observation := Observation{
		DeviceID:   "dev-1",
		SensorType: SensorTemperature,
		Value:      28.5,
		Timestamp:  time.UnixMilli(1700000000000).UTC(),
	}
	if err := observation.Validate(); err != nil {
		t.Fatalf("expected valid observation, got error %v", err)
	}

	observation.SensorType = SensorType("co2")
	if err := observation.Validate(); err == nil {
		t.Fatalf("expected error for unsupported sensor type, got %+v", observation)
	}
}
