package domain

import (
	"strings"
	"testing"
	"time"
)

func TestThresholdValidate(t *testing.T) {
	t.Parallel()

	minValue := 10.0
	maxValue := 35.0

	valid := Threshold{DeviceID: "dev-1", SensorType: SensorTemperature, MinValue: &minValue, MaxValue: &maxValue}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid threshold, got error %v", err)
	}

	minOnly := Threshold{DeviceID: "dev-1", SensorType: SensorHumidity, MinValue: &minValue}
	if err := minOnly.Validate(); err != nil {
		t.Fatalf("expected min-only threshold to be valid, got error %v", err)
	}

	noBounds := Threshold{DeviceID: "dev-1", SensorType: SensorTemperature}
	if err := noBounds.Validate(); err == nil {
		t.Fatal("expected error for threshold without bounds")
	}

	inverted := Threshold{DeviceID: "dev-1", SensorType: SensorTemperature, MinValue: &maxValue, MaxValue: &minValue}
	if err := inverted.Validate(); err == nil {
		t.Fatal("expected error for min above max")
	}

	equal := Threshold{DeviceID: "dev-1", SensorType: SensorTemperature, MinValue: &minValue, MaxValue: &minValue}
	if err := equal.Validate(); err == nil {
		t.Fatal("expected error for min equal to max")
	}

	badSensor := Threshold{DeviceID: "dev-1", SensorType: SensorType("co2"), MaxValue: &maxValue}
	if err := badSensor.Validate(); err == nil {
		t.Fatal("expected error for unsupported sensor type")
	}
}

func TestThresholdUpdateApply(t *testing.T) {
	t.Parallel()

	minValue := 10.0
	maxValue := 35.0
	createdAt := time.UnixMilli(1700000000000).UTC()
	current := Threshold{
		ID:         "dev-1_temperature_1700000000000",
		DeviceID:   "dev-1",
		SensorType: SensorTemperature,
		MinValue:   &minValue,
		MaxValue:   &maxValue,
		Enabled:    true,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}

	newMax := 40.0
	disabled := false
	email := true
	now := createdAt.Add(time.Hour)
	next := ThresholdUpdate{
		MaxValue:    &newMax,
		ClearMin:    true,
		Enabled:     &disabled,
		NotifyEmail: &email,
	}.Apply(current, now)

	if next.ID != current.ID || !next.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected immutable id and created_at, got %+v", next)
	}
	if next.MinValue != nil {
		t.Fatalf("expected cleared min bound, got %+v", next.MinValue)
	}
	if next.MaxValue == nil || *next.MaxValue != 40 {
		t.Fatalf("expected max bound 40, got %+v", next.MaxValue)
	}
	if next.Enabled || !next.NotifyEmail {
		t.Fatalf("expected disabled threshold with email opt-in, got %+v", next)
	}
	if !next.UpdatedAt.Equal(now) {
		t.Fatalf("expected refreshed updated_at, got %v", next.UpdatedAt)
	}

	// Untouched fields survive an empty patch.
	same := ThresholdUpdate{}.Apply(current, now)
	if same.MinValue == nil || *same.MinValue != 10 || !same.Enabled {
		t.Fatalf("expected untouched fields to survive, got %+v", same)
	}
}

func TestNewAlertIDShape(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000).UTC()
	id := NewAlertID("dev-1", now)
	if !strings.HasPrefix(id, "alert_dev-1_1700000000000_") {
		t.Fatalf("expected alert id prefix, got %q", id)
	}
	if other := NewAlertID("dev-1", now); other == id {
		t.Fatalf("expected unique suffixes, got %q twice", id)
	}
}

func TestSeverityRankOrdering(t *testing.T) {
	t.Parallel()

	ordered := []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Fatalf("expected %q to rank above %q", ordered[i], ordered[i-1])
		}
	}
}
