package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"sensoralert/internal/domain"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newThresholdFixture() domain.Threshold {
	limit := 35.0
	return domain.Threshold{
		DeviceID:   "dev-1",
		SensorType: domain.SensorTemperature,
		MaxValue:   &limit,
		Enabled:    true,
	}
}

func newAlertFixture(id string, at time.Time) domain.NotificationAlert {
	value := 40.0
	return domain.NotificationAlert{
		ID:           id,
		DeviceID:     "dev-1",
		SensorType:   domain.SensorTemperature,
		CurrentValue: &value,
		Message:      "Temperature of dev-1 above configured limit! current: 40, limit: 35",
		Severity:     domain.SeverityWarning,
		Timestamp:    at,
	}
}

func TestCreateThresholdGeneratesIdentity(t *testing.T) {
	t.Parallel()

	clk := &stepClock{now: time.UnixMilli(1700000000000).UTC()}
	thresholds := NewMemoryThresholdStore(clk.Now)

	created, err := thresholds.CreateThreshold(context.Background(), newThresholdFixture())
	if err != nil {
		t.Fatalf("expected created threshold, got error %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() || !created.UpdatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected generated id and timestamps, got %+v", created)
	}

	invalid := newThresholdFixture()
	invalid.MaxValue = nil
	if _, err := thresholds.CreateThreshold(context.Background(), invalid); err == nil {
		t.Fatal("expected validation error for threshold without bounds")
	}
}

func TestGetEnabledThresholdLatestWins(t *testing.T) {
	t.Parallel()

	clk := &stepClock{now: time.UnixMilli(1700000000000).UTC()}
	thresholds := NewMemoryThresholdStore(clk.Now)

	first, err := thresholds.CreateThreshold(context.Background(), newThresholdFixture())
	if err != nil {
		t.Fatalf("expected created threshold, got error %v", err)
	}
	second, err := thresholds.CreateThreshold(context.Background(), newThresholdFixture())
	if err != nil {
		t.Fatalf("expected created threshold, got error %v", err)
	}

	got, err := thresholds.GetEnabledThreshold(context.Background(), "dev-1", domain.SensorTemperature)
	if err != nil {
		t.Fatalf("expected enabled threshold, got error %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("expected latest threshold %q to win, got %q", second.ID, got.ID)
	}

	// Updating the older entry makes it the latest.
	enabled := true
	if _, err := thresholds.UpdateThreshold(context.Background(), first.ID, domain.ThresholdUpdate{Enabled: &enabled}); err != nil {
		t.Fatalf("expected updated threshold, got error %v", err)
	}
	got, err = thresholds.GetEnabledThreshold(context.Background(), "dev-1", domain.SensorTemperature)
	if err != nil {
		t.Fatalf("expected enabled threshold, got error %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected freshly updated threshold %q to win, got %q", first.ID, got.ID)
	}
}

func TestGetEnabledThresholdSkipsDisabled(t *testing.T) {
	t.Parallel()

	clk := &stepClock{now: time.UnixMilli(1700000000000).UTC()}
	thresholds := NewMemoryThresholdStore(clk.Now)

	created, err := thresholds.CreateThreshold(context.Background(), newThresholdFixture())
	if err != nil {
		t.Fatalf("expected created threshold, got error %v", err)
	}
	disabled := false
	if _, err := thresholds.UpdateThreshold(context.Background(), created.ID, domain.ThresholdUpdate{Enabled: &disabled}); err != nil {
		t.Fatalf("expected updated threshold, got error %v", err)
	}

	if _, err := thresholds.GetEnabledThreshold(context.Background(), "dev-1", domain.SensorTemperature); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound when only disabled thresholds exist, got %v", err)
	}

	// Disabled entries stay visible on the listing path.
	listed, err := thresholds.ListThresholdsByDevice(context.Background(), "dev-1")
	if err != nil || len(listed) != 1 {
		t.Fatalf("expected disabled threshold in listing, got %d (err %v)", len(listed), err)
	}
	if listed[0].Enabled {
		t.Fatalf("expected disabled threshold, got %+v", listed[0])
	}
}

func TestUpdateThresholdKeepsInvariants(t *testing.T) {
	t.Parallel()

	clk := &stepClock{now: time.UnixMilli(1700000000000).UTC()}
	thresholds := NewMemoryThresholdStore(clk.Now)

	created, err := thresholds.CreateThreshold(context.Background(), newThresholdFixture())
	if err != nil {
		t.Fatalf("expected created threshold, got error %v", err)
	}

	// Patch that would leave the threshold without bounds is rejected.
	if _, err := thresholds.UpdateThreshold(context.Background(), created.ID, domain.ThresholdUpdate{ClearMax: true}); err == nil {
		t.Fatal("expected invariant error for patch clearing the only bound")
	}

	if _, err := thresholds.UpdateThreshold(context.Background(), "missing", domain.ThresholdUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDeleteThreshold(t *testing.T) {
	t.Parallel()

	clk := &stepClock{now: time.UnixMilli(1700000000000).UTC()}
	thresholds := NewMemoryThresholdStore(clk.Now)

	created, err := thresholds.CreateThreshold(context.Background(), newThresholdFixture())
	if err != nil {
		t.Fatalf("expected created threshold, got error %v", err)
	}
	if err := thresholds.DeleteThreshold(context.Background(), created.ID); err != nil {
		t.Fatalf("expected deleted threshold, got error %v", err)
	}
	if err := thresholds.DeleteThreshold(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestAlertStoreAppendAndQuery(t *testing.T) {
	t.Parallel()

	alerts := NewMemoryAlertStore()
	base := time.UnixMilli(1700000000000).UTC()

	for i := 0; i < 3; i++ {
		alert := newAlertFixture(domain.NewAlertID("dev-1", base.Add(time.Duration(i)*time.Minute)), base.Add(time.Duration(i)*time.Minute))
		if err := alerts.Append(context.Background(), alert); err != nil {
			t.Fatalf("expected appended alert %d, got error %v", i, err)
		}
	}

	listed, err := alerts.ListByDevice(context.Background(), "dev-1", 0)
	if err != nil || len(listed) != 3 {
		t.Fatalf("expected 3 alerts, got %d (err %v)", len(listed), err)
	}
	for i := 1; i < len(listed); i++ {
		if listed[i].Timestamp.After(listed[i-1].Timestamp) {
			t.Fatalf("expected newest-first ordering, got %+v", listed)
		}
	}

	capped, err := alerts.ListByDevice(context.Background(), "dev-1", 2)
	if err != nil || len(capped) != 2 {
		t.Fatalf("expected capped listing of 2, got %d (err %v)", len(capped), err)
	}
	if !capped[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("expected cap to keep newest alerts, got %+v", capped)
	}

	duplicate := newAlertFixture(listed[0].ID, base)
	if err := alerts.Append(context.Background(), duplicate); err == nil {
		t.Fatal("expected duplicate id rejection")
	}
}

func TestAlertStoreReadLifecycle(t *testing.T) {
	t.Parallel()

	alerts := NewMemoryAlertStore()
	base := time.UnixMilli(1700000000000).UTC()
	alert := newAlertFixture(domain.NewAlertID("dev-1", base), base)
	if err := alerts.Append(context.Background(), alert); err != nil {
		t.Fatalf("expected appended alert, got error %v", err)
	}

	unread, err := alerts.ListUnread(context.Background())
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected one unread alert, got %d (err %v)", len(unread), err)
	}

	if err := alerts.MarkRead(context.Background(), alert.ID); err != nil {
		t.Fatalf("expected marked alert, got error %v", err)
	}
	if err := alerts.MarkRead(context.Background(), alert.ID); err != nil {
		t.Fatalf("expected idempotent re-mark, got error %v", err)
	}
	if err := alerts.MarkRead(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}

	unread, _ = alerts.ListUnread(context.Background())
	if len(unread) != 0 {
		t.Fatalf("expected no unread alerts after mark, got %d", len(unread))
	}

	if err := alerts.Delete(context.Background(), alert.ID); err != nil {
		t.Fatalf("expected deleted alert, got error %v", err)
	}
	if err := alerts.Delete(context.Background(), alert.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}
