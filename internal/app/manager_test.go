package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"sensoralert/internal/clock"
	"sensoralert/internal/config"
	"sensoralert/internal/domain"
	"sensoralert/internal/faults"
	"sensoralert/internal/notify"
	"sensoralert/internal/store"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type flakyAlertStore struct {
	*store.MemoryAlertStore
	failures int
	attempts int
}

func (s *flakyAlertStore) Append(ctx context.Context, alert domain.NotificationAlert) error {
	s.attempts++
	if s.attempts <= s.failures {
		return errors.New("kv put timeout")
	}
	return s.MemoryAlertStore.Append(ctx, alert)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManagerConfig() config.Config {
	var cfg config.Config
	cfg.Service.Mode = config.ServiceModeSingle
	cfg.Service.EvaluateTimeoutSec = 5
	cfg.Service.PersistTimeoutSec = 5
	cfg.Service.PersistRetry = config.RetryConfig{
		Enabled:     true,
		Backoff:     "exponential",
		InitialMS:   1,
		MaxMS:       5,
		MaxAttempts: 3,
	}
	cfg.Notify.Browser.Enabled = true
	cfg.Notify.Browser.Buffer = 16
	return cfg
}

func newTestManager(t *testing.T, alerts store.AlertStore) (*Manager, *store.MemoryThresholdStore) {
	t.Helper()
	clk := fixedClock{now: time.UnixMilli(1700000000000).UTC()}
	thresholds := store.NewMemoryThresholdStore(clk.Now)
	if alerts == nil {
		alerts = store.NewMemoryAlertStore()
	}
	logger := discardLogger()
	cfg := testManagerConfig()
	dispatcher := notify.NewDispatcher(cfg.Notify, logger)
	return NewManager(cfg, logger, thresholds, alerts, dispatcher, clk), thresholds
}

func seedThreshold(t *testing.T, thresholds *store.MemoryThresholdStore, threshold domain.Threshold) domain.Threshold {
	t.Helper()
	created, err := thresholds.CreateThreshold(context.Background(), threshold)
	if err != nil {
		t.Fatalf("expected seeded threshold, got error %v", err)
	}
	return created
}

func maxThreshold(limit float64) domain.Threshold {
	return domain.Threshold{
		DeviceID:      "dev-1",
		SensorType:    domain.SensorTemperature,
		MaxValue:      &limit,
		Enabled:       true,
		NotifyBrowser: true,
	}
}

func observation(value float64) domain.Observation {
	return domain.Observation{
		DeviceID:   "dev-1",
		SensorType: domain.SensorTemperature,
		Value:      value,
		Timestamp:  time.UnixMilli(1700000000000).UTC(),
	}
}

func TestProcessObservationPersistsAndNotifies(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	seedThreshold(t, thresholds, maxThreshold(35))

	decision, result, err := manager.ProcessObservationResult(context.Background(), observation(40))
	if err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	if !decision.Violated || decision.Bound != domain.BoundMax {
		t.Fatalf("expected max violation, got %+v", decision)
	}
	if decision.Severity != domain.SeverityWarning {
		t.Fatalf("expected warning severity for ~14%% deviation, got %q", decision.Severity)
	}
	if result == nil || len(result.NotifyFailures) != 0 {
		t.Fatalf("expected clean dispatch audit, got %+v", result)
	}

	alerts, err := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("expected one persisted alert, got %d (err %v)", len(alerts), err)
	}
	alert := alerts[0]
	if alert.CurrentValue == nil || *alert.CurrentValue != 40 {
		t.Fatalf("expected current value 40, got %+v", alert.CurrentValue)
	}
	if alert.ThresholdValue == nil || *alert.ThresholdValue != 35 {
		t.Fatalf("expected threshold value 35, got %+v", alert.ThresholdValue)
	}
	if alert.Message == "" || alert.Read {
		t.Fatalf("expected unread alert with message, got %+v", alert)
	}

	feed := manager.BrowserFeed(0)
	if len(feed) != 1 || feed[0].ID != alert.ID {
		t.Fatalf("expected persisted alert in browser feed, got %+v", feed)
	}
}

func TestProcessObservationCriticalTier(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	seedThreshold(t, thresholds, maxThreshold(35))

	decision, err := manager.ProcessObservation(context.Background(), observation(53))
	if err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	if decision.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical severity for ~51%% deviation, got %q", decision.Severity)
	}
}

func TestProcessObservationInRange(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	seedThreshold(t, thresholds, maxThreshold(35))

	decision, result, err := manager.ProcessObservationResult(context.Background(), observation(25))
	if err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	if decision.Violated || result != nil {
		t.Fatalf("expected no violation for in-range value, got %+v", decision)
	}

	alerts, _ := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if len(alerts) != 0 {
		t.Fatalf("expected no persisted alerts, got %d", len(alerts))
	}
}

func TestProcessObservationDisabledThreshold(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	threshold := maxThreshold(35)
	threshold.Enabled = false
	seedThreshold(t, thresholds, threshold)

	decision, err := manager.ProcessObservation(context.Background(), observation(53))
	if err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	if decision.Violated {
		t.Fatalf("expected disabled threshold to be ignored, got %+v", decision)
	}
}

func TestProcessObservationWithoutThreshold(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, nil)

	decision, err := manager.ProcessObservation(context.Background(), observation(99))
	if err != nil {
		t.Fatalf("expected missing configuration to be a non-event, got error %v", err)
	}
	if decision.Violated {
		t.Fatalf("expected zero decision without configuration, got %+v", decision)
	}
	alerts, _ := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if len(alerts) != 0 {
		t.Fatalf("expected no persisted alerts, got %d", len(alerts))
	}
}

func TestPersistRetryRecovers(t *testing.T) {
	t.Parallel()

	flaky := &flakyAlertStore{MemoryAlertStore: store.NewMemoryAlertStore(), failures: 2}
	manager, thresholds := newTestManager(t, flaky)
	seedThreshold(t, thresholds, maxThreshold(35))

	if _, err := manager.ProcessObservation(context.Background(), observation(40)); err != nil {
		t.Fatalf("expected retries to recover, got error %v", err)
	}
	if flaky.attempts != 3 {
		t.Fatalf("expected 3 append attempts, got %d", flaky.attempts)
	}
	alerts, _ := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if len(alerts) != 1 {
		t.Fatalf("expected persisted alert after retries, got %d", len(alerts))
	}
}

func TestPersistRetryExhaustion(t *testing.T) {
	t.Parallel()

	flaky := &flakyAlertStore{MemoryAlertStore: store.NewMemoryAlertStore(), failures: 10}
	manager, thresholds := newTestManager(t, flaky)
	seedThreshold(t, thresholds, maxThreshold(35))

	_, err := manager.ProcessObservation(context.Background(), observation(40))
	if err == nil || !faults.IsPersist(err) {
		t.Fatalf("expected persist fault after exhausted retries, got %v", err)
	}
	if flaky.attempts != 3 {
		t.Fatalf("expected max_attempts=3 append attempts, got %d", flaky.attempts)
	}
	if feed := manager.BrowserFeed(0); len(feed) != 0 {
		t.Fatalf("expected no notification without persisted alert, got %+v", feed)
	}
}

func TestBothBoundsEvaluated(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	minValue := 10.0
	maxValue := 30.0
	seedThreshold(t, thresholds, domain.Threshold{
		DeviceID:   "dev-1",
		SensorType: domain.SensorTemperature,
		MinValue:   &minValue,
		MaxValue:   &maxValue,
		Enabled:    true,
	})

	decision, err := manager.ProcessObservation(context.Background(), observation(5))
	if err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	if decision.Bound != domain.BoundMin || decision.ThresholdValue != 10 {
		t.Fatalf("expected min bound violation at 10, got %+v", decision)
	}

	decision, err = manager.ProcessObservation(context.Background(), observation(35.5))
	if err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	if decision.Bound != domain.BoundMax || decision.ThresholdValue != 30 {
		t.Fatalf("expected max bound violation at 30, got %+v", decision)
	}
}

func TestPushBatchFansOutObservations(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	seedThreshold(t, thresholds, maxThreshold(35))

	temperature := 40.0
	humidity := 61.2
	reading := domain.Reading{
		DeviceID:    "dev-1",
		DT:          1700000000000,
		Temperature: &temperature,
		Humidity:    &humidity,
	}
	if err := manager.PushBatch([]domain.Reading{reading}); err != nil {
		t.Fatalf("expected batch to process, got error %v", err)
	}

	// Only temperature has a threshold; humidity passes through silently.
	alerts, _ := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if len(alerts) != 1 || alerts[0].SensorType != domain.SensorTemperature {
		t.Fatalf("expected one temperature alert, got %+v", alerts)
	}
}

func TestRecordSystemAlert(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t, nil)

	alert, err := manager.RecordSystemAlert(context.Background(), "dev-9", "device dev-9 registered")
	if err != nil {
		t.Fatalf("expected recorded system alert, got error %v", err)
	}
	if alert.Severity != domain.SeverityInfo {
		t.Fatalf("expected info severity, got %q", alert.Severity)
	}
	if alert.CurrentValue != nil || alert.ThresholdValue != nil || alert.ThresholdType != nil {
		t.Fatalf("expected nil bound fields on system alert, got %+v", alert)
	}

	unread, err := manager.UnreadAlerts(context.Background())
	if err != nil || len(unread) != 1 {
		t.Fatalf("expected one unread alert, got %d (err %v)", len(unread), err)
	}
	if feed := manager.BrowserFeed(0); len(feed) != 1 {
		t.Fatalf("expected system alert mirrored to browser feed, got %+v", feed)
	}
}

func TestMarkAlertReadIsIdempotent(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	seedThreshold(t, thresholds, maxThreshold(35))
	if _, err := manager.ProcessObservation(context.Background(), observation(40)); err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	alerts, _ := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}

	for i := 0; i < 2; i++ {
		if err := manager.MarkAlertRead(context.Background(), alerts[0].ID); err != nil {
			t.Fatalf("expected idempotent mark-read on pass %d, got error %v", i+1, err)
		}
	}
	if err := manager.MarkAlertRead(context.Background(), "alert_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown alert, got %v", err)
	}

	unread, _ := manager.UnreadAlerts(context.Background())
	if len(unread) != 0 {
		t.Fatalf("expected no unread alerts after mark-read, got %d", len(unread))
	}
}

func TestSetDispatcherSwapsChannels(t *testing.T) {
	t.Parallel()

	manager, thresholds := newTestManager(t, nil)
	seedThreshold(t, thresholds, maxThreshold(35))

	// Swap to a dispatcher with every channel disabled.
	manager.SetDispatcher(notify.NewDispatcher(config.NotifyConfig{}, discardLogger()))

	if _, err := manager.ProcessObservation(context.Background(), observation(40)); err != nil {
		t.Fatalf("expected processed observation, got error %v", err)
	}
	alerts, _ := manager.AlertsByDevice(context.Background(), "dev-1", 0)
	if len(alerts) != 1 {
		t.Fatalf("expected alert persisted without channels, got %d", len(alerts))
	}
	if feed := manager.BrowserFeed(0); len(feed) != 0 {
		t.Fatalf("expected empty feed after channel shutdown, got %+v", feed)
	}
}

var _ clock.Clock = fixedClock{}
