package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sensoralert/internal/clock"
	"sensoralert/internal/config"
	"sensoralert/internal/domain"
	"sensoralert/internal/engine"
	"sensoralert/internal/faults"
	"sensoralert/internal/metrics"
	"sensoralert/internal/notify"
	"sensoralert/internal/store"
)

// DispatchResult is the audit record for one handled violation.
// Params: persisted alert and per-channel delivery failures.
// Returns: separation between "alert persisted" and "channels notified".
type DispatchResult struct {
	Alert          domain.NotificationAlert
	NotifyFailures []notify.Failure
}

// Manager coordinates threshold evaluation, alert persistence, and
// notification fan-out for observations arriving from ingest interfaces.
// Params: runtime config, stores, notifier dispatcher, logger, and clock.
// Returns: observation sink and API pass-through entrypoint.
type Manager struct {
	mu         sync.RWMutex
	cfg        config.Config
	logger     *slog.Logger
	evaluator  *engine.Evaluator
	thresholds store.ThresholdStore
	alerts     store.AlertStore
	dispatcher *notify.Dispatcher
	clock      clock.Clock
}

// NewManager creates manager with initial configuration.
// Params: initial config, logger, stores, notifier dispatcher, and clock.
// Returns: initialized manager.
func NewManager(cfg config.Config, logger *slog.Logger, thresholds store.ThresholdStore, alerts store.AlertStore, dispatcher *notify.Dispatcher, clk clock.Clock) *Manager {
	return &Manager{
		cfg:        cfg,
		logger:     logger,
		evaluator:  engine.NewEvaluator(thresholds, logger),
		thresholds: thresholds,
		alerts:     alerts,
		dispatcher: dispatcher,
		clock:      clk,
	}
}

// Push processes one incoming reading from ingest interfaces.
// Params: validated incoming reading.
// Returns: processing error when a backend operation fails.
func (m *Manager) Push(reading domain.Reading) error {
	return m.PushBatch([]domain.Reading{reading})
}

// PushBatch processes a batch of incoming readings from ingest interfaces.
// Params: validated incoming reading slice.
// Returns: first backend error; notification failures never surface here.
func (m *Manager) PushBatch(readings []domain.Reading) error {
	ctx := context.Background()
	for _, reading := range readings {
		for _, observation := range reading.Observations() {
			if _, err := m.ProcessObservation(ctx, observation); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessObservation evaluates one observation and, on violation,
// persists an alert before fan-out delivery to opted-in channels.
// Params: context and validated observation.
// Returns: evaluation decision; lookup/persist faults on backend failure.
func (m *Manager) ProcessObservation(ctx context.Context, observation domain.Observation) (domain.ViolationDecision, error) {
	decision, _, err := m.processObservation(ctx, observation)
	return decision, err
}

// ProcessObservationResult is ProcessObservation with the dispatch audit.
// Params: context and validated observation.
// Returns: decision, dispatch audit (nil when nothing was persisted), error.
func (m *Manager) ProcessObservationResult(ctx context.Context, observation domain.Observation) (domain.ViolationDecision, *DispatchResult, error) {
	return m.processObservation(ctx, observation)
}

func (m *Manager) processObservation(ctx context.Context, observation domain.Observation) (domain.ViolationDecision, *DispatchResult, error) {
	cfg := m.configSnapshot()

	evalCtx, cancel := context.WithTimeout(ctx, cfg.Service.EvaluateTimeout())
	decision, threshold, err := m.evaluator.EvaluateWithThreshold(evalCtx, observation)
	cancel()
	metrics.ObservationsEvaluated.WithLabelValues(string(observation.SensorType)).Inc()
	if err != nil {
		metrics.EvaluationErrors.Inc()
		m.logger.Error("threshold lookup failed",
			"device_id", observation.DeviceID,
			"sensor_type", string(observation.SensorType),
			"error", err.Error())
		return domain.ViolationDecision{}, nil, err
	}
	if !decision.Violated {
		return decision, nil, nil
	}
	metrics.ViolationsTotal.WithLabelValues(
		string(observation.SensorType), string(decision.Bound), string(decision.Severity)).Inc()

	now := m.clock.Now()
	alert := buildViolationAlert(observation, decision, now)
	if err := m.persistAlert(ctx, cfg, alert); err != nil {
		return decision, nil, err
	}
	metrics.AlertsPersisted.WithLabelValues(string(alert.Severity)).Inc()
	m.logger.Info("alert persisted",
		"alert_id", alert.ID,
		"device_id", alert.DeviceID,
		"sensor_type", string(alert.SensorType),
		"severity", string(alert.Severity))

	result := &DispatchResult{Alert: alert}
	result.NotifyFailures = m.dispatchAlert(ctx, alert, m.alertChannels(threshold))
	return decision, result, nil
}

// RecordSystemAlert persists one informational alert that is not tied to
// a threshold crossing, such as a new device announcing itself.
// Params: context, device id, and human-readable message.
// Returns: persisted alert; persist fault when the store stays down.
func (m *Manager) RecordSystemAlert(ctx context.Context, deviceID, message string) (domain.NotificationAlert, error) {
	cfg := m.configSnapshot()
	now := m.clock.Now()
	alert := domain.NotificationAlert{
		ID:        domain.NewAlertID(deviceID, now),
		DeviceID:  deviceID,
		Message:   message,
		Severity:  domain.SeverityInfo,
		Timestamp: now,
	}
	if err := m.persistAlert(ctx, cfg, alert); err != nil {
		return domain.NotificationAlert{}, err
	}
	metrics.AlertsPersisted.WithLabelValues(string(alert.Severity)).Inc()
	m.dispatchAlert(ctx, alert, m.mirrorChannels())
	return alert, nil
}

// persistAlert appends one alert with per-attempt timeout and the
// configured retry/backoff policy. Persistence is the source of truth:
// exhausting retries is a hard failure, notification failures are not.
// Params: context, active config snapshot, and built alert.
// Returns: faults.PersistError after the final failed attempt.
func (m *Manager) persistAlert(ctx context.Context, cfg config.Config, alert domain.NotificationAlert) error {
	retry := cfg.Service.PersistRetry
	delay := time.Duration(retry.InitialMS) * time.Millisecond
	maxDelay := time.Duration(retry.MaxMS) * time.Millisecond

	attempt := 0
	for {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Service.PersistTimeout())
		err := m.alerts.Append(attemptCtx, alert)
		cancel()
		if err == nil {
			return nil
		}
		if !retry.Enabled || attempt >= retry.MaxAttempts {
			metrics.PersistFailures.Inc()
			m.logger.Error("alert persist failed",
				"alert_id", alert.ID, "attempts", attempt, "error", err.Error())
			return faults.MarkPersist(fmt.Errorf("append alert %s after %d attempts: %w", alert.ID, attempt, err))
		}
		metrics.PersistRetries.Inc()
		if retry.LogEachAttempt {
			m.logger.Warn("alert persist retry",
				"alert_id", alert.ID, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err.Error())
		}
		select {
		case <-ctx.Done():
			metrics.PersistFailures.Inc()
			return faults.MarkPersist(fmt.Errorf("append alert %s: %w", alert.ID, ctx.Err()))
		case <-time.After(delay):
		}
		if retry.Backoff == "exponential" {
			delay *= 2
			if maxDelay > 0 && delay > maxDelay {
				delay = maxDelay
			}
		}
	}
}

// dispatchAlert delivers one persisted alert to the selected channels.
// Delivery failures are logged and counted inside the dispatcher; they
// never propagate to the caller.
// Params: context, persisted alert, and selected channel names.
// Returns: per-channel failures for audit purposes only.
func (m *Manager) dispatchAlert(ctx context.Context, alert domain.NotificationAlert, channels []string) []notify.Failure {
	if len(channels) == 0 {
		return nil
	}
	dispatcher := m.dispatcherSnapshot()
	if dispatcher == nil {
		return nil
	}
	return dispatcher.Dispatch(ctx, alert, channels)
}

// alertChannels selects delivery channels from threshold opt-ins plus
// globally enabled mirror channels.
// Params: threshold that produced the violation.
// Returns: channel names in registry order.
func (m *Manager) alertChannels(threshold domain.Threshold) []string {
	dispatcher := m.dispatcherSnapshot()
	if dispatcher == nil {
		return nil
	}
	channels := make([]string, 0, 3)
	if threshold.NotifyEmail && dispatcher.Has(config.NotifyChannelEmail) {
		channels = append(channels, config.NotifyChannelEmail)
	}
	if threshold.NotifyBrowser && dispatcher.Has(config.NotifyChannelBrowser) {
		channels = append(channels, config.NotifyChannelBrowser)
	}
	if dispatcher.Has(config.NotifyChannelTelegram) {
		channels = append(channels, config.NotifyChannelTelegram)
	}
	return channels
}

// mirrorChannels selects the channels for non-threshold alerts.
// Params: none.
// Returns: browser plus telegram when enabled.
func (m *Manager) mirrorChannels() []string {
	dispatcher := m.dispatcherSnapshot()
	if dispatcher == nil {
		return nil
	}
	channels := make([]string, 0, 2)
	if dispatcher.Has(config.NotifyChannelBrowser) {
		channels = append(channels, config.NotifyChannelBrowser)
	}
	if dispatcher.Has(config.NotifyChannelTelegram) {
		channels = append(channels, config.NotifyChannelTelegram)
	}
	return channels
}

// SetDispatcher replaces runtime notification dispatcher.
// Params: fresh dispatcher built from active notify config.
// Returns: dispatcher reference swapped atomically.
func (m *Manager) SetDispatcher(dispatcher *notify.Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatcher = dispatcher
}

// ApplyConfig atomically replaces the active config snapshot.
// Params: validated new config snapshot.
// Returns: nothing; timeouts and retry policy apply to later calls.
func (m *Manager) ApplyConfig(cfg config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

func (m *Manager) configSnapshot() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) dispatcherSnapshot() *notify.Dispatcher {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dispatcher
}

// BrowserFeed returns recent browser-channel intents, newest first.
// Params: result cap (<=0 means no cap).
// Returns: empty slice when the browser channel is disabled.
func (m *Manager) BrowserFeed(limit int) []domain.NotificationAlert {
	dispatcher := m.dispatcherSnapshot()
	if dispatcher == nil {
		return nil
	}
	browser := dispatcher.Browser()
	if browser == nil {
		return nil
	}
	return browser.Recent(limit)
}

// CreateThreshold persists one new threshold; the store validates.
// Params: context and threshold fields from the API layer.
// Returns: stored threshold with generated id and timestamps.
func (m *Manager) CreateThreshold(ctx context.Context, threshold domain.Threshold) (domain.Threshold, error) {
	return m.thresholds.CreateThreshold(ctx, threshold)
}

// UpdateThreshold applies a partial update to one threshold.
// Params: context, threshold id, and patch fields.
// Returns: updated threshold or store.ErrNotFound.
func (m *Manager) UpdateThreshold(ctx context.Context, id string, patch domain.ThresholdUpdate) (domain.Threshold, error) {
	return m.thresholds.UpdateThreshold(ctx, id, patch)
}

// DeleteThreshold removes one threshold.
// Params: context and threshold id.
// Returns: store.ErrNotFound for unknown ids.
func (m *Manager) DeleteThreshold(ctx context.Context, id string) error {
	return m.thresholds.DeleteThreshold(ctx, id)
}

// ThresholdsByDevice lists all thresholds of one device, disabled included.
// Params: context and device id.
// Returns: thresholds newest first.
func (m *Manager) ThresholdsByDevice(ctx context.Context, deviceID string) ([]domain.Threshold, error) {
	return m.thresholds.ListThresholdsByDevice(ctx, deviceID)
}

// AlertsByDevice lists persisted alerts of one device.
// Params: context, device id, and result cap (<=0 means no cap).
// Returns: alerts newest first.
func (m *Manager) AlertsByDevice(ctx context.Context, deviceID string, limit int) ([]domain.NotificationAlert, error) {
	return m.alerts.ListByDevice(ctx, deviceID, limit)
}

// UnreadAlerts lists all alerts not yet marked read.
// Params: context.
// Returns: unread alerts newest first.
func (m *Manager) UnreadAlerts(ctx context.Context) ([]domain.NotificationAlert, error) {
	return m.alerts.ListUnread(ctx)
}

// MarkAlertRead flips one alert to read. Re-marking is a no-op success.
// Params: context and alert id.
// Returns: store.ErrNotFound for unknown ids.
func (m *Manager) MarkAlertRead(ctx context.Context, id string) error {
	return m.alerts.MarkRead(ctx, id)
}

// DeleteAlert removes one persisted alert.
// Params: context and alert id.
// Returns: store.ErrNotFound for unknown ids.
func (m *Manager) DeleteAlert(ctx context.Context, id string) error {
	return m.alerts.Delete(ctx, id)
}

// buildViolationAlert materializes one persistent alert from a decision.
// Params: observation, violated decision, and persistence timestamp.
// Returns: alert record ready for Append.
func buildViolationAlert(observation domain.Observation, decision domain.ViolationDecision, now time.Time) domain.NotificationAlert {
	value := observation.Value
	limit := decision.ThresholdValue
	bound := decision.Bound
	return domain.NotificationAlert{
		ID:             domain.NewAlertID(observation.DeviceID, now),
		DeviceID:       observation.DeviceID,
		SensorType:     observation.SensorType,
		CurrentValue:   &value,
		ThresholdValue: &limit,
		ThresholdType:  &bound,
		Message:        engine.ViolationMessage(observation, decision),
		Severity:       decision.Severity,
		Timestamp:      now,
	}
}
