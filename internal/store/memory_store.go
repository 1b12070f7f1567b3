package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sensoralert/internal/domain"
)

// MemoryThresholdStore keeps thresholds in process memory for single mode.
// Params: in-memory map keyed by threshold id and injected clock.
// Returns: store implementation without external dependencies.
type MemoryThresholdStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	thresholds map[string]domain.Threshold
}

// NewMemoryThresholdStore creates in-memory threshold store.
// Params: now function (defaults to time.Now when nil).
// Returns: initialized in-memory store.
func NewMemoryThresholdStore(now func() time.Time) *MemoryThresholdStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryThresholdStore{
		now:        now,
		thresholds: make(map[string]domain.Threshold),
	}
}

// GetEnabledThreshold returns latest enabled threshold for the combination.
// Params: device id and sensor type.
// Returns: authoritative threshold or ErrNotFound.
func (s *MemoryThresholdStore) GetEnabledThreshold(_ context.Context, deviceID string, sensorType domain.SensorType) (domain.Threshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates := make([]domain.Threshold, 0)
	for _, threshold := range s.thresholds {
		if threshold.DeviceID != deviceID || threshold.SensorType != sensorType || !threshold.Enabled {
			continue
		}
		candidates = append(candidates, threshold)
	}
	return latestThreshold(candidates)
}

// CreateThreshold stores one new threshold with generated identity.
// Params: threshold fields without id/timestamps.
// Returns: stored threshold or validation error.
func (s *MemoryThresholdStore) CreateThreshold(_ context.Context, threshold domain.Threshold) (domain.Threshold, error) {
	if err := threshold.Validate(); err != nil {
		return domain.Threshold{}, err
	}
	now := s.now().UTC()
	threshold.ID = ThresholdID(threshold.DeviceID, threshold.SensorType, now)
	threshold.CreatedAt = now
	threshold.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds[threshold.ID] = threshold
	return threshold, nil
}

// UpdateThreshold applies partial mutation to one threshold.
// Params: threshold id and patch payload.
// Returns: patched threshold, ErrNotFound, or invariant error.
func (s *MemoryThresholdStore) UpdateThreshold(_ context.Context, id string, patch domain.ThresholdUpdate) (domain.Threshold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.thresholds[id]
	if !ok {
		return domain.Threshold{}, ErrNotFound
	}
	next := patch.Apply(current, s.now().UTC())
	if err := next.Validate(); err != nil {
		return domain.Threshold{}, err
	}
	s.thresholds[id] = next
	return next, nil
}

// DeleteThreshold removes one threshold by id.
// Params: threshold id.
// Returns: ErrNotFound when the id is unknown.
func (s *MemoryThresholdStore) DeleteThreshold(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.thresholds[id]; !ok {
		return ErrNotFound
	}
	delete(s.thresholds, id)
	return nil
}

// ListThresholdsByDevice lists all thresholds of one device, disabled included.
// Params: device id.
// Returns: thresholds ordered newest first.
func (s *MemoryThresholdStore) ListThresholdsByDevice(_ context.Context, deviceID string) ([]domain.Threshold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Threshold, 0)
	for _, threshold := range s.thresholds {
		if threshold.DeviceID != deviceID {
			continue
		}
		out = append(out, threshold)
	}
	sortThresholdsNewestFirst(out)
	return out, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryThresholdStore) Close() error {
	return nil
}

// MemoryAlertStore keeps alert records in process memory for single mode.
// Params: in-memory map keyed by alert id.
// Returns: store implementation without external dependencies.
type MemoryAlertStore struct {
	mu     sync.RWMutex
	alerts map[string]domain.NotificationAlert
}

// NewMemoryAlertStore creates in-memory alert store.
// Params: none.
// Returns: initialized in-memory store.
func NewMemoryAlertStore() *MemoryAlertStore {
	return &MemoryAlertStore{alerts: make(map[string]domain.NotificationAlert)}
}

// Append stores one alert record.
// Params: alert record with generated id.
// Returns: error when the id already exists.
func (s *MemoryAlertStore) Append(_ context.Context, alert domain.NotificationAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[alert.ID]; ok {
		return fmt.Errorf("alert %q already exists", alert.ID)
	}
	s.alerts[alert.ID] = alert
	return nil
}

// ListByDevice returns alerts of one device ordered newest first.
// Params: device id and result cap (<=0 disables the cap).
// Returns: matching alert records.
func (s *MemoryAlertStore) ListByDevice(_ context.Context, deviceID string, limit int) ([]domain.NotificationAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NotificationAlert, 0)
	for _, alert := range s.alerts {
		if alert.DeviceID != deviceID {
			continue
		}
		out = append(out, alert)
	}
	sortAlertsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListUnread returns all alerts with read=false ordered newest first.
// Params: none.
// Returns: unread alert records.
func (s *MemoryAlertStore) ListUnread(_ context.Context) ([]domain.NotificationAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.NotificationAlert, 0)
	for _, alert := range s.alerts {
		if alert.Read {
			continue
		}
		out = append(out, alert)
	}
	sortAlertsNewestFirst(out)
	return out, nil
}

// MarkRead flips one alert read flag to true.
// Params: alert id.
// Returns: ErrNotFound for unknown ids; already-read is a no-op.
func (s *MemoryAlertStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return ErrNotFound
	}
	alert.Read = true
	s.alerts[id] = alert
	return nil
}

// Delete removes one alert record by id.
// Params: alert id.
// Returns: ErrNotFound when the id is unknown.
func (s *MemoryAlertStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(s.alerts, id)
	return nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryAlertStore) Close() error {
	return nil
}

// ThresholdID builds one threshold identity for a combination.
// Params: device id, sensor type, and creation time.
// Returns: "<device>_<sensor>_<unixms>" identifier.
func ThresholdID(deviceID string, sensorType domain.SensorType, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", deviceID, sensorType, now.UnixMilli())
}

// latestThreshold picks the authoritative threshold from enabled candidates.
// Params: enabled thresholds of one device+sensor combination.
// Returns: newest by updated_at/created_at or ErrNotFound.
func latestThreshold(candidates []domain.Threshold) (domain.Threshold, error) {
	if len(candidates) == 0 {
		return domain.Threshold{}, ErrNotFound
	}
	sortThresholdsNewestFirst(candidates)
	return candidates[0], nil
}

// sortThresholdsNewestFirst orders thresholds by update recency.
// Params: mutable threshold slice.
// Returns: slice sorted in place, updated_at then created_at then id.
func sortThresholdsNewestFirst(thresholds []domain.Threshold) {
	sort.Slice(thresholds, func(i, j int) bool {
		if !thresholds[i].UpdatedAt.Equal(thresholds[j].UpdatedAt) {
			return thresholds[i].UpdatedAt.After(thresholds[j].UpdatedAt)
		}
		if !thresholds[i].CreatedAt.Equal(thresholds[j].CreatedAt) {
			return thresholds[i].CreatedAt.After(thresholds[j].CreatedAt)
		}
		return strings.Compare(thresholds[i].ID, thresholds[j].ID) > 0
	})
}

// sortAlertsNewestFirst orders alerts by creation recency.
// Params: mutable alert slice.
// Returns: slice sorted in place, timestamp then id.
func sortAlertsNewestFirst(alerts []domain.NotificationAlert) {
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].Timestamp.Equal(alerts[j].Timestamp) {
			return alerts[i].Timestamp.After(alerts[j].Timestamp)
		}
		return strings.Compare(alerts[i].ID, alerts[j].ID) > 0
	})
}
