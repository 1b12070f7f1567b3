package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sensoralert/internal/config"
	"sensoralert/internal/domain"

	"github.com/nats-io/nats.go"
)

// NATSStore persists thresholds and alerts in JetStream KV buckets.
// Params: NATS connection, JetStream context, and KV bucket handles.
// Returns: KV-backed implementation of both store interfaces.
type NATSStore struct {
	nc          *nats.Conn
	js          nats.JetStreamContext
	thresholdKV nats.KeyValue
	alertKV     nats.KeyValue
	now         func() time.Time
	settings    config.NATSStoreConfig
}

// NewNATSStore connects to NATS and opens/creates the KV buckets.
// Params: NATS store settings and now function (defaults to time.Now).
// Returns: initialized NATS store or setup error.
func NewNATSStore(settings config.NATSStoreConfig, now func() time.Time) (*NATSStore, error) {
	if now == nil {
		now = time.Now
	}
	nc, err := nats.Connect(strings.Join(settings.URL, ","))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	thresholdKV, err := openBucket(js, settings.ThresholdBucket, settings.AllowCreateBuckets)
	if err != nil {
		nc.Close()
		return nil, err
	}
	alertKV, err := openBucket(js, settings.AlertBucket, settings.AllowCreateBuckets)
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &NATSStore{
		nc:          nc,
		js:          js,
		thresholdKV: thresholdKV,
		alertKV:     alertKV,
		now:         now,
		settings:    settings,
	}, nil
}

// openBucket opens one KV bucket, creating it when allowed.
// Params: JetStream context, bucket name, and create permission flag.
// Returns: KV handle or open error.
func openBucket(js nats.JetStreamContext, bucket string, allowCreate bool) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !allowCreate {
		return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
	}
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	if err != nil {
		return nil, fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return kv, nil
}

// GetEnabledThreshold returns latest enabled threshold for the combination.
// Params: device id and sensor type.
// Returns: authoritative threshold or ErrNotFound.
func (s *NATSStore) GetEnabledThreshold(_ context.Context, deviceID string, sensorType domain.SensorType) (domain.Threshold, error) {
	prefix := deviceID + "_" + string(sensorType) + "_"
	keys, err := s.bucketKeys(s.thresholdKV)
	if err != nil {
		return domain.Threshold{}, fmt.Errorf("list threshold keys: %w", err)
	}

	candidates := make([]domain.Threshold, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		threshold, getErr := s.getThreshold(key)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				continue
			}
			return domain.Threshold{}, getErr
		}
		// Key prefixes alone cross-match when a device id contains "_";
		// the decoded record is the authority.
		if threshold.DeviceID != deviceID || threshold.SensorType != sensorType {
			continue
		}
		if !threshold.Enabled {
			continue
		}
		candidates = append(candidates, threshold)
	}
	return latestThreshold(candidates)
}

// CreateThreshold stores one new threshold with generated identity.
// Params: threshold fields without id/timestamps.
// Returns: stored threshold or validation/backend error.
func (s *NATSStore) CreateThreshold(_ context.Context, threshold domain.Threshold) (domain.Threshold, error) {
	if err := threshold.Validate(); err != nil {
		return domain.Threshold{}, err
	}
	now := s.now().UTC()
	threshold.ID = ThresholdID(threshold.DeviceID, threshold.SensorType, now)
	threshold.CreatedAt = now
	threshold.UpdatedAt = now

	if err := s.putThreshold(threshold); err != nil {
		return domain.Threshold{}, err
	}
	return threshold, nil
}

// UpdateThreshold applies partial mutation to one threshold.
// Params: threshold id and patch payload.
// Returns: patched threshold, ErrNotFound, or invariant error.
func (s *NATSStore) UpdateThreshold(_ context.Context, id string, patch domain.ThresholdUpdate) (domain.Threshold, error) {
	current, err := s.getThreshold(id)
	if err != nil {
		return domain.Threshold{}, err
	}
	next := patch.Apply(current, s.now().UTC())
	if err := next.Validate(); err != nil {
		return domain.Threshold{}, err
	}
	if err := s.putThreshold(next); err != nil {
		return domain.Threshold{}, err
	}
	return next, nil
}

// DeleteThreshold removes one threshold by id.
// Params: threshold id.
// Returns: ErrNotFound for unknown ids or backend error.
func (s *NATSStore) DeleteThreshold(_ context.Context, id string) error {
	if _, err := s.getThreshold(id); err != nil {
		return err
	}
	if err := s.thresholdKV.Delete(id); err != nil && err != nats.ErrKeyNotFound {
		return fmt.Errorf("delete threshold: %w", err)
	}
	return nil
}

// ListThresholdsByDevice lists all thresholds of one device, disabled included.
// Params: device id.
// Returns: thresholds ordered newest first.
func (s *NATSStore) ListThresholdsByDevice(_ context.Context, deviceID string) ([]domain.Threshold, error) {
	prefix := deviceID + "_"
	keys, err := s.bucketKeys(s.thresholdKV)
	if err != nil {
		return nil, fmt.Errorf("list threshold keys: %w", err)
	}

	out := make([]domain.Threshold, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		threshold, getErr := s.getThreshold(key)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				continue
			}
			return nil, getErr
		}
		if threshold.DeviceID != deviceID {
			continue
		}
		out = append(out, threshold)
	}
	sortThresholdsNewestFirst(out)
	return out, nil
}

// Append stores one alert record under its id key.
// Params: alert record with generated id.
// Returns: backend error when the write fails.
func (s *NATSStore) Append(_ context.Context, alert domain.NotificationAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if _, err := s.alertKV.Create(alert.ID, body); err != nil {
		return fmt.Errorf("append alert: %w", err)
	}
	return nil
}

// ListByDevice returns alerts of one device ordered newest first.
// Params: device id and result cap (<=0 disables the cap).
// Returns: matching alert records.
func (s *NATSStore) ListByDevice(_ context.Context, deviceID string, limit int) ([]domain.NotificationAlert, error) {
	prefix := "alert_" + deviceID + "_"
	keys, err := s.bucketKeys(s.alertKV)
	if err != nil {
		return nil, fmt.Errorf("list alert keys: %w", err)
	}

	out := make([]domain.NotificationAlert, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		alert, getErr := s.getAlert(key)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				continue
			}
			return nil, getErr
		}
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
func (s *NATSStore) ListUnread(_ context.Context) ([]domain.NotificationAlert, error) {
	keys, err := s.bucketKeys(s.alertKV)
	if err != nil {
		return nil, fmt.Errorf("list alert keys: %w", err)
	}

	out := make([]domain.NotificationAlert, 0)
	for _, key := range keys {
		alert, getErr := s.getAlert(key)
		if getErr != nil {
			if errors.Is(getErr, ErrNotFound) {
				continue
			}
			return nil, getErr
		}
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
func (s *NATSStore) MarkRead(_ context.Context, id string) error {
	alert, err := s.getAlert(id)
	if err != nil {
		return err
	}
	if alert.Read {
		return nil
	}
	alert.Read = true
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if _, err := s.alertKV.Put(id, body); err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}

// Delete removes one alert record by id.
// Params: alert id.
// Returns: ErrNotFound for unknown ids or backend error.
func (s *NATSStore) Delete(_ context.Context, id string) error {
	if _, err := s.getAlert(id); err != nil {
		return err
	}
	if err := s.alertKV.Delete(id); err != nil && err != nats.ErrKeyNotFound {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

// Close closes underlying NATS connection.
// Params: none.
// Returns: nil after connection close.
func (s *NATSStore) Close() error {
	s.nc.Close()
	return nil
}

// bucketKeys lists bucket keys treating the empty bucket as no keys.
// Params: KV bucket handle.
// Returns: key list or backend error.
func (s *NATSStore) bucketKeys(kv nats.KeyValue) ([]string, error) {
	keys, err := kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	return keys, nil
}

// getThreshold reads and decodes one threshold by key.
// Params: threshold id key.
// Returns: decoded threshold, ErrNotFound, or backend error.
func (s *NATSStore) getThreshold(key string) (domain.Threshold, error) {
	entry, err := s.thresholdKV.Get(key)
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return domain.Threshold{}, ErrNotFound
		}
		return domain.Threshold{}, fmt.Errorf("get threshold: %w", err)
	}
	var threshold domain.Threshold
	if err := json.Unmarshal(entry.Value(), &threshold); err != nil {
		return domain.Threshold{}, fmt.Errorf("decode threshold: %w", err)
	}
	return threshold, nil
}

// putThreshold encodes and writes one threshold under its id key.
// Params: threshold payload.
// Returns: backend error when the write fails.
func (s *NATSStore) putThreshold(threshold domain.Threshold) error {
	body, err := json.Marshal(threshold)
	if err != nil {
		return fmt.Errorf("encode threshold: %w", err)
	}
	if _, err := s.thresholdKV.Put(threshold.ID, body); err != nil {
		return fmt.Errorf("put threshold: %w", err)
	}
	return nil
}

// getAlert reads and decodes one alert by key.
// Params: alert id key.
// Returns: decoded alert, ErrNotFound, or backend error.
func (s *NATSStore) getAlert(key string) (domain.NotificationAlert, error) {
	entry, err := s.alertKV.Get(key)
	if err != nil {
		if err == nats.ErrKeyNotFound {
			return domain.NotificationAlert{}, ErrNotFound
		}
		return domain.NotificationAlert{}, fmt.Errorf("get alert: %w", err)
	}
	var alert domain.NotificationAlert
	if err := json.Unmarshal(entry.Value(), &alert); err != nil {
		return domain.NotificationAlert{}, fmt.Errorf("decode alert: %w", err)
	}
	return alert, nil
}
