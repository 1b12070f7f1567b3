package store

import (
	"context"
	"errors"

	"sensoralert/internal/domain"
)

// ErrNotFound indicates absent threshold/alert record.
var ErrNotFound = errors.New("not found")

// ThresholdStore provides threshold configuration persistence.
// Params: CRUD operations plus the evaluator lookup path.
// Returns: backend persistence behavior for threshold entities.
type ThresholdStore interface {
	// GetEnabledThreshold returns the latest enabled threshold for one
	// device+sensor combination, or ErrNotFound when nothing is configured.
	// Disabled thresholds are never returned here, but stay visible to
	// ListThresholdsByDevice.
	GetEnabledThreshold(ctx context.Context, deviceID string, sensorType domain.SensorType) (domain.Threshold, error)
	CreateThreshold(ctx context.Context, threshold domain.Threshold) (domain.Threshold, error)
	UpdateThreshold(ctx context.Context, id string, patch domain.ThresholdUpdate) (domain.Threshold, error)
	DeleteThreshold(ctx context.Context, id string) error
	ListThresholdsByDevice(ctx context.Context, deviceID string) ([]domain.Threshold, error)
	Close() error
}

// AlertStore provides durable append-only alert persistence.
// Params: append plus recency/read-state query operations.
// Returns: backend persistence behavior for alert records.
type AlertStore interface {
	Append(ctx context.Context, alert domain.NotificationAlert) error
	// ListByDevice returns alerts for one device ordered newest first,
	// capped by limit (limit <= 0 means no cap).
	ListByDevice(ctx context.Context, deviceID string, limit int) ([]domain.NotificationAlert, error)
	ListUnread(ctx context.Context) ([]domain.NotificationAlert, error)
	// MarkRead flips read to true. Marking an already-read alert is a
	// no-op success; unknown ids return ErrNotFound.
	MarkRead(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Close() error
}
