package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity is the four-tier violation classification.
// Params: info/warning/error/critical tier constants.
// Returns: severity grade attached to alerts and notifications.
type Severity string

const (
	// SeverityInfo marks deviations within 10% of the bound.
	SeverityInfo Severity = "info"
	// SeverityWarning marks deviations above 10% of the bound.
	SeverityWarning Severity = "warning"
	// SeverityError marks deviations above 30% of the bound.
	SeverityError Severity = "error"
	// SeverityCritical marks deviations above 50% of the bound.
	SeverityCritical Severity = "critical"
)

// severityRank orders tiers for monotonicity comparisons.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Rank returns numeric tier position for ordering comparisons.
// Params: none.
// Returns: 0..3 rank, lower is less severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// BoundKind identifies which threshold bound was crossed.
// Params: min/max bound constants.
// Returns: bound marker used in decisions and alert records.
type BoundKind string

const (
	// BoundMin marks a value below the configured lower bound.
	BoundMin BoundKind = "min"
	// BoundMax marks a value above the configured upper bound.
	BoundMax BoundKind = "max"
)

// ViolationDecision is the transient output of one evaluation.
// Params: violation flag with bound, crossed value, and severity.
// Returns: deterministic evaluation result for one observation.
type ViolationDecision struct {
	Violated       bool      `json:"violated"`
	Bound          BoundKind `json:"bound,omitempty"`
	ThresholdValue float64   `json:"threshold_value,omitempty"`
	Severity       Severity  `json:"severity,omitempty"`
}

// NotificationAlert is one persisted alert record.
// Params: identity, violation context, rendered message, and read flag.
// Returns: durable record independent of notification delivery outcome.
type NotificationAlert struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"device_id"`
	SensorType     SensorType `json:"sensor_type"`
	CurrentValue   *float64   `json:"current_value"`
	ThresholdValue *float64   `json:"threshold_value"`
	ThresholdType  *BoundKind `json:"threshold_type"`
	Message        string     `json:"message"`
	Severity       Severity   `json:"severity"`
	Timestamp      time.Time  `json:"timestamp"`
	Read           bool       `json:"read"`
}

// NewAlertID generates one unique, creation-ordered alert id.
// Params: owning device id and creation time.
// Returns: "alert_<device>_<unixms>_<suffix>" identifier.
func NewAlertID(deviceID string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("alert_%s_%d_%s", deviceID, now.UnixMilli(), suffix)
}
