package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Threshold is one configured bound pair for a device+sensor combination.
// Params: optional min/max bounds, enabled flag, and channel opt-ins.
// Returns: configuration entity read by the evaluator.
type Threshold struct {
	ID            string     `json:"id"`
	DeviceID      string     `json:"device_id"`
	SensorType    SensorType `json:"sensor_type"`
	MinValue      *float64   `json:"min_value,omitempty"`
	MaxValue      *float64   `json:"max_value,omitempty"`
	Enabled       bool       `json:"enabled"`
	NotifyEmail   bool       `json:"notify_email"`
	NotifyBrowser bool       `json:"notify_browser"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Validate validates threshold creation invariants.
// Params: threshold fields from configuration API.
// Returns: validation error when the contract is violated.
func (t Threshold) Validate() error {
	if strings.TrimSpace(t.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if !t.SensorType.Valid() {
		return fmt.Errorf("unsupported sensor type %q", t.SensorType)
	}
	if t.MinValue == nil && t.MaxValue == nil {
		return errors.New("at least one of min_value/max_value is required")
	}
	if t.MinValue != nil && t.MaxValue != nil && *t.MinValue >= *t.MaxValue {
		return fmt.Errorf("min_value %v must be below max_value %v", *t.MinValue, *t.MaxValue)
	}
	return nil
}

// ThresholdUpdate carries one partial threshold mutation.
// Params: optional replacements for every mutable field.
// Returns: patch applied by the store; id/created_at stay immutable.
type ThresholdUpdate struct {
	MinValue      *float64 `json:"min_value,omitempty"`
	MaxValue      *float64 `json:"max_value,omitempty"`
	ClearMin      bool     `json:"clear_min,omitempty"`
	ClearMax      bool     `json:"clear_max,omitempty"`
	Enabled       *bool    `json:"enabled,omitempty"`
	NotifyEmail   *bool    `json:"notify_email,omitempty"`
	NotifyBrowser *bool    `json:"notify_browser,omitempty"`
}

// Apply applies the patch onto one threshold copy.
// Params: current threshold snapshot and mutation time.
// Returns: patched threshold with refreshed updated_at.
func (u ThresholdUpdate) Apply(threshold Threshold, now time.Time) Threshold {
	if u.MinValue != nil {
		value := *u.MinValue
		threshold.MinValue = &value
	}
	if u.ClearMin {
		threshold.MinValue = nil
	}
	if u.MaxValue != nil {
		value := *u.MaxValue
		threshold.MaxValue = &value
	}
	if u.ClearMax {
		threshold.MaxValue = nil
	}
	if u.Enabled != nil {
		threshold.Enabled = *u.Enabled
	}
	if u.NotifyEmail != nil {
		threshold.NotifyEmail = *u.NotifyEmail
	}
	if u.NotifyBrowser != nil {
		threshold.NotifyBrowser = *u.NotifyBrowser
	}
	threshold.UpdatedAt = now
	return threshold
}
