package engine

import (
	"context"
	"errors"
	"log/slog"

	"sensoralert/internal/domain"
	"sensoralert/internal/faults"
	"sensoralert/internal/store"
)

// ThresholdSource provides the evaluator lookup capability.
// Params: device id and sensor type lookup key.
// Returns: enabled threshold, store.ErrNotFound, or backend error.
type ThresholdSource interface {
	GetEnabledThreshold(ctx context.Context, deviceID string, sensorType domain.SensorType) (domain.Threshold, error)
}

// Evaluator decides whether one observation violates its threshold.
// Params: threshold source and logger for severity edge cases.
// Returns: deterministic per-observation violation decisions.
type Evaluator struct {
	thresholds ThresholdSource
	logger     *slog.Logger
}

// NewEvaluator creates evaluator over one threshold source.
// Params: threshold source and optional logger.
// Returns: initialized evaluator.
func NewEvaluator(thresholds ThresholdSource, logger *slog.Logger) *Evaluator {
	return &Evaluator{thresholds: thresholds, logger: logger}
}

// Evaluate classifies one observation against its enabled threshold.
// Params: context for the lookup and validated observation.
// Returns: violation decision; faults.LookupError when the store fails.
// Absent or disabled configuration is a normal non-violation, not an error.
func (e *Evaluator) Evaluate(ctx context.Context, observation domain.Observation) (domain.ViolationDecision, error) {
	decision, _, err := e.EvaluateWithThreshold(ctx, observation)
	return decision, err
}

// EvaluateWithThreshold classifies one observation and additionally
// returns the threshold that produced the decision, so callers can
// route notifications by its per-channel opt-ins.
// Params: context for the lookup and validated observation.
// Returns: decision, matched threshold (zero when none applied), error.
func (e *Evaluator) EvaluateWithThreshold(ctx context.Context, observation domain.Observation) (domain.ViolationDecision, domain.Threshold, error) {
	threshold, err := e.thresholds.GetEnabledThreshold(ctx, observation.DeviceID, observation.SensorType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ViolationDecision{}, domain.Threshold{}, nil
		}
		return domain.ViolationDecision{}, domain.Threshold{}, faults.MarkLookup(err)
	}
	if !threshold.Enabled {
		return domain.ViolationDecision{}, domain.Threshold{}, nil
	}
	return e.decide(observation, threshold), threshold, nil
}

// decide applies bound checks in the defined min-before-max order.
// Params: observation and its authoritative threshold.
// Returns: violation decision with severity when a bound is crossed.
func (e *Evaluator) decide(observation domain.Observation, threshold domain.Threshold) domain.ViolationDecision {
	// Min strictly precedes max: only the first crossing is reported.
	if threshold.MinValue != nil && observation.Value < *threshold.MinValue {
		return e.violation(observation, domain.BoundMin, *threshold.MinValue)
	}
	if threshold.MaxValue != nil && observation.Value > *threshold.MaxValue {
		return e.violation(observation, domain.BoundMax, *threshold.MaxValue)
	}
	return domain.ViolationDecision{}
}

// violation builds one violated decision with computed severity.
// Params: observation, crossed bound kind, and crossed bound value.
// Returns: populated violation decision.
func (e *Evaluator) violation(observation domain.Observation, bound domain.BoundKind, thresholdValue float64) domain.ViolationDecision {
	return domain.ViolationDecision{
		Violated:       true,
		Bound:          bound,
		ThresholdValue: thresholdValue,
		Severity:       ClassifyLogged(e.logger, observation.Value, thresholdValue, bound),
	}
}
