package engine

import (
	"log/slog"
	"math"

	"sensoralert/internal/domain"
)

// Classify maps one violation distance onto a severity tier.
// Params: observed value, crossed bound value, and bound kind.
// Returns: severity tier; total for any finite input, info for NaN/Inf.
func Classify(value, thresholdValue float64, bound domain.BoundKind) domain.Severity {
	_ = bound
	if !isFinite(value) || !isFinite(thresholdValue) {
		return domain.SeverityInfo
	}

	diff := math.Abs(value - thresholdValue)
	// A zero bound would divide by zero; fall back to the absolute
	// difference so the tiers still apply.
	percentDiff := diff
	if thresholdValue != 0 {
		percentDiff = diff / thresholdValue * 100
	}

	switch {
	case percentDiff > 50:
		return domain.SeverityCritical
	case percentDiff > 30:
		return domain.SeverityError
	case percentDiff > 10:
		return domain.SeverityWarning
	default:
		return domain.SeverityInfo
	}
}

// ClassifyLogged classifies severity and warns about non-finite inputs.
// Params: logger for the non-finite warning plus Classify arguments.
// Returns: severity tier, info when any input is NaN/Inf.
func ClassifyLogged(logger *slog.Logger, value, thresholdValue float64, bound domain.BoundKind) domain.Severity {
	if !isFinite(value) || !isFinite(thresholdValue) {
		if logger != nil {
			logger.Warn("severity input is not finite",
				"value", value,
				"threshold_value", thresholdValue,
				"bound", string(bound),
			)
		}
		return domain.SeverityInfo
	}
	return Classify(value, thresholdValue, bound)
}

// isFinite reports whether value is a usable finite number.
// Params: candidate float.
// Returns: false for NaN and ±Inf.
func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
