package engine

import (
	"fmt"
	"strconv"

	"sensoralert/internal/domain"
)

// sensorDisplayNames maps sensor types onto deployment-locale names.
var sensorDisplayNames = map[domain.SensorType]string{
	domain.SensorTemperature: "Temperature",
	domain.SensorHumidity:    "Humidity",
	domain.SensorLight:       "Light",
	domain.SensorPM25:        "PM2.5",
	domain.SensorRain:        "Rain",
}

// SensorDisplayName returns the human-readable sensor name.
// Params: sensor type.
// Returns: localized display name, raw type string for unknown types.
func SensorDisplayName(sensorType domain.SensorType) string {
	if name, ok := sensorDisplayNames[sensorType]; ok {
		return name
	}
	return string(sensorType)
}

// ViolationMessage renders the human-readable alert message.
// Params: observation and its violated decision.
// Returns: "<sensor> of <device> <above|below> configured limit! ..." text.
func ViolationMessage(observation domain.Observation, decision domain.ViolationDecision) string {
	comparison := "below"
	if decision.Bound == domain.BoundMax {
		comparison = "above"
	}
	return fmt.Sprintf(
		"%s of %s %s configured limit! current: %s, limit: %s",
		SensorDisplayName(observation.SensorType),
		observation.DeviceID,
		comparison,
		formatValue(observation.Value),
		formatValue(decision.ThresholdValue),
	)
}

// formatValue renders one sensor value without trailing zeros.
// Params: numeric value.
// Returns: compact decimal representation.
func formatValue(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
