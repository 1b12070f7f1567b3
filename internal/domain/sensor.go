package domain

import (
	"fmt"
	"strings"
)

// SensorType identifies one measured quantity reported by a device.
// Params: closed set of supported sensor kinds.
// Returns: normalized sensor type used across evaluation and storage.
type SensorType string

const (
	// SensorTemperature marks temperature readings in degrees Celsius.
	SensorTemperature SensorType = "temperature"
	// SensorHumidity marks relative humidity readings in percent.
	SensorHumidity SensorType = "humidity"
	// SensorLight marks ambient light readings in lux.
	SensorLight SensorType = "light"
	// SensorPM25 marks PM2.5 particulate readings in µg/m³.
	SensorPM25 SensorType = "pm25"
	// SensorRain marks rain sensor readings.
	SensorRain SensorType = "rain"
)

// sensorTypeOrder keeps deterministic fan-out order for reading payloads.
var sensorTypeOrder = []SensorType{
	SensorTemperature,
	SensorHumidity,
	SensorLight,
	SensorPM25,
	SensorRain,
}

// SensorTypes returns all supported sensor types in deterministic order.
// Params: none.
// Returns: copied sensor type list.
func SensorTypes() []SensorType {
	out := make([]SensorType, len(sensorTypeOrder))
	copy(out, sensorTypeOrder)
	return out
}

// ParseSensorType normalizes and validates one sensor type token.
// Params: raw sensor type string from transport or configuration.
// Returns: canonical sensor type or error for unknown tokens.
func ParseSensorType(raw string) (SensorType, error) {
	candidate := SensorType(strings.ToLower(strings.TrimSpace(raw)))
	switch candidate {
	case SensorTemperature, SensorHumidity, SensorLight, SensorPM25, SensorRain:
		return candidate, nil
	default:
		return "", fmt.Errorf("unsupported sensor type %q", raw)
	}
}

// Valid reports whether sensor type belongs to the supported set.
// Params: none.
// Returns: true for one of the five supported types.
func (t SensorType) Valid() bool {
	_, err := ParseSensorType(string(t))
	return err == nil
}
