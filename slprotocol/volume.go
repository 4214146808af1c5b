package slprotocol

import (
	"fmt"
	"math"
	"strconv"
)

// VolumeStep is the increment used by VolumeUp and VolumeDown.
const VolumeStep = 0.05

// The device reports volume in thousandths of its range, from -1000 (minimum)
// to 0 (maximum).
const volumeScale = 1000

// EncodeVolume converts a normalized level in [0.0, 1.0] to the device's
// signed representation.
func EncodeVolume(level float64) (string, error) {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return "", fmt.Errorf("%w: %v", ErrVolumeRange, level)
	}
	raw := int(math.Round(level*volumeScale)) - volumeScale
	return strconv.Itoa(raw), nil
}

// DecodeVolume converts the device's representation to a normalized level.
func DecodeVolume(raw string) (float64, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return float64(n+volumeScale) / volumeScale, true
}

// StepVolume adds delta to level and clamps the result to [0.0, 1.0].
func StepVolume(level, delta float64) float64 {
	return math.Max(0, math.Min(1, level+delta))
}
