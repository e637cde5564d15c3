package grid

import (
	"fmt"
	"math"
)

// PointType selects which markers attract a dragged time value.
type PointType string

const (
	PointFrame         PointType = "frame"
	PointSecond        PointType = "second"
	PointHalfSecond    PointType = "half-second"
	PointQuarterSecond PointType = "quarter-second"
	PointTenthSecond   PointType = "tenth-second"
	PointCustom        PointType = "custom"
)

// Magnet snaps time values to the nearest marker of its type.
type Magnet struct {
	Type      PointType `yaml:"type"`
	Interval  float64   `yaml:"interval"` // only for PointCustom, seconds
	Strength  float64   `yaml:"strength"` // 0 disables, 1 = widest capture radius
	FrameRate float64   `yaml:"frame_rate"`
}

// ParsePointType validates a point type name from configuration.
func ParsePointType(name string) (PointType, error) {
	switch PointType(name) {
	case PointFrame, PointSecond, PointHalfSecond, PointQuarterSecond, PointTenthSecond, PointCustom:
		return PointType(name), nil
	case "":
		return PointFrame, nil
	}
	return "", fmt.Errorf("unknown magnet point type: %s", name)
}

// Spacing returns the distance between two adjacent markers in seconds.
func (m Magnet) Spacing() float64 {
	switch m.Type {
	case PointSecond:
		return 1
	case PointHalfSecond:
		return 0.5
	case PointQuarterSecond:
		return 0.25
	case PointTenthSecond:
		return 0.1
	case PointCustom:
		if finite(m.Interval) && m.Interval > 0 {
			return m.Interval
		}
		return 0
	default:
		return FrameDuration(m.FrameRate)
	}
}

// Radius is the capture distance: half the spacing scaled by strength.
func (m Magnet) Radius() float64 {
	return Clamp(m.Strength, 0, 1) * m.Spacing() / 2
}

// Snap returns the nearest marker when it lies within the capture radius,
// otherwise t unchanged.
func (m Magnet) Snap(t float64) float64 {
	spacing := m.Spacing()
	if !finite(t) || spacing <= 0 || m.Strength <= 0 {
		return t
	}
	nearest := math.Round(t/spacing) * spacing
	if math.Abs(t-nearest) <= m.Radius() {
		return nearest
	}
	return t
}
