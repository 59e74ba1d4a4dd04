package nexstar

import (
	"fmt"
	"math"
	"strconv"
)

// Angles travel as the fraction of a full revolution, scaled to 2^32 steps
// and written as eight uppercase hex digits.
const revolution = 1 << 32

// EncodeAngle returns the eight digit hex form of degrees. The codec does not
// clamp; values outside [0, 360) wrap modulo a full revolution.
func EncodeAngle(degrees float64) string {
	steps := int64(math.Round(degrees / 360 * revolution))
	return fmt.Sprintf("%08X", uint32(steps))
}

// DecodeAngle parses an eight digit hex angle into degrees in [0, 360).
func DecodeAngle(hex string) (float64, error) {
	if len(hex) != 8 {
		return 0, fmt.Errorf("angle %q: want 8 hex digits", hex)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("angle %q: %w", hex, err)
	}
	return float64(v) / revolution * 360, nil
}

// FormatDMS renders degrees as whole degrees, minutes and seconds, truncating
// each component, e.g. 300.606 is 300°36'21".
func FormatDMS(degrees float64) string {
	sign := ""
	if degrees < 0 {
		sign = "-"
		degrees = -degrees
	}
	d := math.Trunc(degrees)
	minutes := (degrees - d) * 60
	m := math.Trunc(minutes)
	s := math.Trunc((minutes - m) * 60)
	return fmt.Sprintf("%s%d°%d'%d\"", sign, int(d), int(m), int(s))
}

// Axis selects which motor a slew frame addresses.
type Axis byte

const (
	// AxisAzimuth drives azimuth (or RA on an equatorial wedge).
	AxisAzimuth Axis = 16
	// AxisElevation drives altitude (or Dec).
	AxisElevation Axis = 17
)

func (a Axis) String() string {
	switch a {
	case AxisAzimuth:
		return "azimuth"
	case AxisElevation:
		return "elevation"
	}
	return fmt.Sprintf("axis(%d)", byte(a))
}

// Passthrough sub-commands and their sign bytes. The mount takes the rate
// magnitude and the direction as separate bytes, never a signed integer.
const (
	opPassthrough = 'P'

	slewVariable = 3
	slewFixed    = 2

	variablePositive = 6
	variableNegative = 7
	fixedPositive    = 36
	fixedNegative    = 37

	maxFixedRate    = 9
	maxVariableRate = 0xFFFF / 4
)

// fixedSlewFrame builds the eight byte fixed-rate slew command. Rate must
// already be validated to [-9, 9].
func fixedSlewFrame(axis Axis, rate float64) []byte {
	sign := byte(fixedPositive)
	if rate < 0 {
		sign = fixedNegative
	}
	return []byte{opPassthrough, slewFixed, byte(axis), sign, byte(math.Abs(rate)), 0, 0, 0}
}

// variableSlewFrame builds the eight byte variable-rate slew command. Rate is
// in arcseconds per second; the magnitude is truncated to a whole unit and
// sent as four times that value split into high and low bytes.
func variableSlewFrame(axis Axis, rate float64) ([]byte, error) {
	if err := checkRange(fmt.Sprintf("%v variable slew rate", axis), rate, -maxVariableRate, maxVariableRate); err != nil {
		return nil, err
	}
	sign := byte(variablePositive)
	if rate < 0 {
		sign = variableNegative
	}
	v := int(math.Abs(rate)) * 4
	return []byte{opPassthrough, slewVariable, byte(axis), sign, byte(v / 256), byte(v % 256), 0, 0}, nil
}
