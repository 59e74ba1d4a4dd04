package nexstar

import (
	"fmt"
	"math"
	"time"
)

// Location is the observer's geographic position in decimal degrees.
// Positive latitude is north, positive longitude is east.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Validate reports whether the location fits the mount's degree ranges.
func (l Location) Validate() error {
	if err := checkRange("latitude", l.Latitude, -90, 90); err != nil {
		return err
	}
	return checkRange("longitude", l.Longitude, -180, 180)
}

func (l Location) String() string {
	return fmt.Sprintf("%s, %s", FormatDMS(l.Latitude), FormatDMS(l.Longitude))
}

// packDMS splits degrees into degree, minute, second and sign bytes, rounded
// to the nearest arcsecond. A zero sign byte means north or east.
func packDMS(degrees float64) [4]byte {
	var sign byte
	if degrees < 0 {
		sign = 1
		degrees = -degrees
	}
	total := int(math.Round(degrees * 3600))
	d := total / 3600
	if d > 255 {
		d = 255
	}
	return [4]byte{byte(d), byte(total / 60 % 60), byte(total % 60), sign}
}

func unpackDMS(b []byte) float64 {
	degrees := float64(b[0]) + float64(b[1])/60 + float64(b[2])/3600
	if b[3] != 0 {
		degrees = -degrees
	}
	return degrees
}

// PackLocation returns the eight byte latitude, longitude form used by the
// set location command.
func PackLocation(l Location) []byte {
	lat, lon := packDMS(l.Latitude), packDMS(l.Longitude)
	return append(lat[:], lon[:]...)
}

// UnpackLocation decodes a get location response. A ninth terminator byte,
// if present, is ignored.
func UnpackLocation(b []byte) (Location, error) {
	if len(b) != 8 && len(b) != 9 {
		return Location{}, fmt.Errorf("location: got %d bytes, want 8", len(b))
	}
	return Location{
		Latitude:  unpackDMS(b[0:4]),
		Longitude: unpackDMS(b[4:8]),
	}, nil
}

// MountTime is the hand controller's clock. Year is the full year; the wire
// only carries the year within the 21st century.
type MountTime struct {
	Hour, Minute, Second int
	Month, Day, Year     int
	// UTCOffset is the standard time zone offset in hours, negative west of
	// Greenwich.
	UTCOffset int
	DST       bool
}

// MountTimeOf returns the mount representation of t in t's location.
func MountTimeOf(t time.Time) MountTime {
	_, offset := t.Zone()
	dst := t.IsDST()
	hours := offset / 3600
	if dst {
		hours--
	}
	return MountTime{
		Hour:      t.Hour(),
		Minute:    t.Minute(),
		Second:    t.Second(),
		Month:     int(t.Month()),
		Day:       t.Day(),
		Year:      t.Year(),
		UTCOffset: hours,
		DST:       dst,
	}
}

// Validate reports whether every field fits its wire byte.
func (mt MountTime) Validate() error {
	for _, f := range []struct {
		name     string
		v        int
		min, max int
	}{
		{"hour", mt.Hour, 0, 23},
		{"minute", mt.Minute, 0, 59},
		{"second", mt.Second, 0, 59},
		{"month", mt.Month, 1, 12},
		{"day", mt.Day, 1, 31},
		{"year", mt.Year, 2000, 2099},
		{"utc offset", mt.UTCOffset, -12, 14},
	} {
		if err := checkRange(f.name, float64(f.v), float64(f.min), float64(f.max)); err != nil {
			return err
		}
	}
	return nil
}

// Pack returns the eight byte form used by the set time command.
func (mt MountTime) Pack() []byte {
	var dst byte
	if mt.DST {
		dst = 1
	}
	return []byte{
		byte(mt.Hour), byte(mt.Minute), byte(mt.Second),
		byte(mt.Month), byte(mt.Day), byte(mt.Year - 2000),
		byte(int8(mt.UTCOffset)), dst,
	}
}

// UnpackMountTime decodes a get time response. A ninth terminator byte, if
// present, is ignored.
func UnpackMountTime(b []byte) (MountTime, error) {
	if len(b) != 8 && len(b) != 9 {
		return MountTime{}, fmt.Errorf("time: got %d bytes, want 8", len(b))
	}
	return MountTime{
		Hour:      int(b[0]),
		Minute:    int(b[1]),
		Second:    int(b[2]),
		Month:     int(b[3]),
		Day:       int(b[4]),
		Year:      2000 + int(b[5]),
		UTCOffset: int(int8(b[6])),
		DST:       b[7] != 0,
	}, nil
}

// Initializer renders the time as YYYY-MM-DDTHH:MM:SS.
func (mt MountTime) Initializer() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", mt.Year, mt.Month, mt.Day, mt.Hour, mt.Minute, mt.Second)
}

// Time converts to a time.Time in a fixed zone matching the mount's offset.
func (mt MountTime) Time() time.Time {
	offset := mt.UTCOffset
	if mt.DST {
		offset++
	}
	zone := time.FixedZone(fmt.Sprintf("UTC%+d", offset), offset*3600)
	return time.Date(mt.Year, time.Month(mt.Month), mt.Day, mt.Hour, mt.Minute, mt.Second, 0, zone)
}
