package rotator

// Rotator is a two-axis mount that can be pointed and driven.
type Rotator interface {
	Stop() error
	// SetPosition starts a goto to the given azimuth and elevation in degrees.
	SetPosition(az, el float64) error
	// SetAzimuthVelocity and SetElevationVelocity drive one axis in
	// degrees/second. The other axis keeps its last commanded rate.
	SetAzimuthVelocity(rate float64) error
	SetElevationVelocity(rate float64) error
}

type StatusCallback func(status Status)

type Status interface {
	AzimuthPosition() float64
	ElevationPosition() float64

	Clone() Status
}

// Equatorial is implemented by mounts that accept sky coordinates directly.
type Equatorial interface {
	GotoRaDec(ra, dec float64) error
	Sync(ra, dec float64) error
}
