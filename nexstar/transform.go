package nexstar

import "time"

// Transformer converts between the horizontal and equatorial frames for an
// observer. Implementations wrap an astronomy library; this package never
// does the spherical trigonometry itself.
type Transformer interface {
	HorizontalToEquatorial(az, alt float64, loc Location, t time.Time) (ra, dec float64, err error)
	EquatorialToHorizontal(ra, dec float64, loc Location, t time.Time) (az, alt float64, err error)
}

// Observer returns the location and clock stored in the hand controller.
func (m *Mount) Observer() (Location, time.Time, error) {
	loc, err := m.Location()
	if err != nil {
		return Location{}, time.Time{}, err
	}
	mt, err := m.MountTime()
	if err != nil {
		return Location{}, time.Time{}, err
	}
	return loc, mt.Time(), nil
}

// RaDecFromAzAlt reads the horizontal position and converts it with the
// configured Transformer, using the mount's own location and clock.
func (m *Mount) RaDecFromAzAlt() (ra, dec float64, err error) {
	if m.transformer == nil {
		return 0, 0, ErrNoTransformer
	}
	az, alt, err := m.AzAlt()
	if err != nil {
		return 0, 0, err
	}
	loc, t, err := m.Observer()
	if err != nil {
		return 0, 0, err
	}
	return m.transformer.HorizontalToEquatorial(az, alt, loc, t)
}

// GotoRaDecAsAzAlt converts an equatorial target to the horizontal frame and
// issues a horizontal goto.
func (m *Mount) GotoRaDecAsAzAlt(ra, dec float64) error {
	if m.transformer == nil {
		return ErrNoTransformer
	}
	loc, t, err := m.Observer()
	if err != nil {
		return err
	}
	az, alt, err := m.transformer.EquatorialToHorizontal(ra, dec, loc, t)
	if err != nil {
		return err
	}
	return m.GotoAzAlt(az, alt)
}
