// Package nexstar drives Celestron NexStar-family mounts through the hand
// controller's serial command protocol.
//
// Protocol docs at https://www.nexstarsite.com/download/manuals/NexStarCommunicationProtocolV1.2.zip
package nexstar

import (
	"errors"
	"fmt"
	"log"
	"time"
)

// Command op characters.
const (
	opGetRaDec       = 'e'
	opGetAzAlt       = 'z'
	opGotoRaDec      = 'r'
	opGotoAzAlt      = 'b'
	opSync           = 's'
	opGetTracking    = 't'
	opSetTracking    = 'T'
	opGetLocation    = 'w'
	opSetLocation    = 'W'
	opGetTime        = 'h'
	opSetTime        = 'H'
	opGetVersion     = 'V'
	opGetModel       = 'm'
	opEcho           = 'K'
	opAlignment      = 'J'
	opGotoInProgress = 'L'
	opCancelGoto     = 'M'
)

// TrackingMode is the mount's sidereal tracking setting.
type TrackingMode uint8

const (
	TrackingOff TrackingMode = iota
	TrackingAltAz
	TrackingEQNorth
	TrackingEQSouth
)

func (t TrackingMode) String() string {
	switch t {
	case TrackingOff:
		return "off"
	case TrackingAltAz:
		return "alt-az"
	case TrackingEQNorth:
		return "eq-north"
	case TrackingEQSouth:
		return "eq-south"
	}
	return fmt.Sprintf("TrackingMode(%d)", uint8(t))
}

var modelNames = map[int]string{
	1:  "GPS Series",
	3:  "i-Series",
	4:  "i-Series SE",
	5:  "CGE",
	6:  "Advanced GT",
	7:  "SLT",
	9:  "CPC",
	10: "GT",
	11: "4/5 SE",
	12: "6/8 SE",
	13: "CGE Pro",
	14: "CGEM DX",
	15: "LCM",
	16: "Sky Prodigy",
	17: "CPC Deluxe",
	18: "GT 16",
	19: "StarSeeker",
	20: "Advanced VX",
	21: "Cosmos",
	22: "Evolution",
	23: "CGX",
	24: "CGXL",
	25: "Astrofi",
	26: "SkyWatcher",
}

// ModelName returns the product line for a model number.
func ModelName(model int) string {
	if name, ok := modelNames[model]; ok {
		return name
	}
	return fmt.Sprintf("unknown model %d", model)
}

// Mount is a NexStar hand controller. It exclusively owns its transport and
// is not safe for concurrent use; callers needing shared access must
// serialize through one owner.
//
// The Mount keeps no motion state. Goto progress and slew state live on the
// mount and are re-read on every query.
type Mount struct {
	p           *Protocol
	transformer Transformer
}

type Option func(*Mount)

// WithTransformer injects the frame conversion used by RaDecFromAzAlt and
// GotoRaDecAsAzAlt.
func WithTransformer(t Transformer) Option {
	return func(m *Mount) { m.transformer = t }
}

// WithLogger traces every command and response to l.
func WithLogger(l *log.Logger) Option {
	return func(m *Mount) { m.p.Logger = l }
}

func New(t Transport, opts ...Option) *Mount {
	m := &Mount{p: NewProtocol(t)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mount) Close() error {
	return m.p.Close()
}

func (m *Mount) ack(cmd ...byte) error {
	_, err := m.p.SendAndValidate(cmd, 1, ExpectAck)
	return err
}

// value sends cmd and returns the n byte payload preceding the terminator.
func (m *Mount) value(n int, cmd ...byte) ([]byte, error) {
	return m.p.SendAndValidate(cmd, n+1, ExpectTerminated)
}

// expectAnglePair validates an "XXXXXXXX,YYYYYYYY#" position response.
func expectAnglePair(resp []byte) ([]byte, error) {
	payload, err := ExpectTerminated(resp)
	if err != nil {
		return nil, err
	}
	if len(payload) != 17 || payload[8] != ',' {
		return nil, errors.New("malformed position")
	}
	for _, part := range [][]byte{payload[:8], payload[9:]} {
		if _, err := DecodeAngle(string(part)); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (m *Mount) position(op byte) (float64, float64, error) {
	payload, err := m.p.SendAndValidate([]byte{op}, 18, expectAnglePair)
	if err != nil {
		return 0, 0, err
	}
	a, _ := DecodeAngle(string(payload[:8]))
	b, _ := DecodeAngle(string(payload[9:]))
	return a, b, nil
}

// RaDec returns the equatorial position in degrees.
func (m *Mount) RaDec() (ra, dec float64, err error) {
	return m.position(opGetRaDec)
}

// AzAlt returns the horizontal position in degrees.
func (m *Mount) AzAlt() (az, alt float64, err error) {
	return m.position(opGetAzAlt)
}

func (m *Mount) goTo(op byte, a, b float64) error {
	cmd := append([]byte{op}, EncodeAngle(a)...)
	cmd = append(cmd, ',')
	cmd = append(cmd, EncodeAngle(b)...)
	return m.ack(cmd...)
}

// GotoRaDec starts a goto to an equatorial target. It returns once the mount
// has accepted the command; poll GotoInProgress for completion.
func (m *Mount) GotoRaDec(ra, dec float64) error {
	return m.goTo(opGotoRaDec, ra, dec)
}

// GotoAzAlt starts a goto to a horizontal target. It returns once the mount
// has accepted the command; poll GotoInProgress for completion.
func (m *Mount) GotoAzAlt(az, alt float64) error {
	return m.goTo(opGotoAzAlt, az, alt)
}

// Sync tells the mount it is pointing at ra, dec.
func (m *Mount) Sync(ra, dec float64) error {
	return m.goTo(opSync, ra, dec)
}

// MoveAltBy issues a goto delta degrees above the current altitude. The read
// and the goto are separate commands; motion in between is not detected.
func (m *Mount) MoveAltBy(delta float64) error {
	az, alt, err := m.AzAlt()
	if err != nil {
		return err
	}
	return m.GotoAzAlt(az, alt+delta)
}

// MoveAzBy issues a goto delta degrees clockwise of the current azimuth. The
// read and the goto are separate commands; motion in between is not detected.
func (m *Mount) MoveAzBy(delta float64) error {
	az, alt, err := m.AzAlt()
	if err != nil {
		return err
	}
	return m.GotoAzAlt(az+delta, alt)
}

func (m *Mount) TrackingMode() (TrackingMode, error) {
	v, err := m.value(1, opGetTracking)
	if err != nil {
		return 0, err
	}
	return TrackingMode(v[0]), nil
}

func (m *Mount) SetTrackingMode(mode TrackingMode) error {
	if err := checkRange("tracking mode", float64(mode), 0, float64(TrackingEQSouth)); err != nil {
		return err
	}
	return m.ack(opSetTracking, byte(mode))
}

// SlewFixed moves both axes at one of the hand controller's preset rates,
// -9 to 9. Zero stops the axis. Both rates are checked before either axis
// is commanded.
func (m *Mount) SlewFixed(azRate, elRate float64) error {
	if err := checkRange("azimuth fixed slew rate", azRate, -maxFixedRate, maxFixedRate); err != nil {
		return err
	}
	if err := checkRange("elevation fixed slew rate", elRate, -maxFixedRate, maxFixedRate); err != nil {
		return err
	}
	if err := m.ack(fixedSlewFrame(AxisAzimuth, azRate)...); err != nil {
		return err
	}
	return m.ack(fixedSlewFrame(AxisElevation, elRate)...)
}

// SlewVar moves both axes at a rate in arcseconds per second. Rates are
// truncated to whole units. Zero stops the axis.
func (m *Mount) SlewVar(azRate, elRate float64) error {
	az, err := variableSlewFrame(AxisAzimuth, azRate)
	if err != nil {
		return err
	}
	el, err := variableSlewFrame(AxisElevation, elRate)
	if err != nil {
		return err
	}
	if err := m.ack(az...); err != nil {
		return err
	}
	return m.ack(el...)
}

// StopSlew stops manual motion on both axes.
func (m *Mount) StopSlew() error {
	return m.SlewFixed(0, 0)
}

func (m *Mount) Location() (Location, error) {
	v, err := m.value(8, opGetLocation)
	if err != nil {
		return Location{}, err
	}
	return UnpackLocation(v)
}

func (m *Mount) SetLocation(l Location) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return m.ack(append([]byte{opSetLocation}, PackLocation(l)...)...)
}

// MountTime returns the hand controller's clock fields.
func (m *Mount) MountTime() (MountTime, error) {
	v, err := m.value(8, opGetTime)
	if err != nil {
		return MountTime{}, err
	}
	return UnpackMountTime(v)
}

// TimeInitializer returns the mount clock as YYYY-MM-DDTHH:MM:SS.
func (m *Mount) TimeInitializer() (string, error) {
	mt, err := m.MountTime()
	if err != nil {
		return "", err
	}
	return mt.Initializer(), nil
}

func (m *Mount) SetMountTime(mt MountTime) error {
	if err := mt.Validate(); err != nil {
		return err
	}
	return m.ack(append([]byte{opSetTime}, mt.Pack()...)...)
}

// SetTime sets the hand controller clock to t, in t's time zone.
func (m *Mount) SetTime(t time.Time) error {
	return m.SetMountTime(MountTimeOf(t))
}

// Version returns the hand controller firmware version, e.g. 4.1.
func (m *Mount) Version() (float64, error) {
	v, err := m.value(2, opGetVersion)
	if err != nil {
		return 0, err
	}
	return float64(v[0]) + float64(v[1])/10, nil
}

func (m *Mount) Model() (int, error) {
	v, err := m.value(1, opGetModel)
	if err != nil {
		return 0, err
	}
	return int(v[0]), nil
}

// Echo sends c to the hand controller and returns what it echoed back.
func (m *Mount) Echo(c byte) (byte, error) {
	v, err := m.value(1, opEcho, c)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

// Display echoes msg byte by byte and checks every echo.
func (m *Mount) Display(msg string) error {
	for i := 0; i < len(msg); i++ {
		got, err := m.Echo(msg[i])
		if err != nil {
			return err
		}
		if got != msg[i] {
			return &ProtocolError{Command: opEcho, Response: []byte{got, Terminator}, Reason: fmt.Sprintf("echoed %q for %q", got, msg[i])}
		}
	}
	return nil
}

// flag decodes a boolean reply sent either as a raw 0/1 or as ASCII '0'/'1'.
func (m *Mount) flag(op byte) (bool, error) {
	payload, err := m.p.SendAndValidate([]byte{op}, 2, func(resp []byte) ([]byte, error) {
		payload, err := ExpectTerminated(resp)
		if err != nil {
			return nil, err
		}
		switch payload[0] {
		case 0, 1, '0', '1':
			return payload, nil
		}
		return nil, errors.New("not a boolean")
	})
	if err != nil {
		return false, err
	}
	return payload[0] == 1 || payload[0] == '1', nil
}

func (m *Mount) AlignmentComplete() (bool, error) {
	return m.flag(opAlignment)
}

// GotoInProgress asks the mount whether a goto is still running.
func (m *Mount) GotoInProgress() (bool, error) {
	return m.flag(opGotoInProgress)
}

// CancelGoto stops a running goto. It is a protocol command, not a way to
// interrupt a blocked read.
func (m *Mount) CancelGoto() error {
	return m.ack(opCancelGoto)
}

// CancelCurrentOperation cancels whatever the mount is doing.
func (m *Mount) CancelCurrentOperation() error {
	return m.CancelGoto()
}
