package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"sync"
	"time"

	"github.com/w1xm/nexstar_interface/nexstar"
	"golang.org/x/sync/errgroup"
)

// Status is the simulated mount state. The simulator keeps the horizontal and
// equatorial frames independent; it does not convert between them.
type Status struct {
	Az, Alt float64
	RA, Dec float64

	// Goto is "azalt", "radec" or empty when idle.
	Goto                string
	TargetAz, TargetAlt float64
	TargetRA, TargetDec float64
	// AzRate and AltRate are in degrees/second, set by slew commands.
	AzRate, AltRate float64

	Tracking     nexstar.TrackingMode
	Location     nexstar.Location
	Clock        nexstar.MountTime
	Aligned      bool
	Model        int
	VersionMajor byte
	VersionMinor byte

	Commands    int
	LastCommand []byte
}

// Simulator speaks the hand controller protocol on one end of a pipe.
type Simulator struct {
	conn io.ReadWriteCloser
	// GotoRate is the goto speed in degrees/second.
	GotoRate float64

	mu     sync.Mutex
	status Status
}

func New() (*Simulator, net.Conn) {
	a, b := net.Pipe()
	return &Simulator{
		conn:     a,
		GotoRate: maxVel,
		status: Status{
			Aligned:      true,
			Model:        7,
			VersionMajor: 4,
			VersionMinor: 1,
			Clock:        nexstar.MountTimeOf(time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)),
		},
	}, b
}

const (
	// Maximum goto velocity in degrees/second
	maxVel = 4
	// Discrete simulation step size
	stepSize = 25 * time.Millisecond
	// Distance at which a goto is considered complete, in degrees
	arrived = 1e-6
)

// Fixed slew presets in degrees/second, indexed by rate.
var fixedRates = [10]float64{0, 0.008, 0.017, 0.033, 0.067, 0.133, 0.5, 1, 2, 4}

// payloadLen is the number of bytes following each op character.
var payloadLen = map[byte]int{
	'e': 0, 'z': 0,
	'r': 17, 'b': 17, 's': 17,
	't': 0, 'T': 1,
	'P': 7,
	'w': 0, 'W': 8,
	'h': 0, 'H': 8,
	'V': 0, 'm': 0,
	'K': 1,
	'J': 0, 'L': 0, 'M': 0,
}

// Status returns a snapshot of the simulated mount.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// errHangup ends Run when the client closes its end of the pipe.
var errHangup = errors.New("client hung up")

// Run serves commands until ctx is done or the client closes its end of the
// pipe. A client hangup is not an error.
func (s *Simulator) Run(ctx context.Context) error {
	defer s.conn.Close()
	t := time.NewTicker(stepSize)
	defer t.Stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		// Unblock the reader.
		return s.conn.Close()
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.step(stepSize.Seconds())
		}
	})
	g.Go(s.reader)
	if err := g.Wait(); !errors.Is(err, errHangup) {
		return err
	}
	return nil
}

func (s *Simulator) reader() error {
	op := make([]byte, 1)
	for {
		if _, err := io.ReadFull(s.conn, op); err != nil {
			if err == io.EOF || err == io.ErrClosedPipe {
				return errHangup
			}
			return fmt.Errorf("reading pipe: %w", err)
		}
		n, ok := payloadLen[op[0]]
		if !ok {
			log.Printf("sim: unknown command %q", op[0])
			continue
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			return fmt.Errorf("reading %q payload: %w", op[0], err)
		}
		resp, err := s.handle(op[0], payload)
		if err != nil {
			log.Printf("sim: %q %q: %v", op[0], payload, err)
			continue
		}
		if _, err := s.conn.Write(resp); err != nil {
			return err
		}
	}
}

func parsePair(payload []byte) (float64, float64, error) {
	if len(payload) != 17 || payload[8] != ',' {
		return 0, 0, fmt.Errorf("malformed pair %q", payload)
	}
	a, err := nexstar.DecodeAngle(string(payload[:8]))
	if err != nil {
		return 0, 0, err
	}
	b, err := nexstar.DecodeAngle(string(payload[9:]))
	return a, b, err
}

func pair(a, b float64) []byte {
	return []byte(nexstar.EncodeAngle(a) + "," + nexstar.EncodeAngle(b) + "#")
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (s *Simulator) handle(op byte, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Commands++
	s.status.LastCommand = append([]byte{op}, payload...)
	ack := []byte{nexstar.Terminator}
	switch op {
	case 'e':
		return pair(s.status.RA, s.status.Dec), nil
	case 'z':
		return pair(s.status.Az, s.status.Alt), nil
	case 'r', 'b', 's':
		a, b, err := parsePair(payload)
		if err != nil {
			return nil, err
		}
		switch op {
		case 'r':
			s.status.Goto = "radec"
			s.status.TargetRA, s.status.TargetDec = a, b
		case 'b':
			s.status.Goto = "azalt"
			s.status.TargetAz, s.status.TargetAlt = a, b
		case 's':
			s.status.RA, s.status.Dec = a, b
		}
		return ack, nil
	case 't':
		return []byte{byte(s.status.Tracking), nexstar.Terminator}, nil
	case 'T':
		s.status.Tracking = nexstar.TrackingMode(payload[0])
		return ack, nil
	case 'P':
		return ack, s.slew(payload)
	case 'w':
		return append(nexstar.PackLocation(s.status.Location), nexstar.Terminator), nil
	case 'W':
		loc, err := nexstar.UnpackLocation(payload)
		if err != nil {
			return nil, err
		}
		s.status.Location = loc
		return ack, nil
	case 'h':
		return append(s.status.Clock.Pack(), nexstar.Terminator), nil
	case 'H':
		mt, err := nexstar.UnpackMountTime(payload)
		if err != nil {
			return nil, err
		}
		s.status.Clock = mt
		return ack, nil
	case 'V':
		return []byte{s.status.VersionMajor, s.status.VersionMinor, nexstar.Terminator}, nil
	case 'm':
		return []byte{byte(s.status.Model), nexstar.Terminator}, nil
	case 'K':
		return []byte{payload[0], nexstar.Terminator}, nil
	case 'J':
		return []byte{boolByte(s.status.Aligned), nexstar.Terminator}, nil
	case 'L':
		if s.status.Goto != "" {
			return []byte{'1', nexstar.Terminator}, nil
		}
		return []byte{'0', nexstar.Terminator}, nil
	case 'M':
		s.status.Goto = ""
		return ack, nil
	}
	return nil, fmt.Errorf("unhandled command")
}

// slew applies a passthrough slew frame (without the leading 'P').
func (s *Simulator) slew(frame []byte) error {
	var rate float64
	switch frame[0] {
	case 2:
		if frame[3] > 9 {
			return fmt.Errorf("fixed rate %d", frame[3])
		}
		rate = fixedRates[frame[3]]
		if frame[2] == 37 {
			rate = -rate
		}
	case 3:
		// Quarter arcseconds per second.
		rate = float64(int(frame[3])*256+int(frame[4])) / 4 / 3600
		if frame[2] == 7 {
			rate = -rate
		}
	default:
		return fmt.Errorf("unknown passthrough %d", frame[0])
	}
	switch nexstar.Axis(frame[1]) {
	case nexstar.AxisAzimuth:
		s.status.AzRate = rate
	case nexstar.AxisElevation:
		s.status.AltRate = rate
	default:
		return fmt.Errorf("unknown axis %d", frame[1])
	}
	return nil
}

// approach moves s toward t by at most max degrees along the shorter way
// around the circle, returning the new angle in [0, 360).
func approach(s, t, max float64) float64 {
	move := math.Remainder(t-s, 360)
	if math.Abs(move) > max {
		move = math.Copysign(max, move)
	}
	return wrap(s + move)
}

func wrap(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}

func distance(a, b float64) float64 {
	return math.Abs(math.Remainder(a-b, 360))
}

func (s *Simulator) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := s.GotoRate * dt
	switch s.status.Goto {
	case "azalt":
		s.status.Az = approach(s.status.Az, s.status.TargetAz, max)
		s.status.Alt = approach(s.status.Alt, s.status.TargetAlt, max)
		if distance(s.status.Az, s.status.TargetAz) < arrived && distance(s.status.Alt, s.status.TargetAlt) < arrived {
			s.status.Goto = ""
		}
	case "radec":
		s.status.RA = approach(s.status.RA, s.status.TargetRA, max)
		s.status.Dec = approach(s.status.Dec, s.status.TargetDec, max)
		if distance(s.status.RA, s.status.TargetRA) < arrived && distance(s.status.Dec, s.status.TargetDec) < arrived {
			s.status.Goto = ""
		}
	default:
		s.status.Az = wrap(s.status.Az + s.status.AzRate*dt)
		s.status.Alt = wrap(s.status.Alt + s.status.AltRate*dt)
	}
}
