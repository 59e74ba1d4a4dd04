// Package monitor owns a connection to one NexStar mount. It reconnects when
// the link drops, polls the mount for status, and serializes commands from
// any number of callers onto the single serial channel.
package monitor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/w1xm/nexstar_interface/nexstar"
	"github.com/w1xm/nexstar_interface/rotator"
)

// ErrNotConnected is returned by Do while no mount link is open.
var ErrNotConnected = errors.New("mount not connected")

// DialFunc opens the link to the mount.
type DialFunc func(ctx context.Context) (nexstar.Transport, error)

type Status struct {
	Connected bool
	// Error is the last poll failure, cleared by a successful poll.
	Error string `json:",omitempty"`
	Time  time.Time

	// Az, Alt, RA and Dec are in degrees.
	Az, Alt        float64
	RA, Dec        float64
	GotoInProgress bool
	TrackingMode   nexstar.TrackingMode
	Tracking       string

	// AzRate and AltRate are the last commanded slew rates in degrees/second.
	AzRate, AltRate float64
}

func (s Status) Clone() rotator.Status {
	return s
}

func (s Status) AzimuthPosition() float64 {
	return s.Az
}

func (s Status) ElevationPosition() float64 {
	return s.Alt
}

type Config struct {
	Dial DialFunc
	// PollInterval defaults to one second.
	PollInterval time.Duration
	// ReconnectDelay is the pause before each dial attempt. Defaults to one second.
	ReconnectDelay time.Duration
	MountOptions   []nexstar.Option
	StatusCallback rotator.StatusCallback
}

// Monitor implements rotator.Rotator on top of a NexStar mount.
type Monitor struct {
	c Config

	mu sync.Mutex
	m  *nexstar.Mount
	// Commanded manual rates in degrees/second.
	azRate, altRate float64

	statusMu sync.Mutex
	status   Status
}

// Connect starts the reconnect loop in the background. It runs until ctx is
// canceled.
func Connect(ctx context.Context, c Config) *Monitor {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = time.Second
	}
	if c.StatusCallback == nil {
		c.StatusCallback = func(rotator.Status) {}
	}
	mon := &Monitor{c: c}
	go mon.reconnectLoop(ctx)
	return mon
}

func (mon *Monitor) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(mon.c.ReconnectDelay):
		}
		t, err := mon.c.Dial(ctx)
		if err != nil {
			log.Printf("opening mount: %v", err)
			dialErrors.Inc()
			continue
		}
		log.Print("opened mount")
		m := nexstar.New(t, mon.c.MountOptions...)
		mon.mu.Lock()
		mon.m = m
		mon.azRate, mon.altRate = 0, 0
		mon.mu.Unlock()
		connected.Set(1)

		err = mon.watch(ctx)
		log.Printf("mount link closed: %v", err)

		mon.mu.Lock()
		mon.m = nil
		mon.mu.Unlock()
		connected.Set(0)
		m.Close()
		mon.update(func(s *Status) {
			s.Connected = false
			if err != nil && ctx.Err() == nil {
				s.Error = err.Error()
			}
		})
	}
}

// watch polls until the context is canceled, the link fails or the mount
// sends a reply we cannot parse.
func (mon *Monitor) watch(ctx context.Context) error {
	t := time.NewTicker(mon.c.PollInterval)
	defer t.Stop()
	for {
		if err := mon.Poll(); err != nil {
			var (
				terr *nexstar.TransportError
				perr *nexstar.ProtocolError
			)
			// A malformed reply leaves the stream out of step with our
			// requests, so drop the link and start clean.
			if errors.As(err, &terr) || errors.As(err, &perr) {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Poll reads the mount's position and state once and publishes the result.
func (mon *Monitor) Poll() error {
	var next Status
	start := time.Now()
	err := mon.Do("poll", func(m *nexstar.Mount) error {
		var err error
		if next.Az, next.Alt, err = m.AzAlt(); err != nil {
			return err
		}
		if next.RA, next.Dec, err = m.RaDec(); err != nil {
			return err
		}
		if next.GotoInProgress, err = m.GotoInProgress(); err != nil {
			return err
		}
		next.TrackingMode, err = m.TrackingMode()
		return err
	})
	pollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		pollErrors.WithLabelValues(errorKind(err)).Inc()
		mon.update(func(s *Status) {
			s.Connected = !errors.Is(err, ErrNotConnected)
			s.Error = err.Error()
			s.Time = start
		})
		return err
	}
	mon.mu.Lock()
	next.AzRate, next.AltRate = mon.azRate, mon.altRate
	mon.mu.Unlock()
	next.Connected = true
	next.Time = start
	next.Tracking = next.TrackingMode.String()
	mon.update(func(s *Status) { *s = next })
	return nil
}

func (mon *Monitor) update(f func(s *Status)) {
	mon.statusMu.Lock()
	f(&mon.status)
	status := mon.status
	mon.statusMu.Unlock()
	mon.c.StatusCallback(status)
}

// Status returns the most recently published status.
func (mon *Monitor) Status() Status {
	mon.statusMu.Lock()
	defer mon.statusMu.Unlock()
	return mon.status
}

// Do runs fn with exclusive access to the mount. op labels the command in
// metrics.
func (mon *Monitor) Do(op string, fn func(m *nexstar.Mount) error) error {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if mon.m == nil {
		return ErrNotConnected
	}
	err := fn(mon.m)
	commands.WithLabelValues(op, errorKind(err)).Inc()
	return err
}

func errorKind(err error) string {
	var (
		terr *nexstar.TransportError
		perr *nexstar.ProtocolError
		rerr *nexstar.RangeError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, nexstar.ErrTimeout):
		return "timeout"
	case errors.As(err, &terr):
		return "transport"
	case errors.As(err, &perr):
		return "protocol"
	case errors.As(err, &rerr):
		return "range"
	}
	return "other"
}

func (mon *Monitor) Stop() error {
	return mon.Do("stop", func(m *nexstar.Mount) error {
		if err := m.CancelGoto(); err != nil {
			return err
		}
		mon.azRate, mon.altRate = 0, 0
		return m.StopSlew()
	})
}

func (mon *Monitor) SetPosition(az, el float64) error {
	return mon.Do("goto_azalt", func(m *nexstar.Mount) error {
		mon.azRate, mon.altRate = 0, 0
		return m.GotoAzAlt(az, el)
	})
}

func (mon *Monitor) GotoRaDec(ra, dec float64) error {
	return mon.Do("goto_radec", func(m *nexstar.Mount) error {
		mon.azRate, mon.altRate = 0, 0
		return m.GotoRaDec(ra, dec)
	})
}

func (mon *Monitor) Sync(ra, dec float64) error {
	return mon.Do("sync", func(m *nexstar.Mount) error {
		return m.Sync(ra, dec)
	})
}

// setVelocity commands both axes at the given rates in degrees/second.
// Must be called with mon.mu held.
func (mon *Monitor) setVelocity(m *nexstar.Mount, az, alt float64) error {
	if err := m.SlewVar(az*3600, alt*3600); err != nil {
		return err
	}
	mon.azRate, mon.altRate = az, alt
	return nil
}

func (mon *Monitor) SetAzimuthVelocity(rate float64) error {
	return mon.Do("slew_var", func(m *nexstar.Mount) error {
		return mon.setVelocity(m, rate, mon.altRate)
	})
}

func (mon *Monitor) SetElevationVelocity(rate float64) error {
	return mon.Do("slew_var", func(m *nexstar.Mount) error {
		return mon.setVelocity(m, mon.azRate, rate)
	})
}

var (
	_ rotator.Rotator    = (*Monitor)(nil)
	_ rotator.Equatorial = (*Monitor)(nil)
)
