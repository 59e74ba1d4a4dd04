package nexstar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/tarm/serial"
)

const (
	// BaudRate is fixed by the hand controller.
	BaudRate = 9600
	// DefaultTimeout bounds every response read.
	DefaultTimeout = 2 * time.Second
)

// Transport is a blocking byte channel to the mount. Read returns exactly n
// bytes or fails; there are no retries at this layer.
type Transport interface {
	Write(p []byte) error
	Read(n int) ([]byte, error)
	Close() error
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// StreamTransport adapts a byte stream (serial port, TCP connection, pipe) to
// Transport.
type StreamTransport struct {
	conn    io.ReadWriteCloser
	timeout time.Duration
	// eofTimeout is set for serial ports, whose driver reports an expired
	// read timeout as end of file.
	eofTimeout bool
}

// NewStreamTransport wraps conn. When conn supports read deadlines each Read
// is bounded by timeout; otherwise conn's own read timeout applies.
func NewStreamTransport(conn io.ReadWriteCloser, timeout time.Duration) *StreamTransport {
	return &StreamTransport{conn: conn, timeout: timeout}
}

// OpenSerial opens a hand controller attached to a local serial device.
func OpenSerial(device string) (*StreamTransport, error) {
	c := &serial.Config{Name: device, Baud: BaudRate, ReadTimeout: DefaultTimeout}
	s, err := serial.OpenPort(c)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", device, err)
	}
	return newSerialTransport(s, DefaultTimeout), nil
}

func newSerialTransport(conn io.ReadWriteCloser, timeout time.Duration) *StreamTransport {
	return &StreamTransport{conn: conn, timeout: timeout, eofTimeout: true}
}

// DialTCP connects to a serial-over-TCP bridge such as a WiFi adapter.
func DialTCP(ctx context.Context, addr string) (*StreamTransport, error) {
	dialer := &net.Dialer{
		Timeout: DefaultTimeout,
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %q: %w", addr, err)
	}
	return NewStreamTransport(conn, DefaultTimeout), nil
}

func (t *StreamTransport) Write(p []byte) error {
	n, err := t.conn.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (t *StreamTransport) Read(n int) ([]byte, error) {
	if d, ok := t.conn.(deadliner); ok && t.timeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			return nil, &TransportError{Op: "read", Err: err}
		}
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(t.conn, buf)
	if err != nil {
		if isTimeout(err) || (t.eofTimeout && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF))) {
			err = fmt.Errorf("%w after %d of %d bytes", ErrTimeout, got, n)
		}
		return nil, &TransportError{Op: "read", Err: err}
	}
	return buf, nil
}

func (t *StreamTransport) Close() error {
	return t.conn.Close()
}

// isTimeout reports whether err is an expired read deadline. End of file on
// a network stream means the peer hung up and is not a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
