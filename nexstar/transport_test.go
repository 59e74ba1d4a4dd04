package nexstar

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"strings"
	"testing"
	"time"
)

func TestStreamTransportRead(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	tr := NewStreamTransport(a, time.Second)
	defer tr.Close()

	go b.Write([]byte("12345678,9ABCDEF0#"))
	got, err := tr.Read(18)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "12345678,9ABCDEF0#" {
		t.Errorf("Read(18) = %q", got)
	}
}

func TestStreamTransportTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	tr := NewStreamTransport(a, 20*time.Millisecond)
	defer tr.Close()

	go b.Write([]byte("ab"))
	_, err := tr.Read(3)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "read" {
		t.Fatalf("Read(3) = %v, want read TransportError", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Read(3) = %v, want ErrTimeout", err)
	}
}

func TestStreamTransportPeerClose(t *testing.T) {
	a, b := net.Pipe()
	tr := NewStreamTransport(a, time.Second)
	defer tr.Close()

	go func() {
		b.Write([]byte("ab"))
		b.Close()
	}()
	_, err := tr.Read(3)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "read" {
		t.Fatalf("Read(3) = %v, want read TransportError", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Read(3) after peer close = %v, want a non-timeout error", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Read(3) after peer close = %v, want io.ErrUnexpectedEOF", err)
	}
}

type quietPort struct {
	io.Reader
}

func (quietPort) Write(p []byte) (int, error) { return len(p), nil }
func (quietPort) Close() error                { return nil }

func TestSerialTransportTimeout(t *testing.T) {
	for _, pending := range []string{"", "ab"} {
		tr := newSerialTransport(quietPort{Reader: strings.NewReader(pending)}, time.Second)
		if _, err := tr.Read(3); !errors.Is(err, ErrTimeout) {
			t.Errorf("Read(3) with %q pending = %v, want ErrTimeout", pending, err)
		}
	}
}

func TestStreamTransportWriteError(t *testing.T) {
	a, b := net.Pipe()
	b.Close()
	tr := NewStreamTransport(a, time.Second)
	err := tr.Write([]byte("z"))
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "write" {
		t.Errorf("Write on closed pipe = %v, want write TransportError", err)
	}
}

type shortWriter struct {
	io.Reader
}

func (shortWriter) Write(p []byte) (int, error) { return len(p) - 1, nil }
func (shortWriter) Close() error                { return nil }

func TestStreamTransportShortWrite(t *testing.T) {
	tr := NewStreamTransport(shortWriter{Reader: strings.NewReader("")}, time.Second)
	if err := tr.Write([]byte("ab")); !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("Write = %v, want io.ErrShortWrite", err)
	}
}

func TestProtocolTrace(t *testing.T) {
	var buf bytes.Buffer
	f := &fakeTransport{responses: [][]byte{[]byte("#")}}
	p := NewProtocol(f)
	p.Logger = log.New(&buf, "", 0)
	if _, err := p.SendAndValidate([]byte("M"), 1, ExpectAck); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "tx: \"M\"\nrx: \"#\"\n"; got != want {
		t.Errorf("trace = %q, want %q", got, want)
	}
}

func TestProtocolErrorCarriesResponse(t *testing.T) {
	f := &fakeTransport{responses: [][]byte{[]byte("?")}}
	_, err := NewProtocol(f).SendAndValidate([]byte("M"), 1, ExpectAck)
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("SendAndValidate = %v, want ProtocolError", err)
	}
	if perr.Command != 'M' || string(perr.Response) != "?" {
		t.Errorf("ProtocolError = %+v", perr)
	}
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 2)
		if _, err := io.ReadFull(conn, buf); err != nil {
			return
		}
		conn.Write([]byte{buf[1], Terminator})
	}()

	tr, err := DialTCP(context.Background(), ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	m := New(tr)
	defer m.Close()
	c, err := m.Echo('q')
	if err != nil {
		t.Fatal(err)
	}
	if c != 'q' {
		t.Errorf("Echo over TCP = %q, want 'q'", c)
	}
}
