package nexstar

import (
	"bytes"
	"errors"
	"log"
)

// Terminator ends every response and is the sole body of an acknowledgement.
const Terminator = '#'

var (
	errCommandFailed = errors.New("command failed")
	errNoTerminator  = errors.New("missing terminator")
)

// Validator checks a raw response and returns the payload handed back to the
// caller.
type Validator func(resp []byte) ([]byte, error)

// ExpectAck accepts only the single byte "#".
func ExpectAck(resp []byte) ([]byte, error) {
	if len(resp) != 1 || resp[0] != Terminator {
		return nil, errCommandFailed
	}
	return nil, nil
}

// ExpectTerminated accepts a payload followed by "#" and returns the payload.
func ExpectTerminated(resp []byte) ([]byte, error) {
	if len(resp) == 0 || resp[len(resp)-1] != Terminator {
		return nil, errNoTerminator
	}
	return resp[:len(resp)-1], nil
}

// Protocol frames request/response exchanges over a Transport. It is not safe
// for concurrent use; every exchange is a strict write-then-read pair.
type Protocol struct {
	t Transport
	// Logger, if set, traces every exchange.
	Logger *log.Logger
}

func NewProtocol(t Transport) *Protocol {
	return &Protocol{t: t}
}

// SendAndValidate writes cmd, reads exactly respLen bytes and applies v.
// A validator failure is returned as a *ProtocolError carrying the raw bytes.
func (p *Protocol) SendAndValidate(cmd []byte, respLen int, v Validator) ([]byte, error) {
	if p.Logger != nil {
		p.Logger.Printf("tx: %q", cmd)
	}
	if err := p.t.Write(cmd); err != nil {
		return nil, err
	}
	resp, err := p.t.Read(respLen)
	if err != nil {
		return nil, err
	}
	if p.Logger != nil {
		p.Logger.Printf("rx: %q", resp)
	}
	payload, err := v(resp)
	if err != nil {
		var op byte
		if len(cmd) > 0 {
			op = cmd[0]
		}
		return nil, &ProtocolError{Command: op, Response: bytes.Clone(resp), Reason: err.Error()}
	}
	return payload, nil
}

// Close closes the transport.
func (p *Protocol) Close() error {
	return p.t.Close()
}
