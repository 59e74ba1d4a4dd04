package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/w1xm/nexstar_interface/monitor"
	"github.com/w1xm/nexstar_interface/nexstar"
)

// Hamlib return codes, negated on the wire.
const (
	rigOK        = 0
	rigEINVAL    = -1
	rigETIMEOUT  = -5
	rigEIO       = -6
	rigEINTERNAL = -7
	rigEPROTO    = -8
)

// maxMoveRate is the slew rate in degrees/second for a move at speed 100.
const maxMoveRate = 4

// signedDegrees maps an angle in [0,360) onto (-180,180].
func signedDegrees(deg float64) float64 {
	if deg > 180 {
		return deg - 360
	}
	return deg
}

func rprt(err error) int {
	var (
		rerr *nexstar.RangeError
		perr *nexstar.ProtocolError
	)
	switch {
	case err == nil:
		return rigOK
	case errors.As(err, &rerr):
		return rigEINVAL
	case errors.Is(err, nexstar.ErrTimeout):
		return rigETIMEOUT
	case errors.As(err, &perr):
		return rigEPROTO
	case errors.Is(err, monitor.ErrNotConnected):
		return rigEIO
	}
	var terr *nexstar.TransportError
	if errors.As(err, &terr) {
		return rigEIO
	}
	return rigEINTERNAL
}

func (s *Server) ListenRotctld(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Print("shutdown; closing rotctld socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("failed to accept: %v", err)
				}
				continue
			}
			go s.handleRotctld(conn)
		}
	}()
	return nil
}

func (s *Server) handleRotctld(conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		// Two forms of command: single character, or "+\" followed by command name.
		cmd := scanner.Text()
		var args []string
		var extended bool
		if len(cmd) == 0 {
			continue
		} else if len(cmd) > 2 && cmd[0:2] == `+\` {
			extended = true
			parts := strings.Fields(cmd)
			cmd = parts[0][2:]
			args = parts[1:]
			fmt.Fprintf(conn, "%s:\n", cmd)
		} else {
			// Space after command is optional.
			args = strings.Fields(cmd[1:])
			cmd = string(cmd[0])
		}
		log.Printf("%v command: %q args: %#v", conn.RemoteAddr(), cmd, args)
		code := rigEINVAL
		switch cmd {
		case "1", "dump_caps":
			fmt.Fprintf(conn, `Model name: NexStar
Mfg name: Celestron
Rot type: Az-El
Min Azimuth: -180.00
Max Azimuth: 180.00
Min Elevation: -90.00
Max Elevation: 90.00
Can set Position: Y
Can get Position: Y
Can Stop: Y
Can Park: N
Can Reset: N
Can Move: Y
Can get Info: Y
`)
			code = rigOK
		case "_", "get_info":
			var model int
			err := s.mon.Do("get_model", func(m *nexstar.Mount) error {
				var err error
				model, err = m.Model()
				return err
			})
			if code = rprt(err); code == rigOK {
				if extended {
					fmt.Fprintf(conn, "Info: %s\n", nexstar.ModelName(model))
				} else {
					fmt.Fprintf(conn, "%s\n", nexstar.ModelName(model))
				}
			}
		case "S", "stop":
			extended = true // always print RPRT
			code = rprt(s.mon.Stop())
		case "P", "set_pos":
			extended = true // always print RPRT
			if len(args) != 2 {
				break
			}
			az, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				break
			}
			el, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				break
			}
			code = rprt(s.mon.SetPosition(az, el))
		case "M", "move":
			extended = true // always print RPRT
			if len(args) != 2 {
				break
			}
			dir, err := strconv.Atoi(args[0])
			if err != nil {
				break
			}
			// Speed is 0-100.
			speed, err := strconv.Atoi(args[1])
			if err != nil || speed < 0 || speed > 100 {
				break
			}
			rate := float64(speed) * maxMoveRate / 100
			switch dir {
			case 4: // Down
				rate *= -1
				fallthrough
			case 2: // Up
				code = rprt(s.mon.SetElevationVelocity(rate))
			case 8: // Left
				rate *= -1
				fallthrough
			case 16: // Right
				code = rprt(s.mon.SetAzimuthVelocity(rate))
			}
		case "p", "get_pos":
			s.statusMu.RLock()
			status := s.status
			s.statusMu.RUnlock()
			if !status.Connected {
				code = rigEIO
				break
			}
			az, el := signedDegrees(status.AzimuthPosition()), signedDegrees(status.ElevationPosition())
			if extended {
				fmt.Fprintf(conn, "Azimuth: %.6f\nElevation: %.6f\n", az, el)
			} else {
				fmt.Fprintf(conn, "%.6f\n%.6f\n", az, el)
			}
			code = rigOK
		}
		if extended || code != rigOK {
			fmt.Fprintf(conn, "RPRT %d\n", code)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
