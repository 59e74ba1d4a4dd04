package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/w1xm/nexstar_interface/monitor"
	"github.com/w1xm/nexstar_interface/nexstar"
	"github.com/w1xm/nexstar_interface/rotator"
)

// mount is the subset of *monitor.Monitor the server drives.
type mount interface {
	rotator.Rotator
	rotator.Equatorial
	Do(op string, fn func(m *nexstar.Mount) error) error
}

type Server struct {
	mon mount

	statusMu   sync.RWMutex
	statusCond *sync.Cond
	status     monitor.Status
}

func NewServer() *Server {
	s := &Server{}
	s.statusCond = sync.NewCond(s.statusMu.RLocker())
	return s
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

type Command struct {
	Command string  `json:"command"`
	Az      float64 `json:"az"`
	Alt     float64 `json:"alt"`
	RA      float64 `json:"ra"`
	Dec     float64 `json:"dec"`
	// AzRate and AltRate are hand controller presets for slew_fixed and
	// arcseconds/second for slew_var.
	AzRate  float64 `json:"az_rate"`
	AltRate float64 `json:"alt_rate"`
	Mode    int     `json:"mode"`
}

func (s *Server) execute(msg Command) error {
	switch msg.Command {
	case "goto_azalt":
		return s.mon.SetPosition(msg.Az, msg.Alt)
	case "goto_radec":
		return s.mon.GotoRaDec(msg.RA, msg.Dec)
	case "sync":
		return s.mon.Sync(msg.RA, msg.Dec)
	case "slew_fixed":
		return s.mon.Do(msg.Command, func(m *nexstar.Mount) error {
			return m.SlewFixed(msg.AzRate, msg.AltRate)
		})
	case "slew_var":
		return s.mon.Do(msg.Command, func(m *nexstar.Mount) error {
			return m.SlewVar(msg.AzRate, msg.AltRate)
		})
	case "cancel":
		return s.mon.Do(msg.Command, func(m *nexstar.Mount) error {
			return m.CancelGoto()
		})
	case "stop":
		return s.mon.Stop()
	case "set_tracking_mode":
		if msg.Mode < 0 || msg.Mode > 255 {
			return fmt.Errorf("tracking mode %d out of range", msg.Mode)
		}
		return s.mon.Do(msg.Command, func(m *nexstar.Mount) error {
			return m.SetTrackingMode(nexstar.TrackingMode(msg.Mode))
		})
	}
	return fmt.Errorf("unknown command %q", msg.Command)
}

func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	defer conn.Close()

	// Read and process incoming messages
	go func() {
		defer cancel()
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if err := s.execute(msg); err != nil {
				log.Printf("%v %s: %v", r.RemoteAddr, msg.Command, err)
			}
		}
	}()

	send := func(status monitor.Status) error {
		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return conn.WriteMessage(websocket.TextMessage, data)
	}

	s.statusMu.RLock()
	status := s.status
	s.statusMu.RUnlock()
	if err := send(status); err != nil {
		log.Print(err)
		return
	}

	for {
		s.statusMu.RLock()
		s.statusCond.Wait()
		status := s.status
		s.statusMu.RUnlock()
		if ctx.Err() != nil {
			return
		}
		if err := send(status); err != nil {
			log.Print(err)
			return
		}
	}
}

func (s *Server) statusCallback(status rotator.Status) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = status.(monitor.Status)
	s.statusCond.Broadcast()
}
