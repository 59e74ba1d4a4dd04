// Command nexstar sends one command to a NexStar mount and prints the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/w1xm/nexstar_interface/cutout"
	"github.com/w1xm/nexstar_interface/nexstar"
)

var (
	device    = flag.String("d", "/dev/ttyUSB0", "serial device the hand controller is attached to")
	tcpAddr   = flag.String("tcp", "", "host:port of a TCP serial bridge; overrides -d")
	verbose   = flag.Bool("v", false, "log mount traffic")
	cutoutURL = flag.String("cutout_url", cutout.DefaultURL, "image cutout service")
)

type env struct {
	ctx    context.Context
	m      *nexstar.Mount
	out    io.Writer
	cutout *cutout.Client
}

type command struct {
	usage            string
	minArgs, maxArgs int
	run              func(e *env, args []string) error
}

func floats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// pair adapts a mount method taking two numeric arguments.
func pair(f func(m *nexstar.Mount, a, b float64) error) func(*env, []string) error {
	return func(e *env, args []string) error {
		v, err := floats(args)
		if err != nil {
			return err
		}
		return f(e.m, v[0], v[1])
	}
}

func single(f func(m *nexstar.Mount, a float64) error) func(*env, []string) error {
	return func(e *env, args []string) error {
		v, err := floats(args)
		if err != nil {
			return err
		}
		return f(e.m, v[0])
	}
}

func action(f func(m *nexstar.Mount) error) func(*env, []string) error {
	return func(e *env, _ []string) error {
		return f(e.m)
	}
}

func printFlag(f func(m *nexstar.Mount) (bool, error)) func(*env, []string) error {
	return func(e *env, _ []string) error {
		v, err := f(e.m)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, v)
		return nil
	}
}

func printPair(f func(m *nexstar.Mount) (float64, float64, error)) func(*env, []string) error {
	return func(e *env, _ []string) error {
		a, b, err := f(e.m)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%.6f %.6f (%s %s)\n", a, b, nexstar.FormatDMS(a), nexstar.FormatDMS(b))
		return nil
	}
}

func parseTrackingMode(s string) (nexstar.TrackingMode, error) {
	for mode := nexstar.TrackingOff; mode <= nexstar.TrackingEQSouth; mode++ {
		if s == mode.String() {
			return mode, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("unknown tracking mode %q", s)
	}
	return nexstar.TrackingMode(n), nil
}

var commands = map[string]command{
	"get_azalt":    {"", 0, 0, printPair((*nexstar.Mount).AzAlt)},
	"get_radec":    {"", 0, 0, printPair((*nexstar.Mount).RaDec)},
	"get_location": {"", 0, 0, func(e *env, _ []string) error {
		loc, err := e.m.Location()
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, loc)
		return nil
	}},
	"set_location": {"lat lon", 2, 2, pair(func(m *nexstar.Mount, lat, lon float64) error {
		return m.SetLocation(nexstar.Location{Latitude: lat, Longitude: lon})
	})},
	"get_model": {"", 0, 0, func(e *env, _ []string) error {
		model, err := e.m.Model()
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%d %s\n", model, nexstar.ModelName(model))
		return nil
	}},
	"get_version": {"", 0, 0, func(e *env, _ []string) error {
		v, err := e.m.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%.1f\n", v)
		return nil
	}},
	"get_time": {"", 0, 0, func(e *env, _ []string) error {
		mt, err := e.m.MountTime()
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, mt.Time().Format(time.RFC3339))
		return nil
	}},
	"set_time": {"[RFC3339|now]", 0, 1, func(e *env, args []string) error {
		t := time.Now()
		if len(args) == 1 && args[0] != "now" {
			var err error
			if t, err = time.Parse(time.RFC3339, args[0]); err != nil {
				return err
			}
		}
		return e.m.SetTime(t)
	}},
	"get_tracking_mode": {"", 0, 0, func(e *env, _ []string) error {
		mode, err := e.m.TrackingMode()
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, mode)
		return nil
	}},
	"set_tracking_mode": {"off|alt-az|eq-north|eq-south|n", 1, 1, func(e *env, args []string) error {
		mode, err := parseTrackingMode(args[0])
		if err != nil {
			return err
		}
		return e.m.SetTrackingMode(mode)
	}},
	"goto_azalt":         {"az alt", 2, 2, pair((*nexstar.Mount).GotoAzAlt)},
	"goto_radec":         {"ra dec", 2, 2, pair((*nexstar.Mount).GotoRaDec)},
	"sync":               {"ra dec", 2, 2, pair((*nexstar.Mount).Sync)},
	"slew_fixed":         {"az_rate el_rate", 2, 2, pair((*nexstar.Mount).SlewFixed)},
	"slew_var":           {"az_arcsec/s el_arcsec/s", 2, 2, pair((*nexstar.Mount).SlewVar)},
	"move_alt":           {"degrees", 1, 1, single((*nexstar.Mount).MoveAltBy)},
	"move_az":            {"degrees", 1, 1, single((*nexstar.Mount).MoveAzBy)},
	"stop":               {"", 0, 0, action((*nexstar.Mount).StopSlew)},
	"cancel_goto":        {"", 0, 0, action((*nexstar.Mount).CancelGoto)},
	"goto_in_progress":   {"", 0, 0, printFlag((*nexstar.Mount).GotoInProgress)},
	"alignment_complete": {"", 0, 0, printFlag((*nexstar.Mount).AlignmentComplete)},
	"echo": {"c", 1, 1, func(e *env, args []string) error {
		if len(args[0]) != 1 {
			return fmt.Errorf("echo takes a single character, got %q", args[0])
		}
		c, err := e.m.Echo(args[0][0])
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "%c\n", c)
		return nil
	}},
	"display": {"message...", 1, -1, func(e *env, args []string) error {
		return e.m.Display(strings.Join(args, " "))
	}},
	"cutout": {"out.jpg [ra dec]", 1, 3, func(e *env, args []string) error {
		var ra, dec float64
		if len(args) == 1 {
			var err error
			if ra, dec, err = e.m.RaDec(); err != nil {
				return err
			}
		} else {
			v, err := floats(args[1:])
			if err != nil {
				return err
			}
			ra, dec = v[0], v[1]
		}
		return e.cutout.Save(e.ctx, ra, dec, args[0])
	}},
	"cancel_current_operation": {"", 0, 0, action((*nexstar.Mount).CancelCurrentOperation)},
}

// argChecks holds argument rules the count bounds in commands cannot express.
var argChecks = map[string]func(args []string) error{
	"cutout": func(args []string) error {
		if len(args) == 2 {
			return fmt.Errorf("cutout takes a file name and optionally ra dec")
		}
		return nil
	},
}

func lookup(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, fmt.Errorf("no command given")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return command{}, fmt.Errorf("unknown command %q", args[0])
	}
	n := len(args) - 1
	if n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		return command{}, fmt.Errorf("usage: %s %s", args[0], cmd.usage)
	}
	if check, ok := argChecks[args[0]]; ok {
		if err := check(args[1:]); err != nil {
			return command{}, err
		}
	}
	return cmd, nil
}

func run(e *env, args []string) error {
	cmd, err := lookup(args)
	if err != nil {
		return err
	}
	return cmd.run(e, args[1:])
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] command [args]\n\nflags:\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(flag.CommandLine.Output(), "\ncommands:\n")
	var names []string
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(flag.CommandLine.Output(), "  %s %s\n", name, commands[name].usage)
	}
}

func open(ctx context.Context) (nexstar.Transport, error) {
	if *tcpAddr != "" {
		t, err := nexstar.DialTCP(ctx, *tcpAddr)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	t, err := nexstar.OpenSerial(*device)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if _, err := lookup(flag.Args()); err != nil {
		fmt.Fprintln(flag.CommandLine.Output(), err)
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	t, err := open(ctx)
	if err != nil {
		log.Fatal(err)
	}
	var opts []nexstar.Option
	if *verbose {
		opts = append(opts, nexstar.WithLogger(log.New(os.Stderr, "", log.Lmicroseconds)))
	}
	m := nexstar.New(t, opts...)
	err = run(&env{
		ctx:    ctx,
		m:      m,
		out:    os.Stdout,
		cutout: &cutout.Client{BaseURL: *cutoutURL},
	}, flag.Args())
	m.Close()
	if err != nil {
		log.Fatal(err)
	}
}
