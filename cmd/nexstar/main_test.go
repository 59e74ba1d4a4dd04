package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/w1xm/nexstar_interface/cutout"
	"github.com/w1xm/nexstar_interface/nexstar"
	"github.com/w1xm/nexstar_interface/nexstar/simulator"
)

func newEnv(t *testing.T) (*env, *simulator.Simulator, *bytes.Buffer) {
	t.Helper()
	sim, conn := simulator.New()
	sim.GotoRate = 900
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()
	m := nexstar.New(nexstar.NewStreamTransport(conn, time.Second))
	t.Cleanup(func() {
		cancel()
		m.Close()
		<-done
	})
	var out bytes.Buffer
	return &env{ctx: context.Background(), m: m, out: &out, cutout: &cutout.Client{}}, sim, &out
}

func TestCommands(t *testing.T) {
	e, sim, out := newEnv(t)
	for _, test := range []struct {
		args []string
		want string
	}{
		{[]string{"get_version"}, "4.1\n"},
		{[]string{"get_model"}, "7 SLT\n"},
		{[]string{"alignment_complete"}, "true\n"},
		{[]string{"echo", "x"}, "x\n"},
		{[]string{"sync", "90", "-45"}, ""},
		{[]string{"get_radec"}, "90.000000 315.000000 (90°0'0\" 315°0'0\")\n"},
		{[]string{"set_tracking_mode", "eq-north"}, ""},
		{[]string{"get_tracking_mode"}, "eq-north\n"},
		{[]string{"set_tracking_mode", "1"}, ""},
		{[]string{"get_tracking_mode"}, "alt-az\n"},
		{[]string{"set_location", "42.5", "-71.25"}, ""},
		{[]string{"set_time", "2023-08-12T03:04:05-07:00"}, ""},
		{[]string{"get_time"}, "2023-08-12T03:04:05-07:00\n"},
		{[]string{"display", "hello", "sky"}, ""},
		{[]string{"goto_in_progress"}, "false\n"},
	} {
		out.Reset()
		if err := run(e, test.args); err != nil {
			t.Errorf("%v: %v", test.args, err)
			continue
		}
		if diff := cmp.Diff(out.String(), test.want); diff != "" {
			t.Errorf("%v: got(-)/want(+):\n%s", test.args, diff)
		}
	}
	st := sim.Status()
	want := nexstar.Location{Latitude: 42.5, Longitude: -71.25}
	if st.Location != want {
		t.Errorf("simulated location = %+v, want %+v", st.Location, want)
	}
}

func TestMotionCommands(t *testing.T) {
	e, sim, _ := newEnv(t)
	if err := run(e, []string{"slew_fixed", "9", "-6"}); err != nil {
		t.Fatal(err)
	}
	if st := sim.Status(); st.AzRate != 4 || st.AltRate != -0.5 {
		t.Errorf("rates after slew_fixed = %v, %v", st.AzRate, st.AltRate)
	}
	if err := run(e, []string{"stop"}); err != nil {
		t.Fatal(err)
	}
	if st := sim.Status(); st.AzRate != 0 || st.AltRate != 0 {
		t.Errorf("rates after stop = %v, %v", st.AzRate, st.AltRate)
	}

	if err := run(e, []string{"goto_azalt", "20", "10"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for sim.Status().Goto != "" {
		if time.Now().After(deadline) {
			t.Fatal("goto did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := run(e, []string{"move_az", "5"}); err != nil {
		t.Fatal(err)
	}
	if st := sim.Status(); math.Abs(st.TargetAz-25) > 1e-6 || math.Abs(st.TargetAlt-10) > 1e-6 {
		t.Errorf("move_az target = %v, %v, want 25, 10", st.TargetAz, st.TargetAlt)
	}
	if err := run(e, []string{"cancel_goto"}); err != nil {
		t.Fatal(err)
	}
	if sim.Status().Goto != "" {
		t.Error("goto still active after cancel_goto")
	}

	if err := run(e, []string{"goto_azalt", "200", "50"}); err != nil {
		t.Fatal(err)
	}
	if err := run(e, []string{"cancel_current_operation"}); err != nil {
		t.Fatal(err)
	}
	if st := sim.Status(); st.Goto != "" || !bytes.Equal(st.LastCommand, []byte("M")) {
		t.Errorf("after cancel_current_operation: goto %q, last command %q", st.Goto, st.LastCommand)
	}
}

func TestArgumentErrors(t *testing.T) {
	e, sim, _ := newEnv(t)
	for _, args := range [][]string{
		nil,
		{"park"},
		{"goto_azalt", "1"},
		{"goto_azalt", "1", "2", "3"},
		{"goto_azalt", "north", "2"},
		{"echo", "xy"},
		{"set_tracking_mode", "sideways"},
		{"display"},
		{"cutout", "out.jpg", "1"},
		{"cancel_current_operation", "now"},
	} {
		if err := run(e, args); err == nil {
			t.Errorf("%q succeeded", args)
		}
	}
	var rerr *nexstar.RangeError
	if err := run(e, []string{"slew_fixed", "10", "0"}); !errors.As(err, &rerr) {
		t.Errorf("slew_fixed 10 0 = %v, want RangeError", err)
	}
	if n := sim.Status().Commands; n != 0 {
		t.Errorf("%d commands reached the mount", n)
	}
}

func TestCutout(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	e, _, _ := newEnv(t)
	e.cutout.BaseURL = srv.URL
	if err := run(e, []string{"sync", "90", "45"}); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "view.jpg")
	if err := run(e, []string{"cutout", out}); err != nil {
		t.Fatal(err)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "jpeg" {
		t.Errorf("saved %q, %v", data, err)
	}
	if !strings.Contains(query, "ra=90&") || !strings.Contains(query, "dec=45&") {
		t.Errorf("query = %q, want current position", query)
	}

	if err := run(e, []string{"cutout", out, "83.5", "-5.25"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(query, "ra=83.5&") || !strings.Contains(query, "dec=-5.25&") {
		t.Errorf("query = %q, want explicit position", query)
	}
	if _, err := lookup([]string{"cutout", out, "1"}); err == nil {
		t.Error("cutout with only ra passed argument checks")
	}
}
