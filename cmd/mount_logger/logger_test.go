package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestFlattenStatus(t *testing.T) {
	fields := make(map[string]interface{})
	flattenStatus(fields, decode(t, `{"Az": 12.5, "Connected": true, "Error": null, "Site": {"Lat": 42, "Axes": [1, 2]}}`), "")
	want := map[string]interface{}{
		"Az":          12.5,
		"Connected":   true,
		"Site.Lat":    42.0,
		"Site.Axes.0": 1.0,
		"Site.Axes.1": 2.0,
	}
	if diff := cmp.Diff(fields, want); diff != "" {
		t.Errorf("flattenStatus: got(-)/want(+):\n%s", diff)
	}
}

func TestStatusPoint(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	polled := time.Date(2024, 1, 2, 3, 4, 4, 500, time.UTC)
	p := statusPoint(decode(t, `{"Az": 1, "Time": "`+polled.Format(time.RFC3339Nano)+`"}`), now)
	if p.Name() != "nexstar.status" {
		t.Errorf("Name() = %q", p.Name())
	}
	if !p.Time().Equal(polled) {
		t.Errorf("Time() = %v, want %v", p.Time(), polled)
	}

	p = statusPoint(decode(t, `{"Az": 1}`), now)
	if !p.Time().Equal(now) {
		t.Errorf("Time() without poll time = %v, want %v", p.Time(), now)
	}
}
