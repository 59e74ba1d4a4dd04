package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/influxdata/influxdb-client-go/api/write"
)

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

var (
	influxServer = flag.String("influx_server", envDefault("INFLUX_SERVER", "http://localhost:9999"), "InfluxDB server URL")
	org          = flag.String("org", "w1xm", "InfluxDB organization")
	bucket       = flag.String("bucket", "nexstar.raw", "InfluxDB bucket")
	statusURL    = flag.String("status_url", envDefault("NEXSTAR_ADDRESS", "ws://localhost:8502/api/ws"), "nexstar_server status websocket")
)

func main() {
	flag.Parse()
	client := influxdb2.NewClient(*influxServer, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi(*org, *bucket)
	defer writeApi.Close()
	go func() {
		for err := range writeApi.Errors() {
			log.Printf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi, *statusURL); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

func flattenStatus(fields map[string]interface{}, status interface{}, prefix string) {
	switch status := status.(type) {
	case map[string]interface{}:
		for k, v := range status {
			flattenStatus(fields, v, prefix+"."+k)
		}
	case []interface{}:
		for k, v := range status {
			flattenStatus(fields, v, fmt.Sprintf("%s.%d", prefix, k))
		}
	case nil:
	default:
		fields[prefix[1:]] = status
	}
}

// statusPoint converts one decoded status message to a point.
func statusPoint(status interface{}, now time.Time) *write.Point {
	fields := make(map[string]interface{})
	flattenStatus(fields, status, "")
	// Time is the poll time; the point carries it as its timestamp.
	if s, ok := fields["Time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			now = t
		}
		delete(fields, "Time")
	}
	return influxdb2.NewPoint("nexstar.status", nil, fields, now)
}

func logData(writeApi api.WriteApi, url string) error {
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var status interface{}
		if err := conn.ReadJSON(&status); err != nil {
			return err
		}
		// write asynchronously
		writeApi.WritePoint(statusPoint(status, time.Now()))
	}
}
