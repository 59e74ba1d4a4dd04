package cutout

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFetch(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Write([]byte("\xff\xd8jpeg"))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	var buf bytes.Buffer
	if err := c.Fetch(context.Background(), 83.8221, -5.3911, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "\xff\xd8jpeg" {
		t.Errorf("body = %q", buf.String())
	}
	want := url.Values{
		"ra":     {"83.8221"},
		"dec":    {"-5.3911"},
		"width":  {"1024"},
		"height": {"1024"},
		"scale":  {"0.703125"},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("query: got(-)/want(+):\n%s", diff)
	}
}

func TestSaveError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.jpg")
	c := &Client{BaseURL: srv.URL, Pixels: 256, FieldOfView: 6}
	if err := c.Save(context.Background(), 1, 2, out); err == nil {
		t.Fatal("Save succeeded on 404")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestSave(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image"))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "out.jpg")
	if err := (&Client{BaseURL: srv.URL}).Save(context.Background(), 1, 2, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "image" {
		t.Errorf("saved %q", data)
	}
}
