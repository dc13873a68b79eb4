package wavemeter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quentinglorieux/Bragg-omega/wavemeter"
)

func TestFrequencyParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/freq/3" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"frequency": 384.2e12}`))
	}))
	defer srv.Close()
	c := wavemeter.NewClient(srv.URL)
	f, err := c.Frequency(3)
	if err != nil {
		t.Fatal("read errored:", err)
	}
	if f != 384.2e12 {
		t.Errorf("expected 384.2 THz, got %G", f)
	}
}

func TestFrequencyMissingFieldErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "channel dark"}`))
	}))
	defer srv.Close()
	c := wavemeter.NewClient(srv.URL)
	if _, err := c.Frequency(3); err == nil {
		t.Error("expected an error for a response without a frequency field")
	}
}

func TestFrequencyHTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such channel", http.StatusNotFound)
	}))
	defer srv.Close()
	c := wavemeter.NewClient(srv.URL)
	if _, err := c.Frequency(9); err == nil {
		t.Error("expected an error for a 404 response")
	}
}

func TestFrequencyServerDownErrors(t *testing.T) {
	c := wavemeter.NewClient("http://localhost:1")
	if _, err := c.Frequency(3); err == nil {
		t.Error("expected an error with no server listening")
	}
}
