// Package wavemeter provides a client for the lab wavemeter's HTTP JSON API.
package wavemeter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client polls a wavemeter server for measured frequencies.  The server
// multiplexes a fiber switch across several lasers, so polls are paced to
// avoid starving the other channels.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient returns a new Client.  base is the server root, e.g.
// http://localhost:5000.
func NewClient(base string) *Client {
	return &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
	}
}

// Frequency reads the measured frequency of the given channel in Hz
func (c *Client) Frequency(channel int) (float64, error) {
	err := c.limiter.Wait(context.Background())
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Get(fmt.Sprintf("%s/api/freq/%d", c.base, channel))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("wavemeter: channel %d returned status %s", channel, resp.Status)
	}
	var body struct {
		Frequency *float64 `json:"frequency"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return 0, err
	}
	if body.Frequency == nil {
		return 0, fmt.Errorf("wavemeter: channel %d response carried no frequency field", channel)
	}
	return *body.Frequency, nil
}
