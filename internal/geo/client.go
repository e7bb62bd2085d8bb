// Package geo resolves client IP addresses to a city and country through an
// ip-api.com style JSON endpoint. Lookups are strictly best-effort: loopback
// addresses short-circuit to "Localhost" and every failure mode resolves to
// "Unknown".
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/searchlab/prodsearch/pkg/config"
	"github.com/searchlab/prodsearch/pkg/metrics"
)

// Location is the resolved place for an IP address.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Client performs IP geolocation lookups with a bounded timeout and a
// circuit breaker around the external endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	enabled bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a geolocation client from config.
func NewClient(cfg config.GeoConfig, m *metrics.Metrics) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		enabled: cfg.Enabled,
		metrics: m,
		logger:  slog.Default().With("component", "geo-client"),
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeoAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Lookup resolves ip to a Location. It never returns an error: loopback and
// private-looking addresses become "Localhost", anything unresolvable
// becomes "Unknown".
func (c *Client) Lookup(ctx context.Context, ip string) Location {
	if isLocal(ip) {
		c.metrics.GeoLookupsTotal.WithLabelValues("local").Inc()
		return Location{City: "Localhost", Country: "Localhost"}
	}
	if !c.enabled {
		return Location{City: "Unknown", Country: "Unknown"}
	}

	out, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, ip)
	})
	if err != nil {
		c.metrics.GeoLookupsTotal.WithLabelValues("error").Inc()
		c.logger.Debug("geo lookup failed", "ip", ip, "error", err)
		return Location{City: "Unknown", Country: "Unknown"}
	}

	c.metrics.GeoLookupsTotal.WithLabelValues("ok").Inc()
	return out.(Location)
}

func (c *Client) fetch(ctx context.Context, ip string) (Location, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Location{}, fmt.Errorf("building geo request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		City    string `json:"city"`
		Country string `json:"country"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decoding geo response: %w", err)
	}

	loc := Location{City: body.City, Country: body.Country}
	if loc.City == "" {
		loc.City = "Unknown"
	}
	if loc.Country == "" {
		loc.Country = "Unknown"
	}
	return loc, nil
}

func isLocal(ip string) bool {
	return ip == "" || ip == "localhost" || ip == "::1" || strings.HasPrefix(ip, "127.")
}
