package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/searchlab/prodsearch/pkg/config"
	"github.com/searchlab/prodsearch/pkg/metrics"
)

// Prometheus registration is global, so the test binary shares one instance.
var testMetrics = metrics.New()

func testGeoConfig(baseURL string) config.GeoConfig {
	return config.GeoConfig{
		Enabled: true,
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
	}
}

func TestLookupLoopbackShortCircuits(t *testing.T) {
	client := NewClient(testGeoConfig("http://geo.invalid"), testMetrics)

	for _, ip := range []string{"", "localhost", "::1", "127.0.0.1", "127.1.2.3"} {
		loc := client.Lookup(context.Background(), ip)
		assert.Equal(t, Location{City: "Localhost", Country: "Localhost"}, loc, "ip %q", ip)
	}
}

func TestLookupSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/81.2.69.142", r.URL.Path)
		fmt.Fprint(w, `{"city":"London","country":"United Kingdom","status":"success"}`)
	}))
	defer srv.Close()

	client := NewClient(testGeoConfig(srv.URL), testMetrics)
	loc := client.Lookup(context.Background(), "81.2.69.142")
	assert.Equal(t, Location{City: "London", Country: "United Kingdom"}, loc)
}

func TestLookupFillsMissingFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"country":"France"}`)
	}))
	defer srv.Close()

	client := NewClient(testGeoConfig(srv.URL), testMetrics)
	loc := client.Lookup(context.Background(), "81.2.69.142")
	assert.Equal(t, Location{City: "Unknown", Country: "France"}, loc)
}

func TestLookupServerErrorResolvesUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(testGeoConfig(srv.URL), testMetrics)
	loc := client.Lookup(context.Background(), "81.2.69.142")
	assert.Equal(t, Location{City: "Unknown", Country: "Unknown"}, loc)
}

func TestLookupUnreachableEndpointResolvesUnknown(t *testing.T) {
	cfg := testGeoConfig("http://127.0.0.1:1")
	client := NewClient(cfg, testMetrics)

	loc := client.Lookup(context.Background(), "81.2.69.142")
	assert.Equal(t, Location{City: "Unknown", Country: "Unknown"}, loc)
}

func TestLookupDisabledResolvesUnknown(t *testing.T) {
	cfg := testGeoConfig("http://geo.invalid")
	cfg.Enabled = false
	client := NewClient(cfg, testMetrics)

	loc := client.Lookup(context.Background(), "81.2.69.142")
	assert.Equal(t, Location{City: "Unknown", Country: "Unknown"}, loc)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("127.0.0.1"))
	assert.True(t, isLocal("::1"))
	assert.True(t, isLocal(""))
	assert.False(t, isLocal("192.168.1.10"))
	assert.False(t, isLocal("81.2.69.142"))
}
