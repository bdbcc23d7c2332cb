//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/nimbus/internal/client"
	"github.com/kjstillabower/nimbus/internal/session"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	SessionBackend string // "in_memory" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultBaseURL
	}

	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         apiURL,
		SessionBackend: os.Getenv("INTEGRATION_SESSION_BACKEND"),
		MemcachedAddr:  memcachedAddr,
	}
}

// SetupIntegrationStore returns the session store selected by cfg and a cleanup function.
// Falls back to the in-memory store when memcached does not answer a ping.
func SetupIntegrationStore(t *testing.T, cfg IntegrationTestConfig) (session.Store, func()) {
	t.Helper()
	if cfg.SessionBackend != "memcached" {
		return session.NewInMemoryStore(), func() {}
	}
	mc := session.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
	if err := mc.Ping(); err != nil {
		t.Logf("Memcached not available (%v), using in-memory sessions", err)
		_ = mc.Close()
		return session.NewInMemoryStore(), func() {}
	}
	t.Logf("Using Memcached sessions at %s", cfg.MemcachedAddr)
	return mc, func() { _ = mc.Close() }
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) client.WeatherClient {
	t.Helper()
	c, err := client.NewWeatherAPIClient(cfg.APIKey, cfg.APIURL, 5*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}
	return c
}
