package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rent-signals/internal/config"
	"github.com/sells-group/rent-signals/internal/fetcher"
)

func TestFetchFRED_RequiresAPIKey(t *testing.T) {
	cfg = &config.Config{}

	err := fetchFRED(context.Background(), fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fred_api_key is required")
}

func TestRateLimiters_ConfigOverride(t *testing.T) {
	cfg = &config.Config{}
	cfg.Fetch.RatePerSec = 5

	limiters := rateLimiters()
	require.NotEmpty(t, limiters)
	for _, l := range limiters {
		assert.Equal(t, float64(5), float64(l.Limit()))
	}
}

func TestRateLimiters_DefaultsWhenUnset(t *testing.T) {
	cfg = &config.Config{}

	limiters := rateLimiters()
	defaults := fetcher.DefaultRateLimiters()
	require.Len(t, limiters, len(defaults))
	for host, l := range limiters {
		require.Contains(t, defaults, host)
		assert.Equal(t, defaults[host].Limit(), l.Limit())
	}
}
