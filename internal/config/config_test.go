package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadForTests(t *testing.T) {
	cfg, err := LoadForTests(map[string]string{
		"DATABASE_URL":     "postgres://localhost:5432/tienda",
		"REDIS_URL":        "redis://localhost:6379/0",
		"JWT_SECRET":       "secret",
		"PORT":             "9090",
		"TAX_BPS":          "1100",
		"GUEST_CART_TTL":   "24h",
		"RATE_LIMIT_PER_MIN": "60",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 1100, cfg.TaxBps)
	require.Equal(t, 24*time.Hour, cfg.GuestCartTTL)
	require.Equal(t, 60, cfg.RateLimitPerMin)
}

func TestLoadRejectsMissingRequired(t *testing.T) {
	_, err := LoadForTests(map[string]string{
		"DATABASE_URL": "",
		"REDIS_URL":    "redis://localhost:6379/0",
		"JWT_SECRET":   "secret",
	})
	require.Error(t, err)
}

func TestParseHelpersFallBack(t *testing.T) {
	require.Equal(t, 10, parseInt("nonsense", 10))
	require.Equal(t, 15*time.Minute, parseDuration("bad", "15m"))
	require.Equal(t, []string{"a", "b"}, splitAndTrim(" a , b ,"))
}
