package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "LOG_PRETTY", "DB_PATH", "JWT_SECRET", "JWT_EXPIRES_DAYS",
		"COOKIE_NAME", "CLIENT_ORIGIN", "APP_ENV", "DAILY_SALT", "DEFAULT_PAIRS",
		"DEFAULT_THEME", "THEMES_FILE", "MATCH_DELAY", "MISMATCH_DELAY",
		"TICK_INTERVAL", "SESSION_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5175", c.Port)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 8, c.DefaultPairs)
	assert.Equal(t, "classic", c.DefaultTheme)
	assert.Equal(t, 600*time.Millisecond, c.MatchDelay)
	assert.Equal(t, time.Second, c.MismatchDelay)
	assert.Equal(t, time.Second, c.TickInterval)
	assert.Equal(t, 30*time.Minute, c.SessionTTL)
	assert.Equal(t, 14, c.JWTExpiresDays)
	assert.False(t, c.Production())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DEFAULT_PAIRS", "12")
	t.Setenv("MATCH_DELAY", "250ms")
	t.Setenv("LOG_PRETTY", "1")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", c.Port)
	assert.Equal(t, 12, c.DefaultPairs)
	assert.Equal(t, 250*time.Millisecond, c.MatchDelay)
	assert.True(t, c.LogPretty)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"bad int":          {"DEFAULT_PAIRS", "eight"},
		"bad duration":     {"MISMATCH_DELAY", "soon"},
		"negative":         {"MATCH_DELAY", "-1s"},
		"zero tick":        {"TICK_INTERVAL", "0s"},
		"bad expiry days":  {"JWT_EXPIRES_DAYS", "1.5"},
		"zero session ttl": {"SESSION_TTL", "0s"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	c, err := Load()
	require.NoError(t, err)
	assert.True(t, c.Production())
}
