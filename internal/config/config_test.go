package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0 0 * * * *", cfg.DueDateCron)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 4, cfg.EngineWorkers)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
	assert.Equal(t, "https://api.paystack.co", cfg.PaystackBaseURL)
	assert.Equal(t, "bluegold.notifications", cfg.NotificationsQueue)
}

func TestLoadFrom_EnvSelectsDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_DEV", "postgres://dev")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod")

	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Env)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
}

func TestLoadFrom_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "PORT=9090\nENGINE_WORKERS=8\nSTORE_TIMEOUT_SECONDS=3\nSCHEDULER_ENABLED=false\nFRONTEND_URL=https://app.bluegold.ng/\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFrom(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 8, cfg.EngineWorkers)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, "https://app.bluegold.ng/topups/callback", cfg.TopupCallbackURL())
}

func TestLoadFrom_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("ENGINE_WORKERS", "-2")
	t.Setenv("STORE_TIMEOUT_SECONDS", "0")

	cfg, err := LoadFrom(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.EngineWorkers)
	assert.Equal(t, 10*time.Second, cfg.StoreTimeout)
}
