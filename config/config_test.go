package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(newViper())

	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "lessons.db", cfg.SQLitePath)
	assert.Equal(t, "Europe/Istanbul", cfg.DefaultTimezone)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("TUTOR_ENV", "production")
	t.Setenv("TUTOR_PORT", "9090")
	t.Setenv("TUTOR_DB_DRIVER", "postgres")
	t.Setenv("TUTOR_POSTGRES_DSN", "postgres://tutor@localhost/tutor")
	t.Setenv("TUTOR_CORS_ORIGINS", " https://app.example.com , ")
	t.Setenv("TUTOR_REQUEST_TIMEOUT", "5s")

	cfg, err := FromViper(newViper())

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "postgres://tutor@localhost/tutor", cfg.PostgresDSN)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without dsn", map[string]string{"TUTOR_DB_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"TUTOR_DB_DRIVER": "mysql"}},
		{"bad port", map[string]string{"TUTOR_PORT": "70000"}},
		{"bad timezone", map[string]string{"TUTOR_DEFAULT_TIMEZONE": "Mars/Olympus"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromViper(newViper())
			assert.Error(t, err)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	// GIVEN: a .env file setting the port
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TUTOR_TEST_DOTENV_PORT=7070\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TUTOR_TEST_DOTENV_PORT") })

	// WHEN
	require.NoError(t, loadDotEnv(path))

	// THEN
	assert.Equal(t, "7070", os.Getenv("TUTOR_TEST_DOTENV_PORT"))
	assert.NoError(t, loadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		logger, err := NewLogger(env)
		require.NoError(t, err)
		require.NotNil(t, logger)
	}
}
