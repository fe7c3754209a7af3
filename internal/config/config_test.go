package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "kebiao", cfg.App.Name)
	assert.Equal(t, 7012, cfg.App.Port)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, "genetic", cfg.Scheduler.DefaultAlgorithm)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.DefaultTimeout)
	assert.Equal(t, []string{"*"}, cfg.API.CORS.Origins)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "APP_PORT=8088\nREDIS_HOST=cache\nSCHEDULER_GENERATIONS=7\nAPI_CORS_ORIGINS=http://a.test, http://b.test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"APP_PORT", "REDIS_HOST", "SCHEDULER_GENERATIONS", "API_CORS_ORIGINS"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.App.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Addr())
	assert.Equal(t, 7, cfg.Scheduler.Generations)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.API.CORS.Origins)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_NAME=from-file\n"), 0o600))
	t.Setenv("APP_NAME", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.App.Name)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"默认配置", func(*Config) {}, false},
		{"端口越界", func(c *Config) { c.App.Port = 70000 }, true},
		{"默认超时大于上限", func(c *Config) { c.Scheduler.DefaultTimeout = time.Hour }, true},
		{"变异率越界", func(c *Config) { c.Scheduler.MutationRate = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(filepath.Join(t.TempDir(), "none.env"))
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "kebiao", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=kebiao sslmode=disable", c.DSN())
}
