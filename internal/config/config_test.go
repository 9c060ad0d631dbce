package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
database:
  table_name: from-file
  timeout: 2s
logging:
  level: debug
cache:
  client_list_ttl: 1m
`), 0o600))

	t.Setenv("TABLE_NAME", "from-env")
	t.Setenv("STORE_TIMEOUT", "750ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Staging, cfg.Environment)
	assert.Equal(t, "from-env", cfg.Database.TableName)
	assert.Equal(t, 750*time.Millisecond, cfg.Database.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.Cache.ClientListTTL)
	assert.Equal(t, "us-east-1", cfg.AWS.Region, "unset values keep their defaults")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Database.TableName, cfg.Database.TableName)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("UnknownField", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("databse:\n  table_name: x\n"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("BadDuration", func(t *testing.T) {
		t.Setenv("STORE_TIMEOUT", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "STORE_TIMEOUT")
	})

	t.Run("ProviderWithoutKey", func(t *testing.T) {
		t.Setenv("AI_PROVIDER", "anthropic")
		_, err := Load("")
		assert.ErrorContains(t, err, "APIKey")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"EmptyTable", func(c *Config) { c.Database.TableName = "" }, "TableName"},
		{"ZeroTimeout", func(c *Config) { c.Database.Timeout = 0 }, "Timeout"},
		{"UnknownLevel", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
		{"UnknownEnvironment", func(c *Config) { c.Environment = "qa" }, "Environment"},
		{"SampleRateAboveOne", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "SampleRate"},
		{"BadEndpoint", func(c *Config) { c.AWS.Endpoint = "not a url" }, "Endpoint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	changed := make(chan *Config, 1)
	w.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, "warn", w.Config().Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcher_KeepsConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o600))
	initial, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, initial, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))
	time.Sleep(3 * debounceDelay)
	w.Stop()

	assert.Same(t, initial, w.Config())
}
