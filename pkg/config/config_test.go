package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("Valid Config", func(t *testing.T) {
		path := writeConfig(t, tempDir, "valid.yaml", `
station:
  callsign: "K3DEP"
  grid: "FN20"

beacon:
  tick_interval_ms: 20
  settings_backend: "eeprom"
  eeprom_path: "/tmp/beacon.eeprom"

radio:
  model: "uv-k5"
  device: "/dev/ttyUSB0"
  baud_rate: 38400
  mode: "FM"

hardware:
  enable_gpio: true
  key_gpio_pin: 5
  ptt_gpio_pin: 6

web:
  port: 9090
  bind_address: "127.0.0.1"

storage:
  database_path: "/tmp/beacond.db"
  max_transmissions: 500

logging:
  level: "debug"
  console: true
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "K3DEP", cfg.Station.Callsign)
		assert.Equal(t, "FN20", cfg.Station.Grid)
		assert.Equal(t, 20, cfg.Beacon.TickIntervalMs)
		assert.Equal(t, BackendEEPROM, cfg.Beacon.SettingsBackend)
		assert.Equal(t, "/tmp/beacon.eeprom", cfg.Beacon.EEPROMPath)
		assert.Equal(t, "/dev/ttyUSB0", cfg.Radio.Device)
		assert.True(t, cfg.Hardware.EnableGPIO)
		assert.Equal(t, 5, cfg.Hardware.KeyGPIOPin)
		assert.Equal(t, 6, cfg.Hardware.PTTGPIOPin)
		assert.Equal(t, 9090, cfg.Web.Port)
		assert.Equal(t, 500, cfg.Storage.MaxTransmissions)
		assert.Equal(t, "debug", cfg.Logging.Level)
		assert.True(t, cfg.Logging.Console)
	})

	t.Run("Config With Defaults", func(t *testing.T) {
		path := writeConfig(t, tempDir, "minimal.yaml", `
station:
  callsign: "N0CALL"
`)

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, 10, cfg.Beacon.TickIntervalMs)
		assert.Equal(t, BackendSQLite, cfg.Beacon.SettingsBackend)
		assert.Equal(t, "mock", cfg.Radio.Model)
		assert.Equal(t, "FM", cfg.Radio.Mode)
		assert.Equal(t, 17, cfg.Hardware.KeyGPIOPin)
		assert.Equal(t, 18, cfg.Hardware.PTTGPIOPin)
		assert.Equal(t, 8080, cfg.Web.Port)
		assert.Equal(t, "0.0.0.0", cfg.Web.BindAddress)
		assert.Equal(t, "/tmp/beacond.sock", cfg.API.UnixSocket)
		assert.Equal(t, 10000, cfg.Storage.MaxTransmissions)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, 10, cfg.Logging.MaxSize)
	})

	t.Run("File Not Found", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(tempDir, "missing.yaml"))
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("Invalid YAML", func(t *testing.T) {
		path := writeConfig(t, tempDir, "invalid.yaml", "station:\n  callsign: [unclosed\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Station.Callsign = "K3DEP"
		cfg.ApplyDefaults()
		return cfg
	}

	t.Run("Valid Config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	testCases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"Missing Callsign", func(c *Config) { c.Station.Callsign = "" }, "callsign is required"},
		{"Tick Too Long", func(c *Config) { c.Beacon.TickIntervalMs = 5000 }, "tick interval"},
		{"Unknown Backend", func(c *Config) { c.Beacon.SettingsBackend = "flash" }, "unknown settings backend"},
		{"EEPROM Without Path", func(c *Config) {
			c.Beacon.SettingsBackend = BackendEEPROM
			c.Beacon.EEPROMPath = ""
		}, "eeprom path is required"},
		{"Shared GPIO Pin", func(c *Config) {
			c.Hardware.EnableGPIO = true
			c.Hardware.KeyGPIOPin = 18
		}, "must differ"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestBeaconTickInterval(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	assert.Equal(t, 10*time.Millisecond, cfg.BeaconTickInterval())

	cfg.Beacon.TickIntervalMs = 25
	assert.Equal(t, 25*time.Millisecond, cfg.BeaconTickInterval())
}
