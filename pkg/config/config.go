package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Settings backends
const (
	BackendSQLite = "sqlite"
	BackendEEPROM = "eeprom"
)

// Config represents the beacond configuration
type Config struct {
	Station struct {
		Callsign string `yaml:"callsign"`
		Grid     string `yaml:"grid"`
	} `yaml:"station"`

	Beacon struct {
		TickIntervalMs  int    `yaml:"tick_interval_ms"`
		SettingsBackend string `yaml:"settings_backend"`
		EEPROMPath      string `yaml:"eeprom_path"`
	} `yaml:"beacon"`

	Radio struct {
		Model     string `yaml:"model"`
		Device    string `yaml:"device"`
		BaudRate  int    `yaml:"baud_rate"`
		Mode      string `yaml:"mode"`
		Bandwidth int    `yaml:"bandwidth"`
	} `yaml:"radio"`

	Hardware struct {
		EnableGPIO   bool   `yaml:"enable_gpio"`
		GPIOBasePath string `yaml:"gpio_base_path"`
		KeyGPIOPin   int    `yaml:"key_gpio_pin"`
		PTTGPIOPin   int    `yaml:"ptt_gpio_pin"`
		StatusLEDPin int    `yaml:"status_led_pin"`
	} `yaml:"hardware"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	API struct {
		UnixSocket string `yaml:"unix_socket"`
	} `yaml:"api"`

	Storage struct {
		DatabasePath     string `yaml:"database_path"`
		MaxTransmissions int    `yaml:"max_transmissions"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	if c.Beacon.TickIntervalMs == 0 {
		c.Beacon.TickIntervalMs = 10
	}
	if c.Beacon.SettingsBackend == "" {
		c.Beacon.SettingsBackend = BackendSQLite
	}
	if c.Beacon.EEPROMPath == "" {
		c.Beacon.EEPROMPath = "./beacon.eeprom"
	}
	if c.Radio.Model == "" {
		c.Radio.Model = "mock"
	}
	if c.Radio.BaudRate == 0 {
		c.Radio.BaudRate = 38400
	}
	if c.Radio.Mode == "" {
		c.Radio.Mode = "FM"
	}
	if c.Radio.Bandwidth == 0 {
		c.Radio.Bandwidth = 12500
	}
	if c.Hardware.GPIOBasePath == "" {
		c.Hardware.GPIOBasePath = "/sys/class/gpio"
	}
	if c.Hardware.KeyGPIOPin == 0 {
		c.Hardware.KeyGPIOPin = 17
	}
	if c.Hardware.PTTGPIOPin == 0 {
		c.Hardware.PTTGPIOPin = 18
	}
	if c.Hardware.StatusLEDPin == 0 {
		c.Hardware.StatusLEDPin = 24
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.API.UnixSocket == "" {
		c.API.UnixSocket = "/tmp/beacond.sock"
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./beacond.db"
	}
	if c.Storage.MaxTransmissions == 0 {
		c.Storage.MaxTransmissions = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Station.Callsign == "" {
		return fmt.Errorf("station callsign is required")
	}
	if c.Beacon.TickIntervalMs < 1 || c.Beacon.TickIntervalMs > 1000 {
		return fmt.Errorf("beacon tick interval must be between 1 and 1000 ms, got %d", c.Beacon.TickIntervalMs)
	}
	switch c.Beacon.SettingsBackend {
	case BackendSQLite:
	case BackendEEPROM:
		if c.Beacon.EEPROMPath == "" {
			return fmt.Errorf("eeprom path is required for the eeprom settings backend")
		}
	default:
		return fmt.Errorf("unknown settings backend: %s", c.Beacon.SettingsBackend)
	}
	if c.Hardware.EnableGPIO && c.Hardware.KeyGPIOPin == c.Hardware.PTTGPIOPin {
		return fmt.Errorf("key and PTT GPIO pins must differ")
	}
	return nil
}

// BeaconTickInterval returns the scheduler tick period
func (c *Config) BeaconTickInterval() time.Duration {
	return time.Duration(c.Beacon.TickIntervalMs) * time.Millisecond
}
