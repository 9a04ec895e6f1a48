package settings

import (
	"fmt"
	"strconv"
	"strings"
)

// Limits for a usable record
const (
	MinWPM          = 1
	MaxWPM          = 99
	MinToneHz       = 1
	MaxToneHz       = 2000
	MinSOSDutyCycle = 1
	MaxSOSDutyCycle = 50
	MaxCallsignLen  = 15
	MaxMessageLen   = 10
	MessageSlots    = 2
)

// BeaconConfig is the persisted beacon settings record
type BeaconConfig struct {
	Messages [MessageSlots]string `json:"messages"`

	Enabled   bool   `json:"enabled"`
	WPM       uint8  `json:"wpm"`
	ToneHz    uint16 `json:"tone_hz"`
	Mode      uint8  `json:"mode"`
	Bandwidth uint8  `json:"bandwidth"`
	TxMode    uint8  `json:"tx_mode"`

	Callsign   string `json:"callsign"`
	GridSquare string `json:"grid_square"`

	FoxHuntEnabled bool   `json:"fox_hunt_enabled"`
	PipCount       uint8  `json:"pip_count"`
	PipInterval    uint16 `json:"pip_interval"` // seconds
	IDInterval     uint16 `json:"id_interval"`  // minutes

	SOSModeEnabled bool  `json:"sos_mode_enabled"`
	SOSDutyCycle   uint8 `json:"sos_duty_cycle"` // percent
}

// Defaults returns the factory record written when storage holds no usable settings
func Defaults() BeaconConfig {
	return BeaconConfig{
		Messages:       [MessageSlots]string{"CQ CQ", "DE N0CALL"},
		Enabled:        false,
		WPM:            12,
		ToneHz:         600,
		Callsign:       "N0CALL",
		GridSquare:     "N0GRID",
		FoxHuntEnabled: false,
		PipCount:       5,
		PipInterval:    15,
		IDInterval:     10,
		SOSModeEnabled: false,
		SOSDutyCycle:   20,
	}
}

// Initialized reports whether the timing fields hold values a loader can trust
func (c *BeaconConfig) Initialized() bool {
	return c.WPM >= MinWPM && c.WPM <= MaxWPM &&
		c.ToneHz >= MinToneHz && c.ToneHz <= MaxToneHz
}

// Validate checks an edited record before it is accepted
func (c *BeaconConfig) Validate() error {
	return c.validateEdit(nil)
}

// validateEdit checks c as an edit of prev. A stored sos_duty_cycle outside
// 1-50 is only rejected when the edit changes it: Load accepts such a record
// and the scheduler keys SOS with the fallback pause, so unrelated edits
// must still go through.
func (c *BeaconConfig) validateEdit(prev *BeaconConfig) error {
	if c.WPM < MinWPM || c.WPM > MaxWPM {
		return fmt.Errorf("wpm must be between %d and %d, got %d", MinWPM, MaxWPM, c.WPM)
	}
	if c.ToneHz < MinToneHz || c.ToneHz > MaxToneHz {
		return fmt.Errorf("tone_hz must be between %d and %d, got %d", MinToneHz, MaxToneHz, c.ToneHz)
	}
	keptDuty := prev != nil && prev.SOSDutyCycle == c.SOSDutyCycle
	if !keptDuty && (c.SOSDutyCycle < MinSOSDutyCycle || c.SOSDutyCycle > MaxSOSDutyCycle) {
		return fmt.Errorf("sos_duty_cycle must be between %d and %d, got %d",
			MinSOSDutyCycle, MaxSOSDutyCycle, c.SOSDutyCycle)
	}
	if len(c.Callsign) > MaxCallsignLen {
		return fmt.Errorf("callsign longer than %d characters", MaxCallsignLen)
	}
	if len(c.GridSquare) > MaxCallsignLen {
		return fmt.Errorf("grid_square longer than %d characters", MaxCallsignLen)
	}
	for i, msg := range c.Messages {
		if len(msg) > MaxMessageLen {
			return fmt.Errorf("message %d longer than %d characters", i+1, MaxMessageLen)
		}
	}
	return nil
}

// Keys lists the names accepted by Get and Set
var Keys = []string{
	"enabled", "wpm", "tone_hz", "mode", "bandwidth", "tx_mode",
	"callsign", "grid_square", "message1", "message2",
	"fox_hunt_enabled", "pip_count", "pip_interval", "id_interval",
	"sos_mode_enabled", "sos_duty_cycle",
}

// Get returns a single field formatted as text
func (c *BeaconConfig) Get(key string) (string, error) {
	switch strings.ToLower(key) {
	case "enabled":
		return strconv.FormatBool(c.Enabled), nil
	case "wpm":
		return strconv.Itoa(int(c.WPM)), nil
	case "tone_hz":
		return strconv.Itoa(int(c.ToneHz)), nil
	case "mode":
		return strconv.Itoa(int(c.Mode)), nil
	case "bandwidth":
		return strconv.Itoa(int(c.Bandwidth)), nil
	case "tx_mode":
		return strconv.Itoa(int(c.TxMode)), nil
	case "callsign":
		return c.Callsign, nil
	case "grid_square":
		return c.GridSquare, nil
	case "message1":
		return c.Messages[0], nil
	case "message2":
		return c.Messages[1], nil
	case "fox_hunt_enabled":
		return strconv.FormatBool(c.FoxHuntEnabled), nil
	case "pip_count":
		return strconv.Itoa(int(c.PipCount)), nil
	case "pip_interval":
		return strconv.Itoa(int(c.PipInterval)), nil
	case "id_interval":
		return strconv.Itoa(int(c.IDInterval)), nil
	case "sos_mode_enabled":
		return strconv.FormatBool(c.SOSModeEnabled), nil
	case "sos_duty_cycle":
		return strconv.Itoa(int(c.SOSDutyCycle)), nil
	default:
		return "", fmt.Errorf("unknown setting: %s", key)
	}
}

// Set parses value into the named field. The record is not validated here;
// callers run Validate once all edits are applied.
func (c *BeaconConfig) Set(key, value string) error {
	value = strings.TrimSpace(value)

	switch strings.ToLower(key) {
	case "enabled":
		return setBool(&c.Enabled, value)
	case "wpm":
		return setUint8(&c.WPM, value)
	case "tone_hz":
		return setUint16(&c.ToneHz, value)
	case "mode":
		return setUint8(&c.Mode, value)
	case "bandwidth":
		return setUint8(&c.Bandwidth, value)
	case "tx_mode":
		return setUint8(&c.TxMode, value)
	case "callsign":
		c.Callsign = strings.ToUpper(value)
	case "grid_square":
		c.GridSquare = strings.ToUpper(value)
	case "message1":
		c.Messages[0] = strings.ToUpper(value)
	case "message2":
		c.Messages[1] = strings.ToUpper(value)
	case "fox_hunt_enabled":
		return setBool(&c.FoxHuntEnabled, value)
	case "pip_count":
		return setUint8(&c.PipCount, value)
	case "pip_interval":
		return setUint16(&c.PipInterval, value)
	case "id_interval":
		return setUint16(&c.IDInterval, value)
	case "sos_mode_enabled":
		return setBool(&c.SOSModeEnabled, value)
	case "sos_duty_cycle":
		return setUint8(&c.SOSDutyCycle, value)
	default:
		return fmt.Errorf("unknown setting: %s", key)
	}
	return nil
}

func setBool(dst *bool, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", value, err)
	}
	*dst = v
	return nil
}

func setUint8(dst *uint8, value string) error {
	v, err := strconv.ParseUint(value, 10, 8)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", value, err)
	}
	*dst = uint8(v)
	return nil
}

func setUint16(dst *uint16, value string) error {
	v, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return fmt.Errorf("invalid value %q: %w", value, err)
	}
	*dst = uint16(v)
	return nil
}
