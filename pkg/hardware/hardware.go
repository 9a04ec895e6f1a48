package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/cwbeacon/pkg/logging"
)

// HardwareConfig represents hardware configuration
type HardwareConfig struct {
	EnableGPIO     bool
	GPIOBasePath   string
	KeyGPIOPin     int
	PTTGPIOPin     int
	StatusLEDPin   int
	EnableRadio    bool
	RadioModel     string
	RadioDevice    string
	RadioBaudRate  int
	RadioMode      string
	RadioBandwidth int
}

// HardwareManager owns the GPIO lines and the radio. It is the beacon's
// RadioControl: PTT and the status LED follow each transmission and the
// configured receive mode is restored afterwards.
type HardwareManager struct {
	config HardwareConfig
	mutex  sync.RWMutex

	gpio  GPIOInterface
	radio RadioInterface
	keyer *GPIOKeyer

	pttActive   bool
	initialized bool
}

// NewHardwareManager creates a new hardware manager
func NewHardwareManager(config HardwareConfig) *HardwareManager {
	if config.RadioMode == "" {
		config.RadioMode = ModeFM
	}
	if config.RadioBandwidth == 0 {
		config.RadioBandwidth = BandwidthNarrow
	}
	return &HardwareManager{config: config}
}

// Initialize initializes all hardware interfaces
func (h *HardwareManager) Initialize() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.initialized {
		return nil
	}

	if h.config.EnableGPIO {
		h.gpio = NewLinuxGPIO(h.config.GPIOBasePath)
	} else {
		h.gpio = NewMockGPIO()
	}
	if err := h.gpio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize GPIO: %w", err)
	}
	h.keyer = NewGPIOKeyer(h.gpio, h.config.KeyGPIOPin)

	if h.config.EnableRadio {
		h.radio = NewMockRadio(RadioConfig{
			Model:    h.config.RadioModel,
			Device:   h.config.RadioDevice,
			BaudRate: h.config.RadioBaudRate,
			Enabled:  true,
		})
		if err := h.radio.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize radio: %w", err)
		}
		if err := h.radio.SetMode(h.config.RadioMode, h.config.RadioBandwidth); err != nil {
			return fmt.Errorf("failed to set radio mode: %w", err)
		}
	}

	h.initialized = true
	logging.Info("hardware", "initialized", logging.Fields{
		"gpio":    h.config.EnableGPIO,
		"key_pin": h.config.KeyGPIOPin,
		"ptt_pin": h.config.PTTGPIOPin,
		"radio":   h.config.EnableRadio,
	})
	return nil
}

// Close shuts down all hardware interfaces
func (h *HardwareManager) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.initialized {
		return nil
	}

	h.keyer.EndToneSession()
	if h.pttActive {
		h.setPTTLocked(false)
	}

	if h.radio != nil {
		if err := h.radio.Close(); err != nil {
			logging.Warn("hardware", "error closing radio", logging.Fields{"error": err})
		}
	}
	if err := h.gpio.Close(); err != nil {
		logging.Warn("hardware", "error closing GPIO", logging.Fields{"error": err})
	}

	h.initialized = false
	logging.Info("hardware", "shut down")
	return nil
}

// Transmitter returns the keyer driving the key line; nil before Initialize
func (h *HardwareManager) Transmitter() *GPIOKeyer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.keyer
}

// SetPTT controls the PTT output
func (h *HardwareManager) SetPTT(active bool) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.setPTTLocked(active)
}

// setPTTLocked sets PTT state (must be called with lock held)
func (h *HardwareManager) setPTTLocked(active bool) error {
	if !h.initialized {
		return fmt.Errorf("hardware not initialized")
	}

	if err := h.gpio.SetPin(h.config.PTTGPIOPin, active); err != nil {
		return fmt.Errorf("failed to set PTT: %w", err)
	}
	if h.radio != nil {
		if err := h.radio.SetPTT(active); err != nil {
			return fmt.Errorf("failed to set radio PTT: %w", err)
		}
	}
	h.pttActive = active
	return nil
}

// GetPTT returns the current PTT state
func (h *HardwareManager) GetPTT() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.pttActive
}

// SetStatusLED controls the status LED
func (h *HardwareManager) SetStatusLED(active bool) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.initialized {
		return fmt.Errorf("hardware not initialized")
	}
	if err := h.gpio.SetPin(h.config.StatusLEDPin, active); err != nil {
		return fmt.Errorf("failed to set status LED: %w", err)
	}
	return nil
}

// PrepareTransmit keys PTT and lights the status LED
func (h *HardwareManager) PrepareTransmit() {
	if err := h.SetPTT(true); err != nil {
		logging.Error("hardware", "prepare transmit failed", logging.Fields{"error": err})
	}
	if err := h.SetStatusLED(true); err != nil {
		logging.Warn("hardware", "status LED failed", logging.Fields{"error": err})
	}
}

// EndTransmit releases PTT and the status LED
func (h *HardwareManager) EndTransmit() {
	if err := h.SetPTT(false); err != nil {
		logging.Error("hardware", "end transmit failed", logging.Fields{"error": err})
	}
	if err := h.SetStatusLED(false); err != nil {
		logging.Warn("hardware", "status LED failed", logging.Fields{"error": err})
	}
}

// SelectForegroundMode puts the radio back in its configured receive mode
func (h *HardwareManager) SelectForegroundMode() {
	h.mutex.RLock()
	radio := h.radio
	mode, bandwidth := h.config.RadioMode, h.config.RadioBandwidth
	h.mutex.RUnlock()

	if radio == nil {
		return
	}
	if err := radio.SetMode(mode, bandwidth); err != nil {
		logging.Error("hardware", "failed to restore radio mode", logging.Fields{"error": err})
	}
}

// IsInitialized returns whether hardware is initialized
func (h *HardwareManager) IsInitialized() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.initialized
}

// GetConfig returns the hardware configuration
func (h *HardwareManager) GetConfig() HardwareConfig {
	return h.config
}

// GetGPIO returns the GPIO interface for direct access
func (h *HardwareManager) GetGPIO() GPIOInterface {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.gpio
}

// GetRadio returns the radio interface for direct access
func (h *HardwareManager) GetRadio() RadioInterface {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.radio
}

// IsRadioConnected returns whether the radio is connected
func (h *HardwareManager) IsRadioConnected() bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.radio != nil && h.radio.IsConnected()
}

// GetRadioInfo gets radio information
func (h *HardwareManager) GetRadioInfo() (RadioInfo, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if !h.initialized || h.radio == nil {
		return RadioInfo{}, fmt.Errorf("radio not initialized")
	}
	return h.radio.GetRadioInfo()
}
