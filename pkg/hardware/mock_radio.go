package hardware

import (
	"fmt"
	"sync"

	"github.com/dougsko/cwbeacon/pkg/logging"
)

// MockRadio implements RadioInterface without a CAT connection. It stands
// in for the transceiver's own control so PrepareTransmit and
// SelectForegroundMode can be exercised end to end.
type MockRadio struct {
	config RadioConfig
	mutex  sync.RWMutex

	// Mock state
	connected   bool
	mode        string
	bandwidth   int
	ptt         bool
	modeChanges int // successful SetMode calls, for tests
}

// NewMockRadio creates a new mock radio interface
func NewMockRadio(config RadioConfig) *MockRadio {
	return &MockRadio{
		config:    config,
		mode:      ModeFM,          // receive mode the beacon returns to
		bandwidth: BandwidthNarrow, // 12.5 kHz channel
	}
}

// Initialize opens the mock connection
func (r *MockRadio) Initialize() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.connected = true
	logging.Info("radio", "mock radio connected", logging.Fields{
		"model":  r.config.Model,
		"device": r.config.Device,
		"baud":   r.config.BaudRate,
	})
	return nil
}

// Close closes the mock connection
func (r *MockRadio) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.connected {
		return nil
	}
	r.connected = false
	// A closed radio is never left transmitting
	r.ptt = false
	logging.Info("radio", "mock radio closed")
	return nil
}

// SetMode sets the mock radio mode
func (r *MockRadio) SetMode(mode string, bandwidth int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.connected {
		return fmt.Errorf("radio not connected")
	}

	// Accept any mode; a real rig would reject what it cannot do
	r.mode = mode
	r.bandwidth = bandwidth
	r.modeChanges++
	return nil
}

// GetMode gets the mock radio mode
func (r *MockRadio) GetMode() (string, int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.connected {
		return "", 0, fmt.Errorf("radio not connected")
	}
	return r.mode, r.bandwidth, nil
}

// SetPTT sets the mock PTT state
func (r *MockRadio) SetPTT(state bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.connected {
		return fmt.Errorf("radio not connected")
	}
	r.ptt = state
	return nil
}

// GetPTT gets the mock PTT state
func (r *MockRadio) GetPTT() (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.connected {
		return false, fmt.Errorf("radio not connected")
	}
	return r.ptt, nil
}

// GetRadioInfo gets mock radio information
func (r *MockRadio) GetRadioInfo() (RadioInfo, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if !r.connected {
		return RadioInfo{}, fmt.Errorf("radio not connected")
	}

	// Return mock radio information
	return RadioInfo{
		Model:        r.config.Model + " (Mock)",
		Manufacturer: "MockRadio Inc.",
		Version:      "1.0.0-mock",
		Capabilities: []string{"Mode Control", "PTT Control"},
	}, nil
}

// IsConnected returns mock connection state
func (r *MockRadio) IsConnected() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.connected
}

// ModeChanges returns how many times SetMode succeeded
func (r *MockRadio) ModeChanges() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.modeChanges
}
