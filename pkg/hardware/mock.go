package hardware

import (
	"sync"

	"github.com/dougsko/cwbeacon/pkg/logging"
)

// MockGPIO implements GPIOInterface in memory
type MockGPIO struct {
	pins    map[int]bool
	toggles map[int]int
	mu      sync.RWMutex
}

// NewMockGPIO creates a new mock GPIO interface
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		pins:    make(map[int]bool),
		toggles: make(map[int]int),
	}
}

// Initialize initializes the mock GPIO
func (g *MockGPIO) Initialize() error {
	logging.Debug("gpio", "mock initialized")
	return nil
}

// Close closes the mock GPIO
func (g *MockGPIO) Close() error {
	logging.Debug("gpio", "mock closed")
	return nil
}

// SetPin sets a GPIO pin value
func (g *MockGPIO) SetPin(pin int, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pins[pin] != value {
		g.toggles[pin]++
	}
	g.pins[pin] = value
	return nil
}

// GetPin gets a GPIO pin value
func (g *MockGPIO) GetPin(pin int) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pins[pin], nil
}

// Toggles returns how many times pin changed state
func (g *MockGPIO) Toggles(pin int) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.toggles[pin]
}
