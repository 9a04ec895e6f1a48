package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/cwbeacon/pkg/logging"
)

// GPIOInterface defines GPIO operations. The key line, PTT line and status
// LED all go through it, so tests swap in MockGPIO.
type GPIOInterface interface {
	Initialize() error
	Close() error
	SetPin(pin int, value bool) error
	GetPin(pin int) (bool, error)
}

// LinuxGPIO implements GPIOInterface using the sysfs GPIO class
type LinuxGPIO struct {
	basePath     string
	exportedPins map[int]string // pin -> direction
	mutex        sync.Mutex
}

// NewLinuxGPIO creates a sysfs GPIO rooted at basePath (normally /sys/class/gpio)
func NewLinuxGPIO(basePath string) *LinuxGPIO {
	return &LinuxGPIO{
		basePath:     basePath,
		exportedPins: make(map[int]string),
	}
}

// Initialize checks that the sysfs tree is present
func (g *LinuxGPIO) Initialize() error {
	// Check if we have access to GPIO
	if _, err := os.Stat(g.basePath); err != nil {
		return fmt.Errorf("GPIO not available at %s: %w", g.basePath, err)
	}

	logging.Info("gpio", "initialized", logging.Fields{"path": g.basePath})
	return nil
}

// Close drives every output low and unexports all pins
func (g *LinuxGPIO) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Leave every output low so the transmitter is never left keyed,
	// then unexport all exported pins
	for pin, direction := range g.exportedPins {
		if direction == "out" {
			os.WriteFile(g.pinFile(pin, "value"), []byte("0"), 0644)
		}
		if err := g.unexportPin(pin); err != nil {
			logging.Warn("gpio", "unexport failed", logging.Fields{"pin": pin, "error": err})
		}
	}
	g.exportedPins = make(map[int]string)

	logging.Info("gpio", "closed")
	return nil
}

// SetPin drives an output pin
func (g *LinuxGPIO) SetPin(pin int, value bool) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Export pin and set it as an output if not already
	if err := g.ensureDirection(pin, "out"); err != nil {
		return err
	}

	// Set pin value
	valueStr := "0"
	if value {
		valueStr = "1"
	}
	if err := os.WriteFile(g.pinFile(pin, "value"), []byte(valueStr), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d value: %w", pin, err)
	}
	return nil
}

// GetPin reads an input pin
func (g *LinuxGPIO) GetPin(pin int) (bool, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	// Pins we already drive are read back as-is; anything else is
	// exported as an input first
	if _, ok := g.exportedPins[pin]; !ok {
		if err := g.ensureDirection(pin, "in"); err != nil {
			return false, err
		}
	}

	// Read pin value
	data, err := os.ReadFile(g.pinFile(pin, "value"))
	if err != nil {
		return false, fmt.Errorf("failed to read pin %d value: %w", pin, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

// pinFile returns the path of a per-pin sysfs attribute
func (g *LinuxGPIO) pinFile(pin int, name string) string {
	return filepath.Join(g.basePath, fmt.Sprintf("gpio%d", pin), name)
}

// ensureDirection exports pin if needed and sets its direction
func (g *LinuxGPIO) ensureDirection(pin int, direction string) error {
	if current, ok := g.exportedPins[pin]; ok && current == direction {
		return nil
	}

	if err := g.exportPin(pin); err != nil {
		return err
	}
	if err := os.WriteFile(g.pinFile(pin, "direction"), []byte(direction), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d direction to %s: %w", pin, direction, err)
	}

	g.exportedPins[pin] = direction
	return nil
}

// exportPin exports a GPIO pin
func (g *LinuxGPIO) exportPin(pin int) error {
	// Already exported, possibly by another process
	pinPath := filepath.Dir(g.pinFile(pin, "value"))
	if _, err := os.Stat(pinPath); err == nil {
		return nil
	}

	exportPath := filepath.Join(g.basePath, "export")
	if err := os.WriteFile(exportPath, []byte(strconv.Itoa(pin)), 0644); err != nil {
		return fmt.Errorf("failed to export GPIO pin %d: %w", pin, err)
	}

	// The kernel creates the pin directory asynchronously
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(pinPath); err == nil {
			logging.Debug("gpio", "exported pin", logging.Fields{"pin": pin})
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("pin %d directory did not appear after export", pin)
}

// unexportPin unexports a GPIO pin
func (g *LinuxGPIO) unexportPin(pin int) error {
	unexportPath := filepath.Join(g.basePath, "unexport")
	if err := os.WriteFile(unexportPath, []byte(strconv.Itoa(pin)), 0644); err != nil {
		return fmt.Errorf("failed to unexport GPIO pin %d: %w", pin, err)
	}
	return nil
}
