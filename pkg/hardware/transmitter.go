package hardware

import (
	"sync"
	"time"

	"github.com/dougsko/cwbeacon/pkg/logging"
	"github.com/dougsko/cwbeacon/pkg/morse"
)

// GPIOKeyer implements morse.Transmitter by driving a key line. The tone
// itself is produced by the radio from the programmed register.
type GPIOKeyer struct {
	gpio GPIOInterface
	pin  int

	mu           sync.Mutex
	toneRegister uint16
	params       morse.ToneParams
	session      bool
	keyed        bool
}

// NewGPIOKeyer creates a keyer on the given GPIO pin
func NewGPIOKeyer(gpio GPIOInterface, pin int) *GPIOKeyer {
	return &GPIOKeyer{gpio: gpio, pin: pin}
}

// BeginToneSession mutes the key line and programs the tone register
func (k *GPIOKeyer) BeginToneSession(params morse.ToneParams) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.setKeyLocked(false)
	k.params = params
	k.toneRegister = ToneRegister(params.ToneHz)
	k.session = true

	logging.Debug("keyer", "tone session started", logging.Fields{
		"tone_hz":  params.ToneHz,
		"register": k.toneRegister,
		"mode":     params.Mode,
	})
}

// KeyOn starts the tone
func (k *GPIOKeyer) KeyOn() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.session {
		k.setKeyLocked(true)
	}
}

// KeyOff stops the tone
func (k *GPIOKeyer) KeyOff() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.setKeyLocked(false)
}

// EndToneSession releases the key line and clears the tone register
func (k *GPIOKeyer) EndToneSession() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.keyed {
		k.setKeyLocked(false)
	}
	k.toneRegister = 0
	k.session = false
}

// ToneRegister returns the currently programmed register, zero when idle
func (k *GPIOKeyer) ToneRegister() uint16 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.toneRegister
}

// Keyed reports whether the key line is asserted
func (k *GPIOKeyer) Keyed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.keyed
}

func (k *GPIOKeyer) setKeyLocked(on bool) {
	if err := k.gpio.SetPin(k.pin, on); err != nil {
		logging.Warn("keyer", "failed to drive key line", logging.Fields{"pin": k.pin, "error": err})
		return
	}
	k.keyed = on
}

// RealClock blocks on the wall clock
type RealClock struct{}

// DelayMs sleeps for ms milliseconds
func (RealClock) DelayMs(ms uint32) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// VirtualClock advances instantly; used to run keying at test speed
type VirtualClock struct {
	mu  sync.Mutex
	now uint64
}

// DelayMs advances the clock by ms
func (c *VirtualClock) DelayMs(ms uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += uint64(ms)
}

// NowMs returns the elapsed virtual milliseconds
func (c *VirtualClock) NowMs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Now maps the virtual clock onto a time.Time starting at the Unix epoch
func (c *VirtualClock) Now() time.Time {
	return time.UnixMilli(int64(c.NowMs())).UTC()
}

// EventType is a transmitter call recorded by MockTransmitter
type EventType string

const (
	EventBegin  EventType = "BEGIN"
	EventKeyOn  EventType = "KEY_ON"
	EventKeyOff EventType = "KEY_OFF"
	EventEnd    EventType = "END"
)

// Event is one recorded transmitter call
type Event struct {
	Type   EventType
	AtMs   uint64
	Params morse.ToneParams
}

// MockTransmitter implements morse.Transmitter, recording every call with
// the time read from its clock
type MockTransmitter struct {
	clock  *VirtualClock
	mu     sync.Mutex
	events []Event
}

// NewMockTransmitter creates a recorder timestamping against clock
func NewMockTransmitter(clock *VirtualClock) *MockTransmitter {
	return &MockTransmitter{clock: clock}
}

func (m *MockTransmitter) record(t EventType, params morse.ToneParams) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Event{Type: t, AtMs: m.clock.NowMs(), Params: params})
}

// BeginToneSession records session setup
func (m *MockTransmitter) BeginToneSession(params morse.ToneParams) {
	m.record(EventBegin, params)
}

// KeyOn records a key down
func (m *MockTransmitter) KeyOn() { m.record(EventKeyOn, morse.ToneParams{}) }

// KeyOff records a key up
func (m *MockTransmitter) KeyOff() { m.record(EventKeyOff, morse.ToneParams{}) }

// EndToneSession records teardown
func (m *MockTransmitter) EndToneSession() { m.record(EventEnd, morse.ToneParams{}) }

// Events returns a copy of everything recorded so far
func (m *MockTransmitter) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Reset discards recorded events
func (m *MockTransmitter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// KeyedMs sums the time between each KeyOn and the following KeyOff
func (m *MockTransmitter) KeyedMs() uint64 {
	var total, onAt uint64
	on := false
	for _, e := range m.Events() {
		switch e.Type {
		case EventKeyOn:
			on, onAt = true, e.AtMs
		case EventKeyOff:
			if on {
				total += e.AtMs - onAt
				on = false
			}
		}
	}
	return total
}

// Count returns how many events of type t were recorded
func (m *MockTransmitter) Count(t EventType) int {
	n := 0
	for _, e := range m.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}
