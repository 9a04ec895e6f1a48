package beacon

import (
	"errors"
	"time"

	"github.com/dougsko/cwbeacon/pkg/morse"
	"github.com/dougsko/cwbeacon/pkg/settings"
)

const (
	// DefaultTickMs is the period the countdown arithmetic is calibrated for
	DefaultTickMs = 10

	// SOSWPM is the fixed keying rate of the SOS beacon
	SOSWPM = 10

	// sosFallbackPauseMs is used when the duty cycle is out of range
	sosFallbackPauseMs = 5000
)

// ErrBusy is returned when a transmission is requested while another is in flight
var ErrBusy = errors.New("transmission in progress")

// RadioControl hands the RF front end to the beacon and back
type RadioControl interface {
	PrepareTransmit()
	EndTransmit()
	SelectForegroundMode()
}

// Kind identifies what a transmission was for
type Kind string

const (
	KindPips   Kind = "PIPS"
	KindID     Kind = "ID"
	KindSOS    Kind = "SOS"
	KindManual Kind = "MANUAL"
)

// Transmission describes one completed keying sequence
type Transmission struct {
	Kind     Kind          `json:"kind"`
	Payload  string        `json:"payload"`
	WPM      uint          `json:"wpm"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
}

// Recorder receives every keyed transmission after it completes
type Recorder interface {
	RecordTransmission(t Transmission)
}

// Countdowns is a snapshot of the remaining ticks of each timer
type Countdowns struct {
	Pip uint32 `json:"pip"`
	ID  uint32 `json:"id"`
	SOS uint32 `json:"sos"`
}

// Scheduler triggers pip bursts, identification and SOS from a periodic
// tick. It is not safe for concurrent use; all calls must come from the
// goroutine that drives the tick.
type Scheduler struct {
	keyer  *morse.Keyer
	radio  RadioControl
	tickMs uint32

	pipCountdown uint32
	idCountdown  uint32
	sosCountdown uint32
	transmitting bool

	recorder Recorder
	now      func() time.Time
}

// Option customises a Scheduler
type Option func(*Scheduler)

// WithTickMs sets the tick period the countdowns are scaled to
func WithTickMs(ms uint32) Option {
	return func(s *Scheduler) {
		if ms > 0 {
			s.tickMs = ms
		}
	}
}

// WithRecorder registers a recorder for completed transmissions
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorder = r
	}
}

// WithNow replaces the wall clock used to timestamp transmissions
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// NewScheduler creates a scheduler with all countdowns expired, so every
// enabled branch fires on the first tick.
func NewScheduler(keyer *morse.Keyer, radio RadioControl, opts ...Option) *Scheduler {
	s := &Scheduler{
		keyer:  keyer,
		radio:  radio,
		tickMs: DefaultTickMs,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TickMs returns the tick period in milliseconds
func (s *Scheduler) TickMs() uint32 {
	return s.tickMs
}

// Transmitting reports whether a sequence is in flight
func (s *Scheduler) Transmitting() bool {
	return s.transmitting
}

// Countdowns returns the remaining ticks of each timer
func (s *Scheduler) Countdowns() Countdowns {
	return Countdowns{Pip: s.pipCountdown, ID: s.idCountdown, SOS: s.sosCountdown}
}

// Tick advances the timers by one period and runs whatever expired. A
// transmission blocks inside Tick until it has been fully keyed.
func (s *Scheduler) Tick(cfg *settings.BeaconConfig) {
	if s.transmitting {
		return
	}

	if cfg.FoxHuntEnabled {
		s.tickPips(cfg)
		s.tickID(cfg)
	} else {
		s.pipCountdown = 0
		s.idCountdown = 0
	}

	if cfg.SOSModeEnabled {
		s.tickSOS(cfg)
	} else {
		s.sosCountdown = 0
	}
}

func (s *Scheduler) tickPips(cfg *settings.BeaconConfig) {
	if s.pipCountdown > 0 {
		s.pipCountdown--
		return
	}

	count := uint(cfg.PipCount)
	s.run(cfg, KindPips, "", uint(cfg.WPM), count > 0, func() {
		s.keyer.TransmitPips(cfg, count)
	})
	s.pipCountdown = s.secondsToTicks(uint32(cfg.PipInterval))
}

func (s *Scheduler) tickID(cfg *settings.BeaconConfig) {
	if s.idCountdown > 0 {
		s.idCountdown--
		return
	}

	callsign := cfg.Callsign
	s.run(cfg, KindID, callsign, uint(cfg.WPM), callsign != "", func() {
		s.keyer.TransmitText(cfg, callsign, uint(cfg.WPM))
	})
	s.idCountdown = s.secondsToTicks(uint32(cfg.IDInterval) * 60)
}

func (s *Scheduler) tickSOS(cfg *settings.BeaconConfig) {
	if s.sosCountdown > 0 {
		s.sosCountdown--
		return
	}

	payload := SOSPayload(cfg.GridSquare)
	s.run(cfg, KindSOS, payload, SOSWPM, true, func() {
		s.keyer.TransmitText(cfg, payload, SOSWPM)
	})
	s.sosCountdown = SOSPauseMs(payload, cfg.SOSDutyCycle) / s.tickMs
}

// Transmit keys payload immediately outside the timers, under the same
// mutual exclusion as the scheduled sequences.
func (s *Scheduler) Transmit(cfg *settings.BeaconConfig, payload string, wpm uint) error {
	if s.transmitting {
		return ErrBusy
	}
	s.run(cfg, KindManual, payload, wpm, payload != "", func() {
		s.keyer.TransmitText(cfg, payload, wpm)
	})
	return nil
}

// TransmitPips keys count pips immediately outside the timers
func (s *Scheduler) TransmitPips(cfg *settings.BeaconConfig, count uint) error {
	if s.transmitting {
		return ErrBusy
	}
	s.run(cfg, KindPips, "", uint(cfg.WPM), count > 0, func() {
		s.keyer.TransmitPips(cfg, count)
	})
	return nil
}

// run holds the transmitting flag and the RF front end around one sequence.
// key is skipped when there is nothing to send. Only sequences that reach
// the air are recorded.
func (s *Scheduler) run(cfg *settings.BeaconConfig, kind Kind, payload string, wpm uint, hasPayload bool, key func()) {
	s.transmitting = true
	start := s.now()

	s.radio.PrepareTransmit()
	if hasPayload {
		key()
	}
	s.radio.EndTransmit()
	s.radio.SelectForegroundMode()

	s.transmitting = false

	if hasPayload && cfg.Enabled && s.recorder != nil {
		s.recorder.RecordTransmission(Transmission{
			Kind:     kind,
			Payload:  payload,
			WPM:      wpm,
			Start:    start,
			Duration: s.now().Sub(start),
		})
	}
}

func (s *Scheduler) secondsToTicks(seconds uint32) uint32 {
	return seconds * 1000 / s.tickMs
}

// SOSPayload builds the SOS text, appending the grid square when one is set
func SOSPayload(grid string) string {
	if grid == "" {
		return "SOS"
	}
	return "SOS " + grid
}

// SOSPauseMs returns the idle time after an SOS burst that keeps on-air
// time at dutyCycle percent of the whole period. Duty cycles outside 1-50
// get a fixed pause.
func SOSPauseMs(payload string, dutyCycle uint8) uint32 {
	if dutyCycle == 0 || dutyCycle > settings.MaxSOSDutyCycle {
		return sosFallbackPauseMs
	}

	return DutyCyclePauseMs(morse.OnAirMs(payload, SOSWPM), morse.TotalDurationMs(payload, SOSWPM), dutyCycle)
}

// DutyCyclePauseMs returns how long to stay idle after a burst of txTimeMs,
// of which onAirMs was keyed, so keyed time is dutyCycle percent of the
// period. dutyCycle must be non-zero.
func DutyCyclePauseMs(onAirMs, txTimeMs uint32, dutyCycle uint8) uint32 {
	period := onAirMs * 100 / uint32(dutyCycle)
	if period <= txTimeMs {
		return 0
	}
	return period - txTimeMs
}
