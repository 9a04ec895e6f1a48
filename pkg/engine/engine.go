package engine

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/cwbeacon/pkg/beacon"
	"github.com/dougsko/cwbeacon/pkg/config"
	"github.com/dougsko/cwbeacon/pkg/hardware"
	"github.com/dougsko/cwbeacon/pkg/logging"
	"github.com/dougsko/cwbeacon/pkg/morse"
	"github.com/dougsko/cwbeacon/pkg/protocol"
	"github.com/dougsko/cwbeacon/pkg/settings"
	"github.com/dougsko/cwbeacon/pkg/storage"
)

// Version is reported in status responses
const Version = "0.1.0"

var (
	// ErrDisabled is returned for manual sends while the beacon is disabled
	ErrDisabled = errors.New("beacon is disabled")
	// ErrNotRunning is returned when the engine has not been started
	ErrNotRunning = errors.New("engine is not running")
	// ErrNothingToSend is returned when text has no keyable characters
	ErrNothingToSend = errors.New("nothing to send")
	// ErrTooLarge is returned for manual sends over MaxManualText or MaxManualPips
	ErrTooLarge = errors.New("manual transmission too large")
)

// Limits on manual transmissions. The keyer cannot be interrupted, so these
// bound how long a request can hold off the beacon schedule.
const (
	MaxManualText = 64
	MaxManualPips = 255
)

// Option customises a CoreEngine
type Option func(*CoreEngine)

// WithTransmitter replaces the GPIO keyer
func WithTransmitter(tx morse.Transmitter) Option {
	return func(e *CoreEngine) { e.tx = tx }
}

// WithClock replaces the wall clock used between keying transitions
func WithClock(clock morse.Clock) Option {
	return func(e *CoreEngine) { e.clock = clock }
}

// WithSettingsStore replaces the configured settings backend
func WithSettingsStore(store settings.Store) Option {
	return func(e *CoreEngine) { e.settingsStore = store }
}

// request is a manual transmission handed to the tick goroutine
type request struct {
	text  string
	wpm   uint
	pips  bool
	count uint
}

// Queued describes an accepted manual transmission
type Queued struct {
	Kind        beacon.Kind `json:"kind"`
	Payload     string      `json:"payload"`
	WPM         uint        `json:"wpm"`
	EstimatedMs uint32      `json:"estimated_ms"`
}

// CoreEngine runs the beacon: a single goroutine drives the scheduler tick
// and executes manual transmissions between ticks.
type CoreEngine struct {
	config     *config.Config
	socketPath string
	listener   net.Listener
	running    bool
	mutex      sync.RWMutex
	startTime  time.Time

	hardwareManager *hardware.HardwareManager
	store           *storage.SQLiteStore
	settingsStore   settings.Store
	holder          *settings.Holder
	scheduler       *beacon.Scheduler

	tx    morse.Transmitter
	clock morse.Clock

	transmitting bool
	countdowns   beacon.Countdowns

	requests chan request
	stop     chan struct{}
	wg       sync.WaitGroup

	subMutex    sync.Mutex
	subscribers map[chan beacon.Transmission]struct{}

	connMutex sync.Mutex
	conns     map[net.Conn]struct{}
}

// NewCoreEngine creates a new core engine. socketPath may be empty to run
// without the control socket.
func NewCoreEngine(cfg *config.Config, socketPath string, opts ...Option) *CoreEngine {
	hardwareConfig := hardware.HardwareConfig{
		EnableGPIO:     cfg.Hardware.EnableGPIO,
		GPIOBasePath:   cfg.Hardware.GPIOBasePath,
		KeyGPIOPin:     cfg.Hardware.KeyGPIOPin,
		PTTGPIOPin:     cfg.Hardware.PTTGPIOPin,
		StatusLEDPin:   cfg.Hardware.StatusLEDPin,
		EnableRadio:    cfg.Radio.Model != "",
		RadioModel:     cfg.Radio.Model,
		RadioDevice:    cfg.Radio.Device,
		RadioBaudRate:  cfg.Radio.BaudRate,
		RadioMode:      cfg.Radio.Mode,
		RadioBandwidth: cfg.Radio.Bandwidth,
	}

	e := &CoreEngine{
		config:          cfg,
		socketPath:      socketPath,
		hardwareManager: hardware.NewHardwareManager(hardwareConfig),
		requests:        make(chan request, 1),
		subscribers:     make(map[chan beacon.Transmission]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start initializes hardware and storage, loads the settings record and
// starts the tick loop and control socket
func (e *CoreEngine) Start() error {
	if e.isRunning() {
		return nil
	}

	if err := e.hardwareManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize hardware manager: %w", err)
	}

	store, err := storage.NewSQLiteStore(e.config.Storage.DatabasePath, e.config.Storage.MaxTransmissions)
	if err != nil {
		e.hardwareManager.Close()
		return err
	}
	e.store = store

	if e.settingsStore == nil {
		if e.config.Beacon.SettingsBackend == config.BackendEEPROM {
			e.settingsStore = hardware.NewFileEEPROM(e.config.Beacon.EEPROMPath)
		} else {
			e.settingsStore = store
		}
	}

	if err := e.loadSettings(); err != nil {
		e.shutdownResources()
		return err
	}

	if e.tx == nil {
		e.tx = e.hardwareManager.Transmitter()
	}
	if e.clock == nil {
		e.clock = hardware.RealClock{}
	}
	e.scheduler = beacon.NewScheduler(
		morse.NewKeyer(e.tx, e.clock),
		&radioControl{engine: e},
		beacon.WithTickMs(uint32(e.config.Beacon.TickIntervalMs)),
		beacon.WithRecorder(e),
	)

	if e.socketPath != "" {
		os.Remove(e.socketPath)

		listener, err := net.Listen("unix", e.socketPath)
		if err != nil {
			e.shutdownResources()
			return fmt.Errorf("failed to create Unix socket: %w", err)
		}
		e.listener = listener

		if err := os.Chmod(e.socketPath, 0660); err != nil {
			logging.Warn("engine", "failed to set socket permissions", logging.Fields{"error": err})
		}
	}

	e.mutex.Lock()
	e.running = true
	e.startTime = time.Now()
	e.stop = make(chan struct{})
	e.mutex.Unlock()

	e.connMutex.Lock()
	e.conns = make(map[net.Conn]struct{})
	e.connMutex.Unlock()

	e.wg.Add(1)
	go e.tickLoop()

	if e.listener != nil {
		e.wg.Add(1)
		go e.acceptConnections()
		logging.Info("engine", "control socket listening", logging.Fields{"path": e.socketPath})
	}

	cfg := e.holder.Snapshot()
	logging.Info("engine", "beacon started", logging.Fields{
		"callsign": cfg.Callsign,
		"enabled":  cfg.Enabled,
		"fox_hunt": cfg.FoxHuntEnabled,
		"sos":      cfg.SOSModeEnabled,
		"tick_ms":  e.scheduler.TickMs(),
	})
	return nil
}

// loadSettings reads the record, seeding a freshly defaulted record with
// the station identity from the config file
func (e *CoreEngine) loadSettings() error {
	holder, defaulted, err := settings.NewHolder(e.settingsStore)
	if err != nil {
		return fmt.Errorf("failed to load beacon settings: %w", err)
	}
	e.holder = holder

	if !defaulted {
		return nil
	}
	logging.Warn("engine", "settings record missing or invalid, defaults written")

	callsign := strings.ToUpper(strings.TrimSpace(e.config.Station.Callsign))
	grid := strings.ToUpper(strings.TrimSpace(e.config.Station.Grid))
	if callsign == "" && grid == "" {
		return nil
	}
	_, err = holder.Update(func(c *settings.BeaconConfig) error {
		if callsign != "" {
			c.Callsign = callsign
		}
		if grid != "" {
			c.GridSquare = grid
		}
		return nil
	})
	if err != nil {
		logging.Warn("engine", "station identity not applied to beacon settings", logging.Fields{"error": err})
	}
	return nil
}

// Stop stops the tick loop, waiting for a transmission in flight to finish
func (e *CoreEngine) Stop() error {
	e.mutex.Lock()
	if !e.running {
		e.mutex.Unlock()
		return nil
	}
	e.running = false
	close(e.stop)
	e.mutex.Unlock()

	if e.listener != nil {
		e.listener.Close()
	}
	e.closeConns()
	e.wg.Wait()

	e.shutdownResources()
	if e.socketPath != "" {
		os.Remove(e.socketPath)
	}

	e.subMutex.Lock()
	for ch := range e.subscribers {
		close(ch)
		delete(e.subscribers, ch)
	}
	e.subMutex.Unlock()

	logging.Info("engine", "beacon stopped")
	return nil
}

func (e *CoreEngine) shutdownResources() {
	if e.hardwareManager != nil {
		e.hardwareManager.Close()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logging.Warn("engine", "error closing store", logging.Fields{"error": err})
		}
	}
}

func (e *CoreEngine) isRunning() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.running
}

// tickLoop owns the scheduler. Ticks that arrive while a transmission is
// keyed are dropped by the ticker.
func (e *CoreEngine) tickLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.BeaconTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return

		case <-ticker.C:
			cfg := e.holder.Snapshot()
			e.scheduler.Tick(&cfg)
			e.publishCountdowns()

		case req := <-e.requests:
			cfg := e.holder.Snapshot()
			var err error
			if req.pips {
				err = e.scheduler.TransmitPips(&cfg, req.count)
			} else {
				err = e.scheduler.Transmit(&cfg, req.text, req.wpm)
			}
			if err != nil {
				logging.Warn("engine", "manual transmission rejected", logging.Fields{"error": err})
			}
		}
	}
}

func (e *CoreEngine) publishCountdowns() {
	countdowns := e.scheduler.Countdowns()
	e.mutex.Lock()
	e.countdowns = countdowns
	e.mutex.Unlock()
}

func (e *CoreEngine) setTransmitting(active bool) {
	e.mutex.Lock()
	e.transmitting = active
	e.mutex.Unlock()
}

// Transmitting reports whether a sequence is being keyed
func (e *CoreEngine) Transmitting() bool {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.transmitting
}

// radioControl hands the RF front end to the scheduler and mirrors the
// transmitting state for status readers on other goroutines
type radioControl struct {
	engine *CoreEngine
}

func (r *radioControl) PrepareTransmit() {
	r.engine.setTransmitting(true)
	r.engine.hardwareManager.PrepareTransmit()
}

func (r *radioControl) EndTransmit() {
	r.engine.hardwareManager.EndTransmit()
}

func (r *radioControl) SelectForegroundMode() {
	r.engine.hardwareManager.SelectForegroundMode()
	r.engine.setTransmitting(false)
}

// RecordTransmission implements beacon.Recorder: it persists, logs and
// broadcasts every completed transmission
func (e *CoreEngine) RecordTransmission(t beacon.Transmission) {
	e.store.RecordTransmission(t)

	logging.Info("engine", "transmission complete", logging.Fields{
		"kind":        t.Kind,
		"payload":     t.Payload,
		"wpm":         t.WPM,
		"duration_ms": t.Duration.Milliseconds(),
	})

	e.subMutex.Lock()
	defer e.subMutex.Unlock()
	for ch := range e.subscribers {
		select {
		case ch <- t:
		default:
			logging.Debug("engine", "subscriber slow, dropping event")
		}
	}
}

// Subscribe returns a channel receiving every completed transmission and a
// function to cancel the subscription. The channel is closed on cancel or
// when the engine stops.
func (e *CoreEngine) Subscribe() (<-chan beacon.Transmission, func()) {
	ch := make(chan beacon.Transmission, 16)

	e.subMutex.Lock()
	e.subscribers[ch] = struct{}{}
	e.subMutex.Unlock()

	cancel := func() {
		e.subMutex.Lock()
		defer e.subMutex.Unlock()
		if _, ok := e.subscribers[ch]; ok {
			delete(e.subscribers, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (e *CoreEngine) enqueue(req request) error {
	if !e.isRunning() {
		return ErrNotRunning
	}
	if e.Transmitting() {
		return beacon.ErrBusy
	}
	select {
	case e.requests <- req:
		return nil
	default:
		return beacon.ErrBusy
	}
}

// SendText queues text for keying at wpm, or at the configured rate when
// wpm is zero
func (e *CoreEngine) SendText(text string, wpm uint) (*Queued, error) {
	cfg := e.Settings()
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	text = strings.ToUpper(strings.TrimSpace(text))
	if len(text) > MaxManualText {
		return nil, fmt.Errorf("%w: text longer than %d characters", ErrTooLarge, MaxManualText)
	}
	if morse.OnAirMs(text, 1) == 0 {
		return nil, ErrNothingToSend
	}
	if wpm == 0 {
		wpm = uint(cfg.WPM)
	}
	if wpm > settings.MaxWPM {
		return nil, fmt.Errorf("wpm must be between %d and %d, got %d", settings.MinWPM, settings.MaxWPM, wpm)
	}

	if err := e.enqueue(request{text: text, wpm: wpm}); err != nil {
		return nil, err
	}

	return &Queued{
		Kind:        beacon.KindManual,
		Payload:     text,
		WPM:         wpm,
		EstimatedMs: morse.SettleMs + morse.TotalDurationMs(text, wpm),
	}, nil
}

// SendMessage queues one of the stored message slots, numbered from 1
func (e *CoreEngine) SendMessage(slot int) (*Queued, error) {
	if slot < 1 || slot > settings.MessageSlots {
		return nil, fmt.Errorf("message slot must be between 1 and %d", settings.MessageSlots)
	}
	msg := e.Settings().Messages[slot-1]
	if msg == "" {
		return nil, fmt.Errorf("message slot %d is empty", slot)
	}
	return e.SendText(msg, 0)
}

// SendPips queues count pips, or the configured pip count when count is zero
func (e *CoreEngine) SendPips(count uint) (*Queued, error) {
	cfg := e.Settings()
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if count == 0 {
		count = uint(cfg.PipCount)
	}
	if count == 0 {
		return nil, ErrNothingToSend
	}
	if count > MaxManualPips {
		return nil, fmt.Errorf("%w: more than %d pips", ErrTooLarge, MaxManualPips)
	}

	if err := e.enqueue(request{pips: true, count: count}); err != nil {
		return nil, err
	}

	return &Queued{
		Kind:        beacon.KindPips,
		WPM:         uint(cfg.WPM),
		EstimatedMs: morse.SettleMs + morse.PipsDurationMs(count, uint(cfg.WPM)),
	}, nil
}

// Settings returns the live beacon settings
func (e *CoreEngine) Settings() settings.BeaconConfig {
	return e.holder.Snapshot()
}

// UpdateSettings applies fn to the settings, validating and persisting the
// result before it takes effect on the next tick
func (e *CoreEngine) UpdateSettings(fn func(*settings.BeaconConfig) error) (settings.BeaconConfig, error) {
	cfg, err := e.holder.Update(fn)
	if err != nil {
		return cfg, err
	}
	logging.Info("engine", "beacon settings updated", logging.Fields{
		"enabled":  cfg.Enabled,
		"fox_hunt": cfg.FoxHuntEnabled,
		"sos":      cfg.SOSModeEnabled,
		"wpm":      cfg.WPM,
	})
	return cfg, nil
}

// RecentTransmissions returns the newest log entries
func (e *CoreEngine) RecentTransmissions(limit int) ([]storage.TransmissionRecord, error) {
	return e.store.RecentTransmissions(limit)
}

// Transmissions returns log entries matching query
func (e *CoreEngine) Transmissions(query storage.TransmissionQuery) ([]storage.TransmissionRecord, error) {
	return e.store.GetTransmissions(query)
}

// TransmissionStats summarises the transmission log
func (e *CoreEngine) TransmissionStats() (*storage.TransmissionStats, error) {
	return e.store.TransmissionStats()
}

// Status returns the current daemon status
func (e *CoreEngine) Status() protocol.Status {
	cfg := e.Settings()

	e.mutex.RLock()
	countdowns := e.countdowns
	transmitting := e.transmitting
	startTime := e.startTime
	e.mutex.RUnlock()

	count, err := e.store.TransmissionCount()
	if err != nil {
		logging.Warn("engine", "failed to count transmissions", logging.Fields{"error": err})
	}

	return protocol.Status{
		Callsign:       cfg.Callsign,
		Grid:           cfg.GridSquare,
		Enabled:        cfg.Enabled,
		FoxHunt:        cfg.FoxHuntEnabled,
		SOSMode:        cfg.SOSModeEnabled,
		WPM:            cfg.WPM,
		ToneHz:         cfg.ToneHz,
		Transmitting:   transmitting,
		PTT:            e.hardwareManager.GetPTT(),
		RadioConnected: e.hardwareManager.IsRadioConnected(),
		TickMs:         e.scheduler.TickMs(),
		Countdowns: protocol.Countdowns{
			Pip: countdowns.Pip,
			ID:  countdowns.ID,
			SOS: countdowns.SOS,
		},
		Transmissions: count,
		Uptime:        time.Since(startTime).Truncate(time.Second).String(),
		StartTime:     startTime,
		Version:       Version,
	}
}
