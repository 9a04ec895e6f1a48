package settings

import (
	"fmt"
	"sync"
)

// Store is the non-volatile home of the settings record. Reads of storage
// that was never written return ErasedByte-filled data.
type Store interface {
	ReadBeaconConfig() ([]byte, error)
	WriteBeaconConfig(data []byte) error
}

// Load reads the record from store. If the record cannot be read or its wpm
// or tone is out of range, the factory defaults are written back and
// returned with defaulted set.
func Load(store Store) (cfg BeaconConfig, defaulted bool, err error) {
	data, readErr := store.ReadBeaconConfig()
	if readErr == nil {
		cfg, readErr = Unmarshal(data)
	}
	if readErr == nil && cfg.Initialized() {
		return cfg, false, nil
	}

	cfg = Defaults()
	if err := Save(store, &cfg); err != nil {
		return cfg, true, fmt.Errorf("failed to persist default settings: %w", err)
	}
	return cfg, true, nil
}

// Save writes cfg to store
func Save(store Store, cfg *BeaconConfig) error {
	if err := store.WriteBeaconConfig(Marshal(cfg)); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Holder owns the live record. The settings editor is the only writer;
// the scheduler reads a fresh snapshot on every tick.
type Holder struct {
	mu    sync.RWMutex
	cfg   BeaconConfig
	store Store
}

// NewHolder loads the record from store
func NewHolder(store Store) (*Holder, bool, error) {
	cfg, defaulted, err := Load(store)
	if err != nil {
		return nil, defaulted, err
	}
	return &Holder{cfg: cfg, store: store}, defaulted, nil
}

// Snapshot returns a copy of the current record
func (h *Holder) Snapshot() BeaconConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// Update applies fn to a copy of the record, validates and persists it, and
// only then makes it current. On any error the live record is unchanged.
func (h *Holder) Update(fn func(*BeaconConfig) error) (BeaconConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.cfg
	if err := fn(&next); err != nil {
		return h.cfg, err
	}
	if err := next.validateEdit(&h.cfg); err != nil {
		return h.cfg, fmt.Errorf("invalid settings: %w", err)
	}
	if err := Save(h.store, &next); err != nil {
		return h.cfg, err
	}

	h.cfg = next
	return next, nil
}
