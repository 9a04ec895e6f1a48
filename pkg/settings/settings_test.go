package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory Store that starts erased
type memoryStore struct {
	data     []byte
	writes   int
	readErr  error
	writeErr error
}

func newMemoryStore() *memoryStore {
	data := make([]byte, PersistedSize)
	for i := range data {
		data[i] = ErasedByte
	}
	return &memoryStore{data: data}
}

func (m *memoryStore) ReadBeaconConfig() ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *memoryStore) WriteBeaconConfig(data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes++
	m.data = append([]byte(nil), data...)
	return nil
}

func TestRecordLayout(t *testing.T) {
	assert.Equal(t, 78, RecordSize)
	assert.Equal(t, 80, PersistedSize)
	assert.Zero(t, PersistedSize%PageSize)
}

func TestMarshalUnmarshal(t *testing.T) {
	cfg := BeaconConfig{
		Messages:       [MessageSlots]string{"CQ TEST", "QRV"},
		Enabled:        true,
		WPM:            25,
		ToneHz:         750,
		Mode:           2,
		Bandwidth:      1,
		TxMode:         3,
		Callsign:       "K3DEP/P",
		GridSquare:     "FN20AB",
		FoxHuntEnabled: true,
		PipCount:       7,
		PipInterval:    300,
		IDInterval:     600,
		SOSModeEnabled: true,
		SOSDutyCycle:   35,
	}

	data := Marshal(&cfg)
	require.Len(t, data, PersistedSize)
	assert.Equal(t, []byte{ErasedByte, ErasedByte}, data[RecordSize:])

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestMarshalTruncatesText(t *testing.T) {
	cfg := Defaults()
	cfg.Callsign = "ABCDEFGHIJKLMNOPQRS"
	cfg.Messages[0] = "0123456789XYZ"

	got, err := Unmarshal(Marshal(&cfg))
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJKLMNO", got.Callsign)
	assert.Equal(t, "0123456789", got.Messages[0])
}

func TestUnmarshalShortRecord(t *testing.T) {
	_, err := Unmarshal(make([]byte, RecordSize-1))
	assert.True(t, errors.Is(err, ErrRecordSize))
}

func TestLoad(t *testing.T) {
	t.Run("Erased Storage Gets Defaults", func(t *testing.T) {
		store := newMemoryStore()
		cfg, defaulted, err := Load(store)
		require.NoError(t, err)
		assert.True(t, defaulted)
		assert.Equal(t, Defaults(), cfg)
		assert.Equal(t, 1, store.writes)
	})

	t.Run("Valid Record Kept", func(t *testing.T) {
		store := newMemoryStore()
		want := Defaults()
		want.WPM = 20
		want.Callsign = "K3DEP"
		require.NoError(t, Save(store, &want))

		cfg, defaulted, err := Load(store)
		require.NoError(t, err)
		assert.False(t, defaulted)
		assert.Equal(t, want, cfg)
		assert.Equal(t, 1, store.writes)
	})

	invalid := []struct {
		name   string
		mutate func(*BeaconConfig)
	}{
		{"Zero WPM", func(c *BeaconConfig) { c.WPM = 0 }},
		{"WPM Above Range", func(c *BeaconConfig) { c.WPM = 100 }},
		{"Zero Tone", func(c *BeaconConfig) { c.ToneHz = 0 }},
		{"Tone Above Range", func(c *BeaconConfig) { c.ToneHz = 2001 }},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			bad := Defaults()
			bad.Callsign = "BROKEN"
			tc.mutate(&bad)
			require.NoError(t, Save(store, &bad))

			cfg, defaulted, err := Load(store)
			require.NoError(t, err)
			assert.True(t, defaulted)
			assert.Equal(t, "N0CALL", cfg.Callsign)
			assert.Equal(t, 2, store.writes)
		})
	}

	t.Run("Read Error Falls Back To Defaults", func(t *testing.T) {
		store := newMemoryStore()
		store.readErr = errors.New("bus error")
		cfg, defaulted, err := Load(store)
		require.NoError(t, err)
		assert.True(t, defaulted)
		assert.Equal(t, uint8(12), cfg.WPM)
	})

	t.Run("Write Error Reported", func(t *testing.T) {
		store := newMemoryStore()
		store.writeErr = errors.New("write protected")
		_, defaulted, err := Load(store)
		assert.Error(t, err)
		assert.True(t, defaulted)
	})
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.False(t, d.Enabled)
	assert.Equal(t, uint8(12), d.WPM)
	assert.Equal(t, uint16(600), d.ToneHz)
	assert.Equal(t, "N0CALL", d.Callsign)
	assert.Equal(t, "N0GRID", d.GridSquare)
	assert.False(t, d.FoxHuntEnabled)
	assert.False(t, d.SOSModeEnabled)
	assert.Equal(t, uint8(5), d.PipCount)
	assert.Equal(t, uint16(15), d.PipInterval)
	assert.Equal(t, uint16(10), d.IDInterval)
	assert.Equal(t, uint8(20), d.SOSDutyCycle)
	assert.NoError(t, d.Validate())
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*BeaconConfig)
		errMsg string
	}{
		{"WPM", func(c *BeaconConfig) { c.WPM = 0 }, "wpm"},
		{"Tone", func(c *BeaconConfig) { c.ToneHz = 5000 }, "tone_hz"},
		{"Duty Cycle Zero", func(c *BeaconConfig) { c.SOSDutyCycle = 0 }, "sos_duty_cycle"},
		{"Duty Cycle High", func(c *BeaconConfig) { c.SOSDutyCycle = 51 }, "sos_duty_cycle"},
		{"Callsign", func(c *BeaconConfig) { c.Callsign = "ABCDEFGHIJKLMNOP" }, "callsign"},
		{"Grid", func(c *BeaconConfig) { c.GridSquare = "ABCDEFGHIJKLMNOP" }, "grid_square"},
		{"Message", func(c *BeaconConfig) { c.Messages[1] = "TOO LONG MSG" }, "message 2"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestGetSet(t *testing.T) {
	cfg := Defaults()

	for _, key := range Keys {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}

	require.NoError(t, cfg.Set("wpm", "20"))
	require.NoError(t, cfg.Set("fox_hunt_enabled", "true"))
	require.NoError(t, cfg.Set("callsign", "k3dep"))
	require.NoError(t, cfg.Set("message2", "qrt"))
	require.NoError(t, cfg.Set("PIP_INTERVAL", " 30 "))

	assert.Equal(t, uint8(20), cfg.WPM)
	assert.True(t, cfg.FoxHuntEnabled)
	assert.Equal(t, "K3DEP", cfg.Callsign)
	assert.Equal(t, "QRT", cfg.Messages[1])
	assert.Equal(t, uint16(30), cfg.PipInterval)

	v, err := cfg.Get("pip_interval")
	require.NoError(t, err)
	assert.Equal(t, "30", v)

	assert.Error(t, cfg.Set("wpm", "300"))
	assert.Error(t, cfg.Set("enabled", "maybe"))
	assert.Error(t, cfg.Set("frequency", "145500000"))
	_, err = cfg.Get("frequency")
	assert.Error(t, err)
}

func TestHolder(t *testing.T) {
	store := newMemoryStore()
	holder, defaulted, err := NewHolder(store)
	require.NoError(t, err)
	assert.True(t, defaulted)

	t.Run("Update Persists", func(t *testing.T) {
		next, err := holder.Update(func(c *BeaconConfig) error {
			c.Enabled = true
			c.WPM = 18
			return nil
		})
		require.NoError(t, err)
		assert.True(t, next.Enabled)
		assert.Equal(t, next, holder.Snapshot())

		stored, err := Unmarshal(store.data)
		require.NoError(t, err)
		assert.Equal(t, uint8(18), stored.WPM)
	})

	t.Run("Invalid Update Rejected", func(t *testing.T) {
		before := holder.Snapshot()
		_, err := holder.Update(func(c *BeaconConfig) error {
			c.WPM = 0
			return nil
		})
		assert.Error(t, err)
		assert.Equal(t, before, holder.Snapshot())
	})

	t.Run("Callback Error Rejected", func(t *testing.T) {
		before := holder.Snapshot()
		_, err := holder.Update(func(c *BeaconConfig) error {
			c.WPM = 30
			return errors.New("abort")
		})
		assert.EqualError(t, err, "abort")
		assert.Equal(t, before, holder.Snapshot())
	})

	t.Run("Store Failure Keeps Live Record", func(t *testing.T) {
		before := holder.Snapshot()
		store.writeErr = errors.New("write protected")
		defer func() { store.writeErr = nil }()

		_, err := holder.Update(func(c *BeaconConfig) error {
			c.WPM = 30
			return nil
		})
		assert.Error(t, err)
		assert.Equal(t, before, holder.Snapshot())
	})
}

func TestHolderStoredDutyCycleOutOfRange(t *testing.T) {
	store := newMemoryStore()
	stored := Defaults()
	stored.SOSDutyCycle = 80
	require.NoError(t, Save(store, &stored))

	h, defaulted, err := NewHolder(store)
	require.NoError(t, err)
	assert.False(t, defaulted)
	assert.Equal(t, uint8(80), h.Snapshot().SOSDutyCycle)

	// Edits that leave the duty cycle alone are accepted.
	got, err := h.Update(func(c *BeaconConfig) error { return c.Set("wpm", "18") })
	require.NoError(t, err)
	assert.Equal(t, uint8(18), got.WPM)
	assert.Equal(t, uint8(80), got.SOSDutyCycle)

	// Changing it to another invalid value is not.
	_, err = h.Update(func(c *BeaconConfig) error { return c.Set("sos_duty_cycle", "90") })
	assert.Error(t, err)

	got, err = h.Update(func(c *BeaconConfig) error { return c.Set("sos_duty_cycle", "25") })
	require.NoError(t, err)
	assert.Equal(t, uint8(25), got.SOSDutyCycle)

	// A valid duty cycle cannot be edited back out of range.
	_, err = h.Update(func(c *BeaconConfig) error { return c.Set("sos_duty_cycle", "0") })
	assert.Error(t, err)
	assert.Equal(t, uint8(25), h.Snapshot().SOSDutyCycle)
}
