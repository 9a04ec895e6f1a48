package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dougsko/cwbeacon/pkg/beacon"
	"github.com/dougsko/cwbeacon/pkg/settings"
)

func setupTestStore(t *testing.T, maxTransmissions int) (*SQLiteStore, func()) {
	tempDir, err := os.MkdirTemp("", "cwbeacon-storage-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tempDir, "beacon_test.db")
	store, err := NewSQLiteStore(dbPath, maxTransmissions)
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tempDir)
	}

	return store, cleanup
}

func TestNewSQLiteStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "cwbeacon-storage-new-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	t.Run("Valid Store Creation", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "test.db")
		store, err := NewSQLiteStore(dbPath, 100)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer store.Close()

		if store.maxTransmissions != 100 {
			t.Errorf("Expected maxTransmissions 100, got %d", store.maxTransmissions)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
	})

	t.Run("Store Creation with Nested Directory", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
		store, err := NewSQLiteStore(dbPath, 100)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("Expected nested directory to be created")
		}
	})

	t.Run("Tables Created", func(t *testing.T) {
		store, cleanup := setupTestStore(t, 0)
		defer cleanup()

		for _, table := range []string{"nvram", "transmissions", "transmission_stats"} {
			var name string
			err := store.db.QueryRow(
				"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
			).Scan(&name)
			if err != nil {
				t.Errorf("Expected table %s to exist: %v", table, err)
			}
		}
	})
}

func TestSettingsRecord(t *testing.T) {
	store, cleanup := setupTestStore(t, 0)
	defer cleanup()

	t.Run("Erased When Never Written", func(t *testing.T) {
		data, err := store.ReadBeaconConfig()
		if err != nil {
			t.Fatalf("Failed to read: %v", err)
		}
		if len(data) != settings.PersistedSize {
			t.Fatalf("Expected %d bytes, got %d", settings.PersistedSize, len(data))
		}
		for i, b := range data {
			if b != settings.ErasedByte {
				t.Fatalf("Expected erased byte at %d, got %#x", i, b)
			}
		}
	})

	t.Run("Load Persists Defaults", func(t *testing.T) {
		cfg, defaulted, err := settings.Load(store)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if !defaulted {
			t.Error("Expected defaults to be applied to an empty store")
		}
		if cfg != settings.Defaults() {
			t.Errorf("Expected default record, got %+v", cfg)
		}

		var address int
		if err := store.db.QueryRow("SELECT address FROM nvram").Scan(&address); err != nil {
			t.Fatalf("Expected a persisted record: %v", err)
		}
		if address != settings.Address {
			t.Errorf("Expected record at %#x, got %#x", settings.Address, address)
		}
	})

	t.Run("Round Trip", func(t *testing.T) {
		want := settings.Defaults()
		want.Enabled = true
		want.Callsign = "K3DEP"
		want.FoxHuntEnabled = true
		if err := settings.Save(store, &want); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		got, defaulted, err := settings.Load(store)
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if defaulted {
			t.Error("Expected stored record to be used")
		}
		if got != want {
			t.Errorf("Expected %+v, got %+v", want, got)
		}

		var rows int
		store.db.QueryRow("SELECT COUNT(*) FROM nvram").Scan(&rows)
		if rows != 1 {
			t.Errorf("Expected a single nvram row, got %d", rows)
		}
	})

	t.Run("Partial Page Rejected", func(t *testing.T) {
		if err := store.WriteBeaconConfig(make([]byte, settings.RecordSize)); err == nil {
			t.Error("Expected error for a record that is not whole pages")
		}
	})
}

func testTransmission(kind beacon.Kind, payload string, start time.Time) beacon.Transmission {
	return beacon.Transmission{
		Kind:     kind,
		Payload:  payload,
		WPM:      12,
		Start:    start,
		Duration: 2500 * time.Millisecond,
	}
}

func TestStoreTransmission(t *testing.T) {
	store, cleanup := setupTestStore(t, 0)
	defer cleanup()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := store.StoreTransmission(testTransmission(beacon.KindID, "N0CALL", start))
	if err != nil {
		t.Fatalf("Failed to store transmission: %v", err)
	}
	if id <= 0 {
		t.Errorf("Expected positive ID, got %d", id)
	}

	records, err := store.RecentTransmissions(10)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	r := records[0]
	if r.ID != id {
		t.Errorf("Expected ID %d, got %d", id, r.ID)
	}
	if r.Kind != beacon.KindID || r.Payload != "N0CALL" || r.WPM != 12 {
		t.Errorf("Unexpected record: %+v", r)
	}
	if !r.StartedAt.Equal(start) {
		t.Errorf("Expected start %v, got %v", start, r.StartedAt)
	}
	if r.Duration() != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s duration, got %v", r.Duration())
	}
}

func TestRecordTransmission(t *testing.T) {
	store, cleanup := setupTestStore(t, 0)
	defer cleanup()

	var recorder beacon.Recorder = store
	recorder.RecordTransmission(testTransmission(beacon.KindPips, "", time.Now()))

	count, err := store.TransmissionCount()
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 transmission, got %d", count)
	}
}

func TestTransmissionLogBound(t *testing.T) {
	store, cleanup := setupTestStore(t, 3)
	defer cleanup()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		payload := string(rune('A' + i))
		if _, err := store.StoreTransmission(testTransmission(beacon.KindManual, payload, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to store transmission %d: %v", i, err)
		}
	}

	records, err := store.RecentTransmissions(0)
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records after trimming, got %d", len(records))
	}
	for i, want := range []string{"E", "D", "C"} {
		if records[i].Payload != want {
			t.Errorf("Record %d: expected payload %s, got %s", i, want, records[i].Payload)
		}
	}

	stats, err := store.TransmissionStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalTransmissions != 5 {
		t.Errorf("Expected 5 lifetime transmissions, got %d", stats.TotalTransmissions)
	}
	if stats.Logged != 3 {
		t.Errorf("Expected 3 logged transmissions, got %d", stats.Logged)
	}
	if stats.LastCleanup.IsZero() {
		t.Error("Expected cleanup time to be recorded")
	}
}

func TestCleanupTransmissions(t *testing.T) {
	store, cleanup := setupTestStore(t, 0)
	defer cleanup()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		store.StoreTransmission(testTransmission(beacon.KindPips, "", base.Add(time.Duration(i)*time.Second)))
	}

	removed, err := store.CleanupTransmissions(4)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 6 {
		t.Errorf("Expected 6 removed, got %d", removed)
	}

	removed, err = store.CleanupTransmissions(4)
	if err != nil {
		t.Fatalf("Second cleanup failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected nothing removed on second pass, got %d", removed)
	}

	count, _ := store.TransmissionCount()
	if count != 4 {
		t.Errorf("Expected 4 remaining, got %d", count)
	}

	removed, err = store.CleanupTransmissions(0)
	if err != nil {
		t.Fatalf("Cleanup to zero failed: %v", err)
	}
	if removed != 4 {
		t.Errorf("Expected 4 removed, got %d", removed)
	}
}

func TestClose(t *testing.T) {
	store, cleanup := setupTestStore(t, 0)
	defer cleanup()

	if err := store.Close(); err != nil {
		t.Errorf("Expected no error on close, got: %v", err)
	}
	if _, err := store.ReadBeaconConfig(); err == nil {
		t.Error("Expected error reading from a closed store")
	}
}
