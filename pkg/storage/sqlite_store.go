package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dougsko/cwbeacon/pkg/beacon"
	"github.com/dougsko/cwbeacon/pkg/logging"
	"github.com/dougsko/cwbeacon/pkg/settings"
)

// SQLiteStore holds the settings record in an nvram table and keeps a log
// of completed transmissions
type SQLiteStore struct {
	db               *sql.DB
	dbPath           string
	maxTransmissions int
}

// NewSQLiteStore opens or creates the database at dbPath. maxTransmissions
// bounds the log; zero or negative keeps everything.
func NewSQLiteStore(dbPath string, maxTransmissions int) (*SQLiteStore, error) {
	store := &SQLiteStore{
		dbPath:           dbPath,
		maxTransmissions: maxTransmissions,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize sqlite store: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	if s.dbPath == "" {
		s.dbPath = "./beacond.db"
	}

	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := s.db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_transmissions_started_at ON transmissions(started_at DESC)",
	); err != nil {
		db.Close()
		return fmt.Errorf("failed to create index: %w", err)
	}

	logging.Info("storage", "sqlite store initialized", logging.Fields{
		"path":              s.dbPath,
		"max_transmissions": s.maxTransmissions,
	})
	return nil
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nvram (
		address INTEGER PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transmissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL CHECK (kind IN ('PIPS', 'ID', 'SOS', 'MANUAL')),
		payload TEXT NOT NULL DEFAULT '',
		wpm INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transmission_stats (
		id INTEGER PRIMARY KEY,
		total_transmissions INTEGER NOT NULL DEFAULT 0,
		total_duration_ms INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO transmission_stats (id, total_transmissions, total_duration_ms)
	VALUES (1, 0, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ReadBeaconConfig returns the settings record, or erased bytes if it was
// never written
func (s *SQLiteStore) ReadBeaconConfig() ([]byte, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM nvram WHERE address = ?", settings.Address).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		data = make([]byte, settings.PersistedSize)
		for i := range data {
			data[i] = settings.ErasedByte
		}
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings record: %w", err)
	}
	return data, nil
}

// WriteBeaconConfig replaces the settings record. data must be whole pages.
func (s *SQLiteStore) WriteBeaconConfig(data []byte) error {
	if len(data) == 0 || len(data)%settings.PageSize != 0 {
		return fmt.Errorf("settings record of %d bytes is not a whole number of %d byte pages",
			len(data), settings.PageSize)
	}

	_, err := s.db.Exec(`
		INSERT INTO nvram (address, data) VALUES (?, ?)
		ON CONFLICT(address) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, settings.Address, data)
	if err != nil {
		return fmt.Errorf("failed to write settings record: %w", err)
	}
	return nil
}

// StoreTransmission appends t to the log, trimming the oldest entries once
// the log exceeds its bound
func (s *SQLiteStore) StoreTransmission(t beacon.Transmission) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO transmissions (kind, payload, wpm, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?)
	`, string(t.Kind), t.Payload, t.WPM, t.Start.UTC(), t.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to insert transmission: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transmission ID: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE transmission_stats SET
			total_transmissions = total_transmissions + 1,
			total_duration_ms = total_duration_ms + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
	`, t.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to update stats: %w", err)
	}

	if s.maxTransmissions > 0 {
		if _, err := cleanup(tx, s.maxTransmissions); err != nil {
			logging.Warn("storage", "failed to trim transmission log", logging.Fields{"error": err})
		}
	}

	return id, tx.Commit()
}

// RecordTransmission implements beacon.Recorder
func (s *SQLiteStore) RecordTransmission(t beacon.Transmission) {
	if _, err := s.StoreTransmission(t); err != nil {
		logging.Error("storage", "failed to record transmission", logging.Fields{
			"kind":  t.Kind,
			"error": err,
		})
	}
}

// CleanupTransmissions keeps the newest keep entries and returns how many
// were removed
func (s *SQLiteStore) CleanupTransmissions(keep int) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	removed, err := cleanup(tx, keep)
	if err != nil {
		return 0, err
	}
	return removed, tx.Commit()
}

func cleanup(tx *sql.Tx, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	result, err := tx.Exec(`
		DELETE FROM transmissions
		WHERE id NOT IN (
			SELECT id FROM transmissions
			ORDER BY started_at DESC, id DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, err
	}

	removed, err := result.RowsAffected()
	if err != nil || removed == 0 {
		return removed, err
	}

	_, err = tx.Exec("UPDATE transmission_stats SET last_cleanup = ? WHERE id = 1", time.Now().UTC())
	return removed, err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
