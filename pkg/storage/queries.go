package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/cwbeacon/pkg/beacon"
)

// TransmissionQuery represents query parameters for retrieving log entries
type TransmissionQuery struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
	Kind   beacon.Kind // "" for all kinds
}

// TransmissionRecord is one logged transmission
type TransmissionRecord struct {
	ID         int64       `json:"id"`
	Kind       beacon.Kind `json:"kind"`
	Payload    string      `json:"payload"`
	WPM        uint        `json:"wpm"`
	StartedAt  time.Time   `json:"started_at"`
	DurationMs int64       `json:"duration_ms"`
}

// Duration returns the logged duration
func (r TransmissionRecord) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// TransmissionStats summarises the log. Totals cover every transmission
// ever stored; Logged and ByKind only what is still in the log.
type TransmissionStats struct {
	TotalTransmissions int                 `json:"total_transmissions"`
	TotalDurationMs    int64               `json:"total_duration_ms"`
	Logged             int                 `json:"logged"`
	ByKind             map[beacon.Kind]int `json:"by_kind"`
	LastTransmission   time.Time           `json:"last_transmission"`
	LastCleanup        time.Time           `json:"last_cleanup"`
}

// GetTransmissions retrieves log entries newest first
func (s *SQLiteStore) GetTransmissions(query TransmissionQuery) ([]TransmissionRecord, error) {
	var args []interface{}

	sqlQuery := `
		SELECT id, kind, payload, wpm, started_at, duration_ms
		FROM transmissions
		WHERE 1=1
	`

	if query.Since != nil {
		sqlQuery += " AND started_at >= ?"
		args = append(args, query.Since.UTC())
	}

	if query.Until != nil {
		sqlQuery += " AND started_at <= ?"
		args = append(args, query.Until.UTC())
	}

	if query.Kind != "" {
		sqlQuery += " AND kind = ?"
		args = append(args, string(query.Kind))
	}

	sqlQuery += " ORDER BY started_at DESC, id DESC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transmissions: %w", err)
	}
	defer rows.Close()

	var records []TransmissionRecord
	for rows.Next() {
		var r TransmissionRecord
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.Payload, &r.WPM, &r.StartedAt, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("failed to scan transmission: %w", err)
		}
		r.Kind = beacon.Kind(kind)
		records = append(records, r)
	}

	return records, rows.Err()
}

// RecentTransmissions retrieves the newest limit entries
func (s *SQLiteStore) RecentTransmissions(limit int) ([]TransmissionRecord, error) {
	return s.GetTransmissions(TransmissionQuery{Limit: limit})
}

// TransmissionCount returns the number of entries currently logged
func (s *SQLiteStore) TransmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM transmissions").Scan(&count)
	return count, err
}

// TransmissionStats retrieves log statistics
func (s *SQLiteStore) TransmissionStats() (*TransmissionStats, error) {
	stats := TransmissionStats{ByKind: make(map[beacon.Kind]int)}
	var lastCleanup sql.NullTime

	err := s.db.QueryRow(`
		SELECT total_transmissions, total_duration_ms, last_cleanup
		FROM transmission_stats WHERE id = 1
	`).Scan(&stats.TotalTransmissions, &stats.TotalDurationMs, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get transmission stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	rows, err := s.db.Query("SELECT kind, COUNT(*) FROM transmissions GROUP BY kind")
	if err != nil {
		return nil, fmt.Errorf("failed to count transmissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		stats.ByKind[beacon.Kind(kind)] = count
		stats.Logged += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := s.RecentTransmissions(1)
	if err != nil {
		return nil, err
	}
	if len(recent) > 0 {
		stats.LastTransmission = recent[0].StartedAt
	}

	return &stats, nil
}
