package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avative-pat/FiberMonitorMap/pkg/models"
)

// SaveSnapshot persists one poll cycle's outcome in a single transaction:
// every record in the new snapshot is upserted and the cleared sequence
// numbers are deleted. Either the whole snapshot lands or none of it does,
// so a store failure never leaves a partial snapshot behind.
func (s *Store) SaveSnapshot(ctx context.Context, records map[string]*models.AlarmRecord, removed []string) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", errBeginTx, err)
	}
	defer tx.Rollback()

	const upsert = `
        INSERT INTO alarm_records (sequence_num, record, first_seen, last_seen)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(sequence_num) DO UPDATE SET
            record = excluded.record,
            last_seen = excluded.last_seen
    `

	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: %w", errSaveRecord, err)
		}

		if _, err := tx.ExecContext(ctx, upsert, rec.SequenceNum, string(payload), rec.FirstSeen, rec.LastSeen); err != nil {
			return fmt.Errorf("%w: %w", errSaveRecord, err)
		}
	}

	for _, seq := range removed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alarm_records WHERE sequence_num = ?`, seq); err != nil {
			return fmt.Errorf("%w: %w", errDeleteRecord, err)
		}
	}

	return tx.Commit()
}

// LoadRecords rehydrates the alarm snapshot from the store, used at
// startup so the map stays populated across restarts.
func (s *Store) LoadRecords(ctx context.Context) (map[string]*models.AlarmRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT record FROM alarm_records`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errQueryRecords, err)
	}
	defer rows.Close()

	records := make(map[string]*models.AlarmRecord)

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("%w: %w", errScanRow, err)
		}

		var rec models.AlarmRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("%w: %w", errScanRow, err)
		}

		records[rec.SequenceNum] = &rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errQueryRecords, err)
	}

	return records, nil
}
