package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// TableStateRow is one persisted engine snapshot.
type TableStateRow struct {
	TableID       string
	StateBlob     []byte
	SchemaVersion int
	UpdatedAt     time.Time
}

func (s *Store) GetTableState(ctx context.Context, tableID string) (TableStateRow, error) {
	var row TableStateRow
	err := s.Pool.QueryRow(ctx, `
		SELECT table_id, state_blob, schema_version, updated_at
		FROM table_states
		WHERE table_id = $1`, tableID).
		Scan(&row.TableID, &row.StateBlob, &row.SchemaVersion, &row.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TableStateRow{}, ErrNotFound
	}
	if err != nil {
		return TableStateRow{}, err
	}
	return row, nil
}

// PutTableState inserts or replaces the snapshot for tableID.
func (s *Store) PutTableState(ctx context.Context, tableID string, schemaVersion int, blob []byte) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO table_states (table_id, state_blob, schema_version, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (table_id) DO UPDATE
		SET state_blob = EXCLUDED.state_blob,
		    schema_version = EXCLUDED.schema_version,
		    updated_at = now()`, tableID, blob, schemaVersion)
	return err
}

func (s *Store) DeleteTableState(ctx context.Context, tableID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM table_states WHERE table_id = $1`, tableID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTableIDs returns tables updated at or after since, newest first.
func (s *Store) ListTableIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT table_id FROM table_states
		WHERE updated_at >= $1
		ORDER BY updated_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
