package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/autopeer-io/groundpeer/internal/station/model"
)

// SQLite is a Backend on a single sqlite table.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		vehicle_id INTEGER PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, id model.VehicleID) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE vehicle_id = ?`, int64(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return payload, err
}

func (s *SQLite) Save(ctx context.Context, id model.VehicleID, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots(vehicle_id, payload, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(vehicle_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		int64(id), payload)
	return err
}

func (s *SQLite) Delete(ctx context.Context, id model.VehicleID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE vehicle_id = ?`, int64(id))
	return err
}

func (s *SQLite) List(ctx context.Context) ([]model.VehicleID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vehicle_id FROM snapshots ORDER BY vehicle_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []model.VehicleID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, model.VehicleID(id))
	}
	return ids, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
