package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-drivalyze/pkg/history"
	"github.com/goliatone/go-drivalyze/pkg/history/sqlite/migrations"
)

// Store persists prediction records in SQLite.
type Store struct {
	db *sql.DB
}

var _ history.Store = (*Store)(nil)

// Open opens and migrates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history/sqlite: path is required")
	}

	dsn := "file:" + filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history/sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history/sqlite: ping: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history/sqlite: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, record history.Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (
		    id, user_id, user_email, brand, model, year, fuel_type, transmission, predicted_price, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.UserEmail,
		record.Brand,
		record.Model,
		record.Year,
		record.FuelType,
		record.Transmission,
		record.PredictedPrice,
		record.Timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("history/sqlite: append %s: %w", record.ID, err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, history.ErrUserRequired
	}

	// rowid breaks timestamp ties so later inserts come first.
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, user_email, brand, model, year, fuel_type, transmission, predicted_price, created_at
		 FROM predictions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		userID, history.NormalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("history/sqlite: recent: %w", err)
	}
	defer rows.Close()

	var out []history.Record
	for rows.Next() {
		var (
			record    history.Record
			createdAt int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.UserEmail,
			&record.Brand,
			&record.Model,
			&record.Year,
			&record.FuelType,
			&record.Transmission,
			&record.PredictedPrice,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("history/sqlite: scan: %w", err)
		}
		record.Timestamp = time.UnixMilli(createdAt).UTC()
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history/sqlite: recent: %w", err)
	}
	return out, nil
}
