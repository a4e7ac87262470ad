package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plug-herald/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps state in a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; the pipeline is sequential anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SeenIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM seen_posts ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query seen posts: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen post: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) AddSeen(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	now := time.Now().UTC()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO seen_posts(id, seen_at) VALUES(?, ?)`, id, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert seen post %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SetTarget(ctx context.Context, group string, channelID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO destinations(group_id, target_channel_id, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			target_channel_id = excluded.target_channel_id,
			updated_at = excluded.updated_at`,
		group, channelID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set target for %s: %w", group, err)
	}
	return nil
}

func (s *SQLiteStore) ClearTarget(ctx context.Context, group string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO destinations(group_id, target_channel_id, updated_at) VALUES(?, NULL, ?)
		ON CONFLICT(group_id) DO UPDATE SET
			target_channel_id = NULL,
			updated_at = excluded.updated_at`,
		group, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("clear target for %s: %w", group, err)
	}
	return nil
}

func (s *SQLiteStore) Destinations(ctx context.Context) ([]model.Destination, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id, target_channel_id FROM destinations ORDER BY group_id`)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer rows.Close()
	var out []model.Destination
	for rows.Next() {
		var (
			d  model.Destination
			ch sql.NullInt64
		)
		if err := rows.Scan(&d.Group, &ch); err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		if ch.Valid {
			d.ChannelID = ch.Int64
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
