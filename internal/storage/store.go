package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// RoomRecord is a persisted room: its id and a JSON document with players,
// readiness and game state.
type RoomRecord struct {
	ID        string
	Data      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SnapshotRow is the last round/word a player saw before dropping out.
type SnapshotRow struct {
	RoomID   string
	PlayerID string
	Round    int
	Word     string
	SavedAt  time.Time
}

// Store handles SQLite persistence.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database and runs migrations.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	// WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS rooms (
			id          TEXT PRIMARY KEY,
			record_json TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS player_snapshots (
			room_id   TEXT NOT NULL,
			player_id TEXT NOT NULL,
			round     INTEGER NOT NULL,
			word      TEXT NOT NULL,
			saved_at  DATETIME NOT NULL,
			PRIMARY KEY (room_id, player_id)
		);
	`)
	return err
}

// SaveRoom upserts a room record.
func (s *Store) SaveRoom(ctx context.Context, rec RoomRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, record_json, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET record_json = excluded.record_json, updated_at = excluded.updated_at
	`, rec.ID, rec.Data, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	return err
}

// ListRooms returns every persisted room, oldest first.
func (s *Store) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, record_json, created_at, updated_at FROM rooms ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []RoomRecord
	for rows.Next() {
		var rec RoomRecord
		if err := rows.Scan(&rec.ID, &rec.Data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// DeleteRoom removes a room and its player snapshots.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM player_snapshots WHERE room_id = ?", id)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = ?", id)
	return err
}

// SaveSnapshot upserts a player's snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap SnapshotRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_snapshots (room_id, player_id, round, word, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(room_id, player_id) DO UPDATE SET round = excluded.round, word = excluded.word, saved_at = excluded.saved_at
	`, snap.RoomID, snap.PlayerID, snap.Round, snap.Word, snap.SavedAt.UTC())
	return err
}

// GetSnapshot returns a player's snapshot or ErrNotFound.
func (s *Store) GetSnapshot(ctx context.Context, roomID, playerID string) (SnapshotRow, error) {
	snap := SnapshotRow{RoomID: roomID, PlayerID: playerID}
	err := s.db.QueryRowContext(ctx,
		"SELECT round, word, saved_at FROM player_snapshots WHERE room_id = ? AND player_id = ?",
		roomID, playerID,
	).Scan(&snap.Round, &snap.Word, &snap.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, ErrNotFound
	}
	return snap, err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
