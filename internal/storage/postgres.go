package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the Postgres twin of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to connString and creates the tables if needed.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rooms (
			id          TEXT PRIMARY KEY,
			record_json JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS player_snapshots (
			room_id   TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			player_id TEXT NOT NULL,
			round     INTEGER NOT NULL,
			word      TEXT NOT NULL,
			saved_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (room_id, player_id)
		);
	`)
	return err
}

func (s *PostgresStore) SaveRoom(ctx context.Context, rec RoomRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, record_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET record_json = excluded.record_json, updated_at = excluded.updated_at
	`, rec.ID, rec.Data, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *PostgresStore) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, record_json::text, created_at, updated_at FROM rooms ORDER BY created_at")
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

// DeleteRoom removes the room; snapshots go with it through the foreign key.
func (s *PostgresStore) DeleteRoom(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, "DELETE FROM rooms WHERE id = $1", id)
	return err
}

// SaveSnapshot upserts a player's snapshot. The room row must exist.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap SnapshotRow) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_snapshots (room_id, player_id, round, word, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, player_id) DO UPDATE SET round = excluded.round, word = excluded.word, saved_at = excluded.saved_at
	`, snap.RoomID, snap.PlayerID, snap.Round, snap.Word, snap.SavedAt)
	return err
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, roomID, playerID string) (SnapshotRow, error) {
	snap := SnapshotRow{RoomID: roomID, PlayerID: playerID}
	err := s.pool.QueryRow(ctx,
		"SELECT round, word, saved_at FROM player_snapshots WHERE room_id = $1 AND player_id = $2",
		roomID, playerID,
	).Scan(&snap.Round, &snap.Word, &snap.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SnapshotRow{}, ErrNotFound
	}
	return snap, err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
