package storage

import (
	"context"
)

// Backend is implemented by Store and PostgresStore.
type Backend interface {
	SaveRoom(ctx context.Context, rec RoomRecord) error
	ListRooms(ctx context.Context) ([]RoomRecord, error)
	DeleteRoom(ctx context.Context, id string) error
	SaveSnapshot(ctx context.Context, snap SnapshotRow) error
	GetSnapshot(ctx context.Context, roomID, playerID string) (SnapshotRow, error)
	Close() error
}

var (
	_ Backend = (*Store)(nil)
	_ Backend = (*PostgresStore)(nil)
)

// Open connects to Postgres when databaseURL is set and otherwise opens the
// SQLite file at dbPath.
func Open(ctx context.Context, databaseURL, dbPath string) (Backend, error) {
	if databaseURL != "" {
		return NewPostgres(ctx, databaseURL)
	}
	return New(dbPath)
}
