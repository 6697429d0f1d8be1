package service

import (
	"context"
	"time"
)

// AccountUpdates is a partial update applied to a ConnectedAccount record.
// Nil fields are left untouched.
type AccountUpdates struct {
	Credentials  *EncryptedCredentials
	Projects     []ProjectRef
	LastSyncedAt *time.Time
	SyncError    *string
	Snapshot     []byte
	SnapshotAt   *time.Time
}

// AccountStore is the external record store holding ConnectedAccounts. The
// engine treats it as an opaque keyed document store; updates are
// last-write-wins on the account id.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*ConnectedAccount, error)

	// GetByUserAndProvider returns nil, nil when no connection exists.
	GetByUserAndProvider(ctx context.Context, userID string, provider Provider) (*ConnectedAccount, error)

	// Upsert inserts the account or replaces it by id.
	Upsert(ctx context.Context, account *ConnectedAccount) error

	UpdateByID(ctx context.Context, id string, updates AccountUpdates) error

	DeleteByID(ctx context.Context, id string) error
}
