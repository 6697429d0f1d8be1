package repository

import (
	"context"
	"database/sql"
	"sync"

	"github.com/devtrack-app/devtrack/internal/service"
)

// memoryAccountRepository is the in-process AccountStore used when no
// database is configured. Connections do not survive a restart.
type memoryAccountRepository struct {
	mu   sync.RWMutex
	byID map[string]service.ConnectedAccount
}

// NewMemoryAccountRepository creates the in-memory account store.
func NewMemoryAccountRepository() service.AccountStore {
	return &memoryAccountRepository{byID: make(map[string]service.ConnectedAccount)}
}

func (r *memoryAccountRepository) GetByID(ctx context.Context, id string) (*service.ConnectedAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if acc, ok := r.byID[id]; ok {
		return &acc, nil
	}
	return nil, nil
}

func (r *memoryAccountRepository) GetByUserAndProvider(ctx context.Context, userID string, provider service.Provider) (*service.ConnectedAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.byID {
		if acc.UserID == userID && acc.Provider == provider {
			return &acc, nil
		}
	}
	return nil, nil
}

func (r *memoryAccountRepository) Upsert(ctx context.Context, account *service.ConnectedAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[account.ID] = *account
	return nil
}

func (r *memoryAccountRepository) UpdateByID(ctx context.Context, id string, updates service.AccountUpdates) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if updates.Credentials != nil {
		acc.Credentials = *updates.Credentials
	}
	if updates.Projects != nil {
		acc.Projects = updates.Projects
	}
	if updates.LastSyncedAt != nil {
		acc.LastSyncedAt = updates.LastSyncedAt
	}
	if updates.SyncError != nil {
		acc.SyncError = *updates.SyncError
	}
	if updates.Snapshot != nil {
		acc.Snapshot = updates.Snapshot
	}
	if updates.SnapshotAt != nil {
		acc.SnapshotAt = updates.SnapshotAt
	}
	r.byID[id] = acc
	return nil
}

func (r *memoryAccountRepository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}
