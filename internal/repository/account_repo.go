package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/devtrack-app/devtrack/internal/service"
	"github.com/lib/pq"
)

// connectedAccountRepository implements service.AccountStore over raw SQL.
// The connected_accounts table is created by migration; project selections
// and snapshots are stored as JSONB documents alongside the encrypted token
// columns.
type connectedAccountRepository struct {
	sql *sql.DB
}

// NewConnectedAccountRepository creates the Postgres-backed account store.
func NewConnectedAccountRepository(sqlDB *sql.DB) service.AccountStore {
	return &connectedAccountRepository{sql: sqlDB}
}

const accountColumns = `
	id, user_id, provider, encrypted_access_token,
	COALESCE(encrypted_refresh_token, ''), COALESCE(projects, '[]'::jsonb),
	last_synced_at, COALESCE(sync_error, ''), snapshot, snapshot_at,
	created_at, updated_at`

func (r *connectedAccountRepository) GetByID(ctx context.Context, id string) (*service.ConnectedAccount, error) {
	row := r.sql.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM connected_accounts
		WHERE id = $1
	`, id)
	return scanAccount(row)
}

func (r *connectedAccountRepository) GetByUserAndProvider(ctx context.Context, userID string, provider service.Provider) (*service.ConnectedAccount, error) {
	row := r.sql.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM connected_accounts
		WHERE user_id = $1 AND provider = $2
	`, userID, string(provider))
	return scanAccount(row)
}

// Upsert inserts the account or replaces it by (user_id, provider), keeping
// the original id and created_at on conflict.
func (r *connectedAccountRepository) Upsert(ctx context.Context, account *service.ConnectedAccount) error {
	projects, err := json.Marshal(account.Projects)
	if err != nil {
		return fmt.Errorf("marshal projects: %w", err)
	}

	_, err = r.sql.ExecContext(ctx, `
		INSERT INTO connected_accounts (
			id, user_id, provider, encrypted_access_token, encrypted_refresh_token,
			projects, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW(), NOW())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			projects = EXCLUDED.projects,
			updated_at = NOW()
	`, account.ID, account.UserID, string(account.Provider),
		account.Credentials.AccessToken, account.Credentials.RefreshToken, projects)
	return err
}

// UpdateByID applies a partial update; nil fields in updates are untouched.
func (r *connectedAccountRepository) UpdateByID(ctx context.Context, id string, updates service.AccountUpdates) error {
	set := make([]string, 0, 6)
	args := []any{id}

	addArg := func(clause string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf(clause, len(args)))
	}

	if updates.Credentials != nil {
		addArg("encrypted_access_token = $%d", updates.Credentials.AccessToken)
		addArg("encrypted_refresh_token = NULLIF($%d, '')", updates.Credentials.RefreshToken)
	}
	if updates.Projects != nil {
		projects, err := json.Marshal(updates.Projects)
		if err != nil {
			return fmt.Errorf("marshal projects: %w", err)
		}
		addArg("projects = $%d", projects)
	}
	if updates.LastSyncedAt != nil {
		addArg("last_synced_at = $%d", *updates.LastSyncedAt)
	}
	if updates.SyncError != nil {
		addArg("sync_error = NULLIF($%d, '')", *updates.SyncError)
	}
	if updates.Snapshot != nil {
		addArg("snapshot = $%d", updates.Snapshot)
	}
	if updates.SnapshotAt != nil {
		addArg("snapshot_at = $%d", *updates.SnapshotAt)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")

	query := "UPDATE connected_accounts SET "
	for i, clause := range set {
		if i > 0 {
			query += ", "
		}
		query += clause
	}
	query += " WHERE id = $1"

	result, err := r.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *connectedAccountRepository) DeleteByID(ctx context.Context, id string) error {
	_, err := r.sql.ExecContext(ctx, `
		DELETE FROM connected_accounts WHERE id = $1
	`, id)
	return err
}

func scanAccount(row *sql.Row) (*service.ConnectedAccount, error) {
	var (
		acc          service.ConnectedAccount
		provider     string
		projectsJSON []byte
		lastSyncedAt pq.NullTime
		snapshotAt   pq.NullTime
	)
	err := row.Scan(
		&acc.ID, &acc.UserID, &provider,
		&acc.Credentials.AccessToken, &acc.Credentials.RefreshToken,
		&projectsJSON, &lastSyncedAt, &acc.SyncError,
		&acc.Snapshot, &snapshotAt,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	acc.Provider = service.Provider(provider)
	if len(projectsJSON) > 0 {
		if err := json.Unmarshal(projectsJSON, &acc.Projects); err != nil {
			return nil, fmt.Errorf("unmarshal projects: %w", err)
		}
	}
	if lastSyncedAt.Valid {
		t := lastSyncedAt.Time
		acc.LastSyncedAt = &t
	}
	if snapshotAt.Valid {
		t := snapshotAt.Time
		acc.SnapshotAt = &t
	}
	return &acc, nil
}
