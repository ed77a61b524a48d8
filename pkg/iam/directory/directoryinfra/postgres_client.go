package directoryinfra

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresClientDirectory implements directory.ClientDirectory.
type PostgresClientDirectory struct {
	db     *sqlx.DB
	hasher directory.PasswordHasher
}

var _ directory.ClientDirectory = (*PostgresClientDirectory)(nil)

func NewPostgresClientDirectory(db *sqlx.DB, hasher directory.PasswordHasher) *PostgresClientDirectory {
	return &PostgresClientDirectory{db: db, hasher: hasher}
}

func (r *PostgresClientDirectory) GetPublicKey(ctx context.Context, id kernel.ClientID) (string, bool, error) {
	var key sql.NullString
	query := `SELECT public_key FROM clients WHERE client_id = $1`
	err := r.db.GetContext(ctx, &key, query, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, directory.ErrLookupFailed(err)
	}
	if !key.Valid || key.String == "" {
		return "", false, nil
	}
	return key.String, true, nil
}

func (r *PostgresClientDirectory) ValidateClientSecret(ctx context.Context, id kernel.ClientID, secret string) (bool, error) {
	var hash string
	query := `SELECT client_secret_hash FROM clients WHERE client_id = $1`
	err := r.db.GetContext(ctx, &hash, query, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, directory.ErrLookupFailed(err)
	}
	return r.hasher.Compare(hash, secret), nil
}

func (r *PostgresClientDirectory) GetAssignedGroupIDs(ctx context.Context, id kernel.ClientID) ([]kernel.GroupID, error) {
	var ids []string
	query := `SELECT group_id FROM client_groups WHERE client_id = $1 ORDER BY group_id`
	if err := r.db.SelectContext(ctx, &ids, query, id.String()); err != nil {
		return nil, directory.ErrLookupFailed(err)
	}
	groups := make([]kernel.GroupID, len(ids))
	for i, g := range ids {
		groups[i] = kernel.GroupID(g)
	}
	return groups, nil
}

func (r *PostgresClientDirectory) RecordTokenRequest(ctx context.Context, id kernel.ClientID, at time.Time) error {
	query := `UPDATE clients SET token_requested_at = $1 WHERE client_id = $2`
	if _, err := r.db.ExecContext(ctx, query, at.UTC(), id.String()); err != nil {
		return directory.ErrLookupFailed(err)
	}
	return nil
}

type clientPersistence struct {
	ClientID     string         `db:"client_id"`
	SecretHash   string         `db:"client_secret_hash"`
	PublicKey    string         `db:"public_key"`
	DisplayName  string         `db:"display_name"`
	DeviceName   sql.NullString `db:"device_name"`
	RegisteredAt time.Time      `db:"registered_at"`
}

func (r *PostgresClientDirectory) CreateClient(ctx context.Context, client directory.Client) error {
	query := `
		INSERT INTO clients (
			client_id, client_secret_hash, public_key, display_name, device_name, registered_at
		) VALUES (
			:client_id, :client_secret_hash, :public_key, :display_name, :device_name, :registered_at
		)`

	row := clientPersistence{
		ClientID:     client.ID.String(),
		SecretHash:   client.SecretHash,
		PublicKey:    client.PublicKey,
		DisplayName:  client.DisplayName,
		DeviceName:   sql.NullString{String: client.DeviceName, Valid: client.DeviceName != ""},
		RegisteredAt: client.RegisteredAt.UTC(),
	}

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return directory.ErrClientExists().WithDetail("client_id", client.ID.String())
		}
		return directory.ErrLookupFailed(err)
	}
	return nil
}

func (r *PostgresClientDirectory) ClientExists(ctx context.Context, id kernel.ClientID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM clients WHERE client_id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, id.String()); err != nil {
		return false, directory.ErrLookupFailed(err)
	}
	return exists, nil
}

var _ directory.ClientManager = (*PostgresClientDirectory)(nil)

type clientRow struct {
	ClientID         string         `db:"client_id"`
	PublicKey        sql.NullString `db:"public_key"`
	DisplayName      string         `db:"display_name"`
	DeviceName       sql.NullString `db:"device_name"`
	RegisteredAt     time.Time      `db:"registered_at"`
	TokenRequestedAt sql.NullTime   `db:"token_requested_at"`
}

func (row clientRow) toDomain() directory.Client {
	c := directory.Client{
		ID:           kernel.NewClientID(row.ClientID),
		PublicKey:    row.PublicKey.String,
		DisplayName:  row.DisplayName,
		DeviceName:   row.DeviceName.String,
		RegisteredAt: row.RegisteredAt,
	}
	if row.TokenRequestedAt.Valid {
		at := row.TokenRequestedAt.Time
		c.LastTokenRequestAt = &at
	}
	return c
}

// ListClients returns clients ordered by display name. A non-empty filter
// matches display name or device name case-insensitively.
func (r *PostgresClientDirectory) ListClients(ctx context.Context, filter string) ([]directory.Client, error) {
	query := `
		SELECT client_id, public_key, display_name, device_name, registered_at, token_requested_at
		FROM clients
		WHERE $1 = '' OR display_name ILIKE '%' || $1 || '%' OR device_name ILIKE '%' || $1 || '%'
		ORDER BY display_name, client_id`

	var rows []clientRow
	if err := r.db.SelectContext(ctx, &rows, query, filter); err != nil {
		return nil, directory.ErrLookupFailed(err)
	}
	clients := make([]directory.Client, len(rows))
	for i, row := range rows {
		clients[i] = row.toDomain()
	}
	return clients, nil
}

func (r *PostgresClientDirectory) UpdateDisplayName(ctx context.Context, id kernel.ClientID, displayName string) error {
	query := `UPDATE clients SET display_name = $1 WHERE client_id = $2`
	res, err := r.db.ExecContext(ctx, query, displayName, id.String())
	if err != nil {
		return directory.ErrLookupFailed(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return directory.ErrClientNotFound()
	}
	return nil
}

// DeleteClient is idempotent. Group assignments go with the client.
func (r *PostgresClientDirectory) DeleteClient(ctx context.Context, id kernel.ClientID) error {
	query := `DELETE FROM clients WHERE client_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return directory.ErrLookupFailed(err)
	}
	return nil
}
