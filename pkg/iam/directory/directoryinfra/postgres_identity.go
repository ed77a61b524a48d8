package directoryinfra

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresIdentityDirectory implements directory.IdentityDirectory.
type PostgresIdentityDirectory struct {
	db     *sqlx.DB
	hasher directory.PasswordHasher

	// dummyHash is compared against for unknown usernames so response
	// time does not reveal which usernames exist.
	dummyHash string
}

var _ directory.IdentityDirectory = (*PostgresIdentityDirectory)(nil)

func NewPostgresIdentityDirectory(db *sqlx.DB, hasher directory.PasswordHasher) *PostgresIdentityDirectory {
	dummy, _ := hasher.Hash("unknown-user")
	return &PostgresIdentityDirectory{db: db, hasher: hasher, dummyHash: dummy}
}

type userPersistence struct {
	directory.User
	PasswordHash string `db:"password_hash"`
}

const userColumns = `id::text AS id, username, display_name, is_admin, email_confirmed, password_hash`

func (r *PostgresIdentityDirectory) ValidateCredentials(ctx context.Context, username, password string) (bool, error) {
	var u userPersistence
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	err := r.db.GetContext(ctx, &u, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		r.hasher.Compare(r.dummyHash, password)
		return false, nil
	}
	if err != nil {
		return false, directory.ErrLookupFailed(err)
	}
	return r.hasher.Compare(u.PasswordHash, password), nil
}

func (r *PostgresIdentityDirectory) FindByUsername(ctx context.Context, username string) (*directory.User, error) {
	var u userPersistence
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	if err := r.db.GetContext(ctx, &u, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrUserNotFound()
		}
		return nil, directory.ErrLookupFailed(err)
	}
	return &u.User, nil
}

func (r *PostgresIdentityDirectory) FindByID(ctx context.Context, id kernel.UserID) (*directory.User, error) {
	var u userPersistence
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &u, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrUserNotFound()
		}
		return nil, directory.ErrLookupFailed(err)
	}
	return &u.User, nil
}

func (r *PostgresIdentityDirectory) Exists(ctx context.Context, id kernel.UserID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, id.String()); err != nil {
		return false, directory.ErrLookupFailed(err)
	}
	return exists, nil
}

func (r *PostgresIdentityDirectory) IsActive(ctx context.Context, id kernel.UserID) (bool, error) {
	var confirmed bool
	query := `SELECT email_confirmed FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &confirmed, query, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, directory.ErrLookupFailed(err)
	}
	return confirmed, nil
}
