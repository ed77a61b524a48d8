package directoryinfra_test

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Abraxas-365/identity/pkg/iam/auth/authinfra"
	"github.com/Abraxas-365/identity/pkg/iam/directory"
	"github.com/Abraxas-365/identity/pkg/iam/directory/directoryinfra"
	"github.com/Abraxas-365/identity/pkg/kernel"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		raw.Close()
	})
	return sqlx.NewDb(raw, "postgres"), mock
}

var userCols = []string{"id", "username", "display_name", "is_admin", "email_confirmed", "password_hash"}

func TestIdentity_ValidateCredentials(t *testing.T) {
	db, mock := newMock(t)
	hasher := authinfra.NewBcryptPasswordService(bcrypt.MinCost)
	hash, _ := hasher.Hash("correct horse")
	dir := directoryinfra.NewPostgresIdentityDirectory(db, hasher)

	query := regexp.QuoteMeta(`FROM users WHERE username = $1`)
	mock.ExpectQuery(query).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("1", "alice", "Alice", true, true, hash))
	mock.ExpectQuery(query).WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("1", "alice", "Alice", true, true, hash))
	mock.ExpectQuery(query).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	ok, err := dir.ValidateCredentials(context.Background(), "alice", "correct horse")
	if err != nil || !ok {
		t.Fatalf("expected valid credentials, got ok=%v err=%v", ok, err)
	}
	ok, _ = dir.ValidateCredentials(context.Background(), "alice", "wrong")
	if ok {
		t.Fatal("expected wrong password to fail")
	}
	ok, err = dir.ValidateCredentials(context.Background(), "ghost", "x")
	if err != nil || ok {
		t.Fatalf("unknown user should be false without error, got ok=%v err=%v", ok, err)
	}
}

func TestIdentity_FindByUsernameNotFound(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresIdentityDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username = $1`)).WithArgs("nobody").WillReturnError(sql.ErrNoRows)

	_, err := dir.FindByUsername(context.Background(), "nobody")
	if !errors.Is(err, directory.ErrUserNotFound()) {
		t.Fatalf("expected USER_NOT_FOUND, got %v", err)
	}
}

func TestIdentity_IsActive(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresIdentityDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	q := regexp.QuoteMeta(`SELECT email_confirmed FROM users WHERE id = $1`)
	mock.ExpectQuery(q).WithArgs("7").WillReturnRows(sqlmock.NewRows([]string{"email_confirmed"}).AddRow(false))
	mock.ExpectQuery(q).WithArgs("8").WillReturnError(sql.ErrNoRows)

	if active, _ := dir.IsActive(context.Background(), kernel.UserID("7")); active {
		t.Fatal("unconfirmed user must be inactive")
	}
	if active, err := dir.IsActive(context.Background(), kernel.UserID("8")); active || err != nil {
		t.Fatalf("missing user must be inactive without error, got %v %v", active, err)
	}
}

func TestClient_GetPublicKey(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	q := regexp.QuoteMeta(`SELECT public_key FROM clients WHERE client_id = $1`)
	mock.ExpectQuery(q).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"public_key"}).AddRow("AAAA"))
	mock.ExpectQuery(q).WithArgs("c2").WillReturnRows(sqlmock.NewRows([]string{"public_key"}).AddRow(nil))
	mock.ExpectQuery(q).WithArgs("c3").WillReturnError(sql.ErrNoRows)

	if key, ok, err := dir.GetPublicKey(context.Background(), "c1"); !ok || err != nil || key != "AAAA" {
		t.Fatalf("unexpected result: %q %v %v", key, ok, err)
	}
	if _, ok, _ := dir.GetPublicKey(context.Background(), "c2"); ok {
		t.Fatal("null key must report absent")
	}
	if _, ok, _ := dir.GetPublicKey(context.Background(), "c3"); ok {
		t.Fatal("unknown client must report absent")
	}
}

func TestClient_ValidateClientSecret(t *testing.T) {
	db, mock := newMock(t)
	hasher := authinfra.NewBcryptPasswordService(bcrypt.MinCost)
	dir := directoryinfra.NewPostgresClientDirectory(db, hasher)
	hash, _ := hasher.Hash("device-secret")

	q := regexp.QuoteMeta(`SELECT client_secret_hash FROM clients WHERE client_id = $1`)
	mock.ExpectQuery(q).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"client_secret_hash"}).AddRow(hash))
	mock.ExpectQuery(q).WithArgs("c1").WillReturnRows(sqlmock.NewRows([]string{"client_secret_hash"}).AddRow(hash))

	if ok, err := dir.ValidateClientSecret(context.Background(), "c1", "device-secret"); !ok || err != nil {
		t.Fatalf("expected secret to match, got %v %v", ok, err)
	}
	if ok, _ := dir.ValidateClientSecret(context.Background(), "c1", "other"); ok {
		t.Fatal("expected mismatched secret to fail")
	}
}

func TestClient_GetAssignedGroupIDs(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT group_id FROM client_groups`)).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"group_id"}).AddRow("g1").AddRow("g2"))

	groups, err := dir.GetAssignedGroupIDs(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 || groups[0] != "g1" || groups[1] != "g2" {
		t.Fatalf("unexpected groups: %v", groups)
	}
}

func TestClient_RecordTokenRequest(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE clients SET token_requested_at = $1 WHERE client_id = $2`)).
		WithArgs(at, "c1").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := dir.RecordTokenRequest(context.Background(), "c1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_CreateClientDuplicate(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO clients`)).
		WillReturnError(&pq.Error{Code: "23505"})

	err := dir.CreateClient(context.Background(), directory.Client{
		ID:           "c1",
		SecretHash:   "h",
		PublicKey:    "k",
		DisplayName:  "device",
		RegisteredAt: time.Now(),
	})
	if !errors.Is(err, directory.ErrClientExists()) {
		t.Fatalf("expected CLIENT_EXISTS, got %v", err)
	}
}

func TestClient_ListClients(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))
	registered := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM clients`)).
		WithArgs("kiosk").
		WillReturnRows(sqlmock.NewRows([]string{"client_id", "public_key", "display_name", "device_name", "registered_at", "token_requested_at"}).
			AddRow("c1", "AAAA", "Kiosk 1", "tablet", registered, registered.Add(time.Hour)).
			AddRow("c2", nil, "Kiosk 2", nil, registered, nil))

	clients, err := dir.ListClients(context.Background(), "kiosk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(clients))
	}
	if clients[0].LastTokenRequestAt == nil || clients[0].DeviceName != "tablet" {
		t.Fatalf("unexpected first client: %+v", clients[0])
	}
	if clients[1].LastTokenRequestAt != nil || clients[1].PublicKey != "" {
		t.Fatalf("unexpected second client: %+v", clients[1])
	}
}

func TestClient_UpdateDisplayNameNotFound(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE clients SET display_name = $1 WHERE client_id = $2`)).
		WithArgs("new", "missing").WillReturnResult(sqlmock.NewResult(0, 0))

	err := dir.UpdateDisplayName(context.Background(), "missing", "new")
	if !errors.Is(err, directory.ErrClientNotFound()) {
		t.Fatalf("expected CLIENT_NOT_FOUND, got %v", err)
	}
}

func TestClient_DeleteClient(t *testing.T) {
	db, mock := newMock(t)
	dir := directoryinfra.NewPostgresClientDirectory(db, authinfra.NewBcryptPasswordService(bcrypt.MinCost))

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM clients WHERE client_id = $1`)).
		WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := dir.DeleteClient(context.Background(), "c1"); err != nil {
		t.Fatalf("deleting a missing client should not fail: %v", err)
	}
}
