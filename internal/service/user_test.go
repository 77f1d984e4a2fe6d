package service

import (
	"errors"
	"testing"

	"stickyboard/internal/auth"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestUserRegisterHashesPassword(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc := NewUserService(gdb)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users" WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	user, err := svc.Register("alice", "secret1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.PasswordHash == "secret1" {
		t.Error("password stored in clear")
	}
	if !auth.VerifyPassword(user.PasswordHash, "secret1") {
		t.Error("stored hash does not verify against the submitted password")
	}
	expectationsMet(t, mock)
}

func TestUserRegisterDuplicate(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc := NewUserService(gdb)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users" WHERE username = \$1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Register("alice", "secret1")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("Register() error = %v, want ErrUsernameTaken", err)
	}
	expectationsMet(t, mock)
}

// The register-then-login property: authenticating with the registered
// password returns the user plus their created board IDs for the token payload.
func TestUserAuthenticate(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	gdb, mock := newMockDB(t)
	svc := NewUserService(gdb)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).
			AddRow(1, "alice", hash))
	mock.ExpectQuery(`SELECT "id" FROM "boards" WHERE user_id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3).AddRow(5))

	user, boardIDs, err := svc.Authenticate("alice", "secret1")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != 1 || user.Username != "alice" {
		t.Errorf("user = {%d %s}, want {1 alice}", user.ID, user.Username)
	}
	if len(boardIDs) != 2 || boardIDs[0] != 3 || boardIDs[1] != 5 {
		t.Errorf("boardIDs = %v, want [3 5]", boardIDs)
	}
	expectationsMet(t, mock)
}

func TestUserAuthenticateWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	gdb, mock := newMockDB(t)
	svc := NewUserService(gdb)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).
			AddRow(1, "alice", hash))

	_, _, err = svc.Authenticate("alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
	}
	expectationsMet(t, mock)
}

func TestUserAuthenticateUnknownUser(t *testing.T) {
	gdb, mock := newMockDB(t)
	svc := NewUserService(gdb)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE username = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}))

	_, _, err := svc.Authenticate("ghost", "secret1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() error = %v, want ErrInvalidCredentials", err)
	}
	expectationsMet(t, mock)
}
