package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"

	"github.com/mackenziemax/userhub/internal/apperror"
)

func newRepoWithMock(t *testing.T) (Repository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewRepository(db), mock, db
}

var userCols = []string{"id", "name", "email", "password", "birth_at", "role", "created_at", "updated_at"}

func TestRepositoryCreate_SetsID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users\s*\(name,\s*email,\s*password,\s*birth_at,\s*role,\s*created_at,\s*updated_at\)`).
		WithArgs("Ada", "ada@example.com", "$argon2id$h", sqlmock.AnyArg(), 1, now, now).
		WillReturnResult(sqlmock.NewResult(17, 1))

	u := &User{Name: "Ada", Email: "ada@example.com", Password: "$argon2id$h", Role: RoleUser, CreatedAt: now, UpdatedAt: now}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.ID != 17 {
		t.Errorf("expected id 17, got %d", u.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRepositoryCreate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+users`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Create(context.Background(), &User{Name: "Ada", Email: "ada@example.com", Role: RoleUser})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRepositoryFindByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC)
	birth := time.Date(1990, 3, 4, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(userCols).
		AddRow(int64(3), "Bob", "bob@example.com", "$argon2id$x", birth, int64(2), created, created)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*name,\s*email.*FROM\s+users\s+WHERE\s+email\s*=\s*\?$`).
		WithArgs("bob@example.com").
		WillReturnRows(rows)

	u, err := repo.FindByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("FindByEmail error: %v", err)
	}
	if u.ID != 3 || u.Role != RoleAdmin || u.Password != "$argon2id$x" {
		t.Errorf("unexpected user: %+v", u)
	}
	if u.BirthAt == nil || !u.BirthAt.Equal(birth) {
		t.Errorf("unexpected birth date: %v", u.BirthAt)
	}
}

func TestRepositoryFindByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\?`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 9)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepositoryFindByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id`).
		WillReturnError(errors.New("db down"))

	_, err := repo.FindByID(context.Background(), 1)
	if err == nil || apperror.IsNotFound(err) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestRepositoryList_NullBirth(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userCols).
		AddRow(int64(1), "A", "a@example.com", "h1", nil, int64(1), now, now).
		AddRow(int64(2), "B", "b@example.com", "h2", nil, int64(2), now, now)
	mock.ExpectQuery(`(?s)FROM\s+users\s+ORDER\s+BY\s+id$`).WillReturnRows(rows)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(users) != 2 || users[0].BirthAt != nil || users[1].Role != RoleAdmin {
		t.Errorf("unexpected users: %+v", users)
	}
}

func TestRepositoryUpdatePassword_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+password\s*=\s*\?`).
		WithArgs("$argon2id$new", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), 4, "$argon2id$new")
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRepositoryUpdate_Duplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+name`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.Update(context.Background(), &User{ID: 1, Role: RoleUser})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRepositoryUpdate_UnchangedRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	// With clientFoundRows the server reports a matched but unchanged row as 1.
	mock.ExpectExec(`UPDATE\s+users\s+SET\s+name`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Update(context.Background(), &User{ID: 3, Role: RoleUser}); err != nil {
		t.Fatalf("unexpected error for unchanged row: %v", err)
	}

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+name`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Update(context.Background(), &User{ID: 99, Role: RoleUser}); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found for missing row, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\?`).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), 6); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	mock.ExpectExec(`DELETE\s+FROM\s+users`).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), 6); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestRepositoryEmailExists(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT\s+EXISTS`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.EmailExists(context.Background(), "a@example.com")
	if err != nil || !exists {
		t.Fatalf("expected true, got %v (%v)", exists, err)
	}
}
