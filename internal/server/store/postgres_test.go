package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresWithMock(t *testing.T, hook MutationHook) (*sqlStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := newSQLStore(db, postgresDialect, hook, nil)
	s.newID = func() string { return "id-1" }
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s, mock
}

var userRowColumns = []string{"id", "username", "password", "created_at", "updated_at"}

func TestPostgres_Insert(t *testing.T) {
	var hooked []Mutation
	s, mock := newPostgresWithMock(t, func(_ context.Context, m Mutation, _ *models.User) { hooked = append(hooked, m) })

	q := `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*password,\s*created_at,\s*updated_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)$`
	mock.ExpectExec(q).
		WithArgs("id-1", "alice", "hash", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := s.Insert(context.Background(), &models.User{Username: "alice", Password: "hash"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", got.ID)
	assert.Equal(t, []Mutation{Created}, hooked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertUniqueViolation(t *testing.T) {
	called := false
	s, mock := newPostgresWithMock(t, func(context.Context, Mutation, *models.User) { called = true })

	mock.ExpectExec(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := s.Insert(context.Background(), &models.User{Username: "alice", Password: "hash"})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.False(t, called)
}

func TestPostgres_InsertDBError(t *testing.T) {
	s, mock := newPostgresWithMock(t, nil)

	mock.ExpectExec(`INSERT INTO users`).WillReturnError(errors.New("db down"))

	_, err := s.Insert(context.Background(), &models.User{Username: "alice"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPostgres_FindOneByUsername(t *testing.T) {
	s, mock := newPostgresWithMock(t, nil)

	q := `(?s)^SELECT\s+id,\s*username,\s*password,\s*created_at,\s*updated_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+ORDER\s+BY\s+created_at\s+ASC,\s*id\s+ASC\s+LIMIT\s+1$`
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u-1", "alice", "hash", created, nil))

	got, err := s.FindOne(context.Background(), Filter{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.ID)
	assert.Equal(t, created, got.CreatedAt)
	assert.Nil(t, got.UpdatedAt)
}

func TestPostgres_FindOneNotFound(t *testing.T) {
	s, mock := newPostgresWithMock(t, nil)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindOne(context.Background(), Filter{ID: "ghost"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestPostgres_FindPaged(t *testing.T) {
	s, mock := newPostgresWithMock(t, nil)

	q := `(?s)^SELECT\s+.*\s+FROM\s+users\s+ORDER\s+BY\s+username\s+DESC\s+LIMIT\s+\$1\s+OFFSET\s+\$2$`
	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs(10, 20).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u-2", "bob", "h", now, now).
			AddRow("u-1", "alice", "h", now, nil))

	got, err := s.Find(context.Background(), Filter{Sort: "-username", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].UpdatedAt)
	assert.Nil(t, got[1].UpdatedAt)
}

func TestPostgres_Count(t *testing.T) {
	s, mock := newPostgresWithMock(t, nil)

	q := `(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+AND\s+id\s*<>\s*\$2$`
	mock.ExpectQuery(q).
		WithArgs("alice", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	n, err := s.Count(context.Background(), Filter{Username: "alice", ExcludeID: "u-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPostgres_UpdateByIDLocksRow(t *testing.T) {
	var hooked *models.User
	s, mock := newPostgresWithMock(t, func(_ context.Context, _ Mutation, u *models.User) { hooked = u })

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM users WHERE id = \$1 .*LIMIT 1 FOR UPDATE$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u-1", "alice", "old", created, nil))
	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+username\s*=\s*\$1,\s*password\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$4$`).
		WithArgs("alice", "new", sqlmock.AnyArg(), "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	pw := "new"
	at := time.Now()
	got, err := s.UpdateByID(context.Background(), "u-1", Patch{Password: &pw, UpdatedAt: &at})
	require.NoError(t, err)
	assert.Equal(t, "new", got.Password)
	require.NotNil(t, hooked)
	assert.Equal(t, "u-1", hooked.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateByIDConflictRollsBack(t *testing.T) {
	called := false
	s, mock := newPostgresWithMock(t, func(context.Context, Mutation, *models.User) { called = true })

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FOR UPDATE`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u-1", "bob", "h", time.Now(), nil))
	mock.ExpectExec(`UPDATE users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	name := "alice"
	_, err := s.UpdateByID(context.Background(), "u-1", Patch{Username: &name})
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RemoveByIDNotFound(t *testing.T) {
	s, mock := newPostgresWithMock(t, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FOR UPDATE`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.RemoveByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_RemoveByID(t *testing.T) {
	var hooked []Mutation
	s, mock := newPostgresWithMock(t, func(_ context.Context, m Mutation, _ *models.User) { hooked = append(hooked, m) })

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FOR UPDATE`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow("u-1", "alice", "h", time.Now(), nil))
	mock.ExpectExec(`^DELETE FROM users WHERE id = \$1$`).
		WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := s.RemoveByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []Mutation{Removed}, hooked)
}

func TestRunMigrations_Error(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return errors.New("boom")
	}

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = runMigrations(context.Background(), db, postgresDialect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations")
	assert.Equal(t, "postgres", gotDir)
}
