package store

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect captures what differs between the two SQL backends.
type dialect struct {
	name          string
	driver        string
	goose         string
	migrationsDir string
	// lockSuffix is appended to the read half of read-modify-write sequences.
	lockSuffix string
	// placeholder renders the n-th (1-based) bind parameter.
	placeholder func(n int) string
	// isUniqueViolation reports whether err is a UNIQUE constraint failure.
	isUniqueViolation func(err error) bool
}

var postgresDialect = dialect{
	name:          "postgres",
	driver:        "pgx",
	goose:         "pgx",
	migrationsDir: "postgres",
	lockSuffix:    " FOR UPDATE",
	placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

var sqliteDialect = dialect{
	name:          "sqlite",
	driver:        "sqlite",
	goose:         "sqlite3",
	migrationsDir: "sqlite",
	placeholder:   func(int) string { return "?" },
	isUniqueViolation: func(err error) bool {
		var sqlErr *sqlite.Error
		return errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	},
}

func (d dialect) String() string { return d.name }

// args accumulates bind parameters and renders their placeholders.
type args struct {
	d    dialect
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.placeholder(len(a.vals))
}

func (d dialect) sortClause(sort string) string {
	dir := "ASC"
	if len(sort) > 0 && sort[0] == '-' {
		dir = "DESC"
		sort = sort[1:]
	}
	switch sort {
	case "username":
		return fmt.Sprintf("username %s", dir)
	case "createdAt":
		return fmt.Sprintf("created_at %s, id %s", dir, dir)
	default:
		return "created_at ASC, id ASC"
	}
}
