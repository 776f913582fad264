package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Collection names the embedded database file of the users store.
const Collection = "users"

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package globals.
var migrateMu sync.Mutex

func runMigrations(ctx context.Context, db *sql.DB, d dialect) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(d.goose); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, d.migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// EmbeddedPath is the SQLite file used for cfg's environment.
func EmbeddedPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, cfg.Environment, Collection+".db")
}

// Open connects to the backend selected by cfg: PostgreSQL when
// DatabaseDSN is set, otherwise the embedded SQLite file. Pending schema
// migrations are applied before Open returns.
func Open(ctx context.Context, cfg *config.Config, hook MutationHook, logger logging.Logger) (Store, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	d, dsn, err := resolveBackend(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d, err)
	}
	if d.name == sqliteDialect.name {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s store: %w", d, err)
	}

	if err := runMigrations(ctx, db, d); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info(ctx, "credential store opened", "backend", d.name)
	return newSQLStore(db, d, hook, logger), nil
}

func resolveBackend(cfg *config.Config) (dialect, string, error) {
	if cfg.DatabaseDSN != "" {
		return postgresDialect, cfg.DatabaseDSN, nil
	}

	dir, err := filex.EnsureDir(filepath.Dir(EmbeddedPath(cfg)))
	if err != nil {
		return dialect{}, "", fmt.Errorf("create data dir: %w", err)
	}
	dsn := "file:" + filepath.Join(dir, Collection+".db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	return sqliteDialect, dsn, nil
}

// CleanEmbedded removes the embedded store directory of cfg's environment.
// Tests use it to start from an empty store.
func CleanEmbedded(cfg *config.Config) error {
	dir := filepath.Join(cfg.DataDir, cfg.Environment)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clean embedded store: %w", err)
	}
	return nil
}
