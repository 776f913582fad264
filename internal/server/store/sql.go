package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/google/uuid"
)

const userColumns = "id, username, password, created_at, updated_at"

// sqlStore implements Store on database/sql for either dialect.
type sqlStore struct {
	db     *sql.DB
	d      dialect
	hook   MutationHook
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

func newSQLStore(db *sql.DB, d dialect, hook MutationHook, logger logging.Logger) *sqlStore {
	if hook == nil {
		hook = func(context.Context, Mutation, *models.User) {}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &sqlStore{
		db:     db,
		d:      d,
		hook:   hook,
		logger: logger.With("module", "store", "backend", d.name),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
}

func (s *sqlStore) where(f Filter, a *args) string {
	var conds []string
	if f.ID != "" {
		conds = append(conds, "id = "+a.add(f.ID))
	}
	if f.Username != "" {
		conds = append(conds, "username = "+a.add(f.Username))
	}
	if f.ExcludeID != "" {
		conds = append(conds, "id <> "+a.add(f.ExcludeID))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	var updated sql.NullTime
	if err := row.Scan(&u.ID, &u.Username, &u.Password, &u.CreatedAt, &updated); err != nil {
		return nil, err
	}
	if updated.Valid {
		t := updated.Time
		u.UpdatedAt = &t
	}
	return u, nil
}

func (s *sqlStore) Find(ctx context.Context, f Filter) ([]*models.User, error) {
	a := &args{d: s.d}
	query := "SELECT " + userColumns + " FROM users" + s.where(f, a) +
		" ORDER BY " + s.d.sortClause(f.Sort)
	if f.Limit > 0 {
		query += " LIMIT " + a.add(f.Limit)
	}
	if f.Offset > 0 {
		if f.Limit <= 0 && s.d.name == sqliteDialect.name {
			query += " LIMIT -1"
		}
		query += " OFFSET " + a.add(f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (s *sqlStore) FindOne(ctx context.Context, f Filter) (*models.User, error) {
	return s.findOne(ctx, s.db, f, "")
}

func (s *sqlStore) findOne(ctx context.Context, db dbx.DBTX, f Filter, suffix string) (*models.User, error) {
	a := &args{d: s.d}
	query := "SELECT " + userColumns + " FROM users" + s.where(f, a) +
		" ORDER BY " + s.d.sortClause(f.Sort) + " LIMIT 1" + suffix

	u, err := scanUser(db.QueryRowContext(ctx, query, a.vals...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (s *sqlStore) Insert(ctx context.Context, u *models.User) (*models.User, error) {
	rec := *u
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}

	a := &args{d: s.d}
	query := fmt.Sprintf("INSERT INTO users (%s) VALUES (%s, %s, %s, %s, %s)", userColumns,
		a.add(rec.ID), a.add(rec.Username), a.add(rec.Password), a.add(rec.CreatedAt), a.add(nullTime(rec.UpdatedAt)))

	if _, err := s.db.ExecContext(ctx, query, a.vals...); err != nil {
		if s.d.isUniqueViolation(err) {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.logger.Debug(ctx, "user inserted", "id", rec.ID)
	s.hook(ctx, Created, &rec)
	return &rec, nil
}

func (s *sqlStore) UpdateByID(ctx context.Context, id string, p Patch) (*models.User, error) {
	var updated *models.User

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := s.findOne(ctx, tx, Filter{ID: id}, s.d.lockSuffix)
		if err != nil {
			return err
		}

		if p.Username != nil {
			cur.Username = *p.Username
		}
		if p.Password != nil {
			cur.Password = *p.Password
		}
		if p.UpdatedAt != nil {
			t := *p.UpdatedAt
			cur.UpdatedAt = &t
		}

		a := &args{d: s.d}
		query := fmt.Sprintf("UPDATE users SET username = %s, password = %s, updated_at = %s WHERE id = %s",
			a.add(cur.Username), a.add(cur.Password), a.add(nullTime(cur.UpdatedAt)), a.add(cur.ID))
		if _, err := tx.ExecContext(ctx, query, a.vals...); err != nil {
			if s.d.isUniqueViolation(err) {
				return common.ErrConflict
			}
			return fmt.Errorf("db error: %w", err)
		}

		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hook(ctx, Updated, updated)
	return updated, nil
}

func (s *sqlStore) RemoveByID(ctx context.Context, id string) (*models.User, error) {
	var removed *models.User

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := s.findOne(ctx, tx, Filter{ID: id}, s.d.lockSuffix)
		if err != nil {
			return err
		}

		query := "DELETE FROM users WHERE id = " + s.d.placeholder(1)
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		removed = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.hook(ctx, Removed, removed)
	return removed, nil
}

func (s *sqlStore) Count(ctx context.Context, f Filter) (int, error) {
	a := &args{d: s.d}
	query := "SELECT COUNT(*) FROM users" + s.where(f, a)

	var n int
	if err := s.db.QueryRowContext(ctx, query, a.vals...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
