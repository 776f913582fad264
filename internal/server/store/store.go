// Package store persists user records. The same contract is served by a
// networked PostgreSQL backend and an embedded file-backed SQLite backend;
// which one is used is decided once by Open.
package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Store is the credential store contract. Absent records are reported as
// common.ErrNotFound and username collisions as common.ErrConflict.
type Store interface {
	Find(ctx context.Context, f Filter) ([]*models.User, error)
	FindOne(ctx context.Context, f Filter) (*models.User, error)
	Insert(ctx context.Context, u *models.User) (*models.User, error)
	UpdateByID(ctx context.Context, id string, p Patch) (*models.User, error)
	RemoveByID(ctx context.Context, id string) (*models.User, error)
	Count(ctx context.Context, f Filter) (int, error)
	Close() error
}

// Filter selects records. Zero-valued fields do not constrain the query.
type Filter struct {
	ID        string
	Username  string
	ExcludeID string

	// Sort is one of "username", "createdAt", optionally prefixed with "-"
	// for descending order. Anything else falls back to creation order.
	Sort   string
	Limit  int
	Offset int
}

// Patch lists the fields UpdateByID changes. Nil fields are left as is.
type Patch struct {
	Username  *string
	Password  *string
	UpdatedAt *time.Time
}

// Mutation names the kind of change passed to a MutationHook.
type Mutation string

const (
	Created Mutation = "created"
	Updated Mutation = "updated"
	Removed Mutation = "deleted"
)

// MutationHook runs after every successful write with a snapshot of the
// affected record (the removed record for deletions).
type MutationHook func(ctx context.Context, m Mutation, snapshot *models.User)
