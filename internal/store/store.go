// Package store persists works, versions, files and collections. Postgres is
// the production implementation; Memory backs unit tests with the same
// transactional behaviour.
package store

import (
	"context"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/works"
)

// Tx is the set of writes available inside a transaction. Any error returned
// from the transaction callback rolls every write back.
type Tx interface {
	// LockCollection loads the collection with its works, versions, files and
	// creators, holding a write lock on the collection, work, version and
	// membership rows until the transaction ends.
	LockCollection(ctx context.Context, id uint) (*collections.Collection, error)
	CreateWork(ctx context.Context, w *works.Work) error
	MoveFileMemberships(ctx context.Context, fromVersionID, toVersionID uint) error
	CreateAuthorships(ctx context.Context, rows []works.Authorship) error
	DeleteWork(ctx context.Context, id uint) error
	DeleteCollection(ctx context.Context, id uint) error
}

var (
	_ Tx = (*postgresTx)(nil)
	_ Tx = (*memoryTx)(nil)
)
