// Package storage defines the narrow persistence port the core engine uses
// to freeze a change graph, and a MySQL-backed reference implementation of
// it.
package storage

import (
	"context"

	"github.com/antgroup/valuestore/plumbing"
)

// ChangeID identifies a persisted Change within a backend's own id space.
// The core treats it as opaque; it is only ever passed back to the same
// backend that issued it.
type ChangeID int64

// Storage is the port the core engine uses to persist a content-addressed
// change graph: changes keyed by hash, with a directed parent→child edge
// set. A backend's add_change must be atomic across its hash insertion and
// its parent-edge insertions, and idempotent by hash: inserting a hash that
// already exists returns the existing id and never re-inserts parent edges.
type Storage interface {
	// AddChange persists content under hash, recording an edge from each of
	// parents to the new change. If hash is already present, the existing
	// ChangeID is returned and parents is ignored.
	AddChange(ctx context.Context, hash plumbing.Hash, content []byte, parents []plumbing.Hash) (ChangeID, error)
	// GetChangeID looks up the id of an already-persisted change by hash.
	GetChangeID(ctx context.Context, hash plumbing.Hash) (ChangeID, bool, error)
	// GetChangeRels returns id's parent ids, ordered by parent hash
	// ascending.
	GetChangeRels(ctx context.Context, id ChangeID) ([]ChangeID, error)
	// GetChangeContent returns the raw encoded bytes passed to AddChange
	// for id.
	GetChangeContent(ctx context.Context, id ChangeID) ([]byte, error)
}
