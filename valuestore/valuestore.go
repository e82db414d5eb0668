// Package valuestore wires the document mutation and merge engine (change,
// changetree, conflict) to a Storage backend behind one entry point, the
// way modules/zeta/odb.ODB wires a backend.Database into one façade.
package valuestore

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/antgroup/valuestore/asyncmutex"
	"github.com/antgroup/valuestore/change"
	"github.com/antgroup/valuestore/changetree"
	"github.com/antgroup/valuestore/conflict"
	"github.com/antgroup/valuestore/plumbing"
	"github.com/antgroup/valuestore/storage"
	"github.com/antgroup/valuestore/value"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// BranchID identifies a branch within a repository.
type BranchID uuid.UUID

// RepoID identifies a repository.
type RepoID uuid.UUID

func (b BranchID) String() string { return uuid.UUID(b).String() }
func (r RepoID) String() string   { return uuid.UUID(r).String() }

// docKey identifies the document a per-document Mutex guards: one branch
// within one repository.
type docKey struct {
	repo   RepoID
	branch BranchID
}

// Store is the façade over the core engine: it persists Changes through a
// storage.Storage backend and hands out the per-document lock described in
// spec.md §5.
type Store struct {
	backend storage.Storage

	mu    sync.Mutex
	locks map[docKey]*asyncmutex.Mutex
}

// New returns a Store backed by backend.
func New(backend storage.Storage) *Store {
	return &Store{
		backend: backend,
		locks:   make(map[docKey]*asyncmutex.Mutex),
	}
}

// Lock returns the per-document mutex for (repo, branch), creating it on
// first use. Acquire it before mutating a document's Value so that only one
// holder at a time can call GetMut on its root.
func (s *Store) Lock(repo RepoID, branch BranchID) *asyncmutex.Mutex {
	key := docKey{repo: repo, branch: branch}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = asyncmutex.New()
		s.locks[key] = m
	}
	return m
}

// AddChange persists an already-built Change, after checking that head is
// one of its parents: a change whose parents don't include the branch's
// current head was built against a head that has since moved, and must be
// rebuilt (typically via a merge) rather than accepted as-is.
func (s *Store) AddChange(ctx context.Context, branch BranchID, repo RepoID, head plumbing.Hash, ch change.Change) (storage.ChangeID, error) {
	if !ch.Parents.Contains(head) {
		return 0, &HeadParentMismatchError{Parent: head}
	}
	var buf bytes.Buffer
	if err := change.EncodeContent(&buf, ch.Content); err != nil {
		return 0, fmt.Errorf("encode change content: %w", err)
	}
	id, err := s.backend.AddChange(ctx, ch.Hash, buf.Bytes(), ch.Parents.Slice())
	if err != nil {
		return 0, fmt.Errorf("add change %s: %w", ch.Hash, err)
	}
	logrus.Debugf("valuestore: persisted change %s for branch %s repo %s", ch.Hash, branch, repo)
	return id, nil
}

// AddChangeSet folds a flat content list into a ChangeTree (rejecting on
// the first InvalidChange, so a caller never persists a half-consistent
// edit), builds the Change it represents against parent, and persists it.
func (s *Store) AddChangeSet(ctx context.Context, branch BranchID, repo RepoID, parent plumbing.Hash, contents []change.Content) (change.Change, error) {
	if _, err := changetree.Construct(contents); err != nil {
		return change.Change{}, err
	}
	ch, err := change.New(plumbing.OneParent(parent), contents)
	if err != nil {
		return change.Change{}, err
	}
	if _, err := s.AddChange(ctx, branch, repo, parent, ch); err != nil {
		return change.Change{}, err
	}
	return ch, nil
}

// AddChangeSets persists multiple independently-parented change sets
// concurrently, fanning the storage round-trips out with errgroup the way
// pkg/serve/repo/push.go fans out its batch uploads. Each entry in sets is
// built against its own parent head; a failure in any one aborts the group
// but does not roll back changes already committed by the others, since
// each change is independently content-addressed and idempotent to
// re-persist.
func (s *Store) AddChangeSets(ctx context.Context, branch BranchID, repo RepoID, sets []PendingChangeSet) ([]change.Change, error) {
	results := make([]change.Change, len(sets))
	g, gctx := errgroup.WithContext(ctx)
	for i, set := range sets {
		i, set := i, set
		g.Go(func() error {
			ch, err := s.AddChangeSet(gctx, branch, repo, set.Parent, set.Contents)
			if err != nil {
				return err
			}
			results[i] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PendingChangeSet is one not-yet-hashed change set: a parent head and the
// flat content list to fold into a Change built against it.
type PendingChangeSet struct {
	Parent   plumbing.Hash
	Contents []change.Content
}

// Merge resolves the two given change sets against a common ancestor,
// delegating the structural work to conflict.Resolve.
func (s *Store) Merge(ancestor value.Value, changesA, changesB []change.Content) (*conflict.Result, error) {
	return conflict.Resolve(ancestor, changesA, changesB)
}
