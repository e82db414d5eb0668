// Package conflict implements three-way conflict detection and resolution
// between two independently-edited change.Content sets sharing a common
// ancestor value.Value.
package conflict

import (
	"fmt"
	"sort"

	"github.com/antgroup/valuestore/change"
	"github.com/antgroup/valuestore/changetree"
	"github.com/antgroup/valuestore/value"
)

// Side identifies which of the two change sets a ConflictSide describes.
type Side int

const (
	SideA Side = iota
	SideB
)

// ConflictSide describes one side's edit at a conflicting path.
type ConflictSide struct {
	Kind    changetree.Kind
	Old     value.Value
	New     value.Value
	Changes []change.Content
}

// Conflict is one position where the two change sets cannot be merged
// automatically.
type Conflict struct {
	Path value.Path
	A    ConflictSide
	B    ConflictSide
}

func (c Conflict) String() string {
	return fmt.Sprintf("conflict at %s", c.Path)
}

// Result is the outcome of Resolve.
//
// When Resolved is true, Value holds the fully merged document, Conflicts
// is empty, and Changes holds each side's complete change set (from
// ResolveWith: each side's changes that made it into the merge). When false,
// Value holds the untouched common ancestor, Conflicts lists every path
// where neither side's edit could be folded into the other's
// automatically, Changes holds the per-side subsets that did auto-merge,
// and Trees carries both constructed ChangeTrees so a caller can pick a
// side per conflict and replay.
type Result struct {
	Resolved  bool
	Value     value.Value
	Changes   [2][]change.Content
	Conflicts []Conflict
	Trees     [2]*changetree.ChangeTree
}

// Resolve builds a ChangeTree from each change set against ancestor, walks
// both trees together, and classifies every pairing per the table: a path
// only one side touched auto-merges; Add/Add or Replace/Replace pairings
// with equal new values, and any Remove/Remove pairing, auto-merge;
// anything else at the same path is a
// Conflict, including an interior (partial, structural) edit on one side
// meeting a Replace or Remove covering the same path on the other.
func Resolve(ancestor value.Value, changesA, changesB []change.Content) (*Result, error) {
	treeA, err := changetree.Construct(changesA)
	if err != nil {
		return nil, err
	}
	treeB, err := changetree.Construct(changesB)
	if err != nil {
		return nil, err
	}
	trees := [2]*changetree.ChangeTree{treeA, treeB}

	merged, conflicts, commonA, commonB := mergeNodes(nil, treeA.Root(), treeB.Root(), nil)
	if len(conflicts) > 0 {
		return &Result{
			Value:     ancestor,
			Changes:   [2][]change.Content{commonA, commonB},
			Conflicts: conflicts,
			Trees:     trees,
		}, nil
	}

	val, err := changetree.FromNode(merged).Apply(ancestor)
	if err != nil {
		return nil, err
	}
	return &Result{
		Resolved: true,
		Value:    val,
		Changes:  [2][]change.Content{changesA, changesB},
		Trees:    trees,
	}, nil
}

// ResolveWith is Resolve with a chooser: every pairing Resolve would report
// as a Conflict is instead decided by pick, so the merge always completes.
// The winning side's changes join that side's entry in Result.Changes; the
// losing side's edit at that path is dropped.
func ResolveWith(ancestor value.Value, changesA, changesB []change.Content, pick func(Conflict) Side) (*Result, error) {
	treeA, err := changetree.Construct(changesA)
	if err != nil {
		return nil, err
	}
	treeB, err := changetree.Construct(changesB)
	if err != nil {
		return nil, err
	}

	merged, _, commonA, commonB := mergeNodes(nil, treeA.Root(), treeB.Root(), pick)
	val, err := changetree.FromNode(merged).Apply(ancestor)
	if err != nil {
		return nil, err
	}
	return &Result{
		Resolved: true,
		Value:    val,
		Changes:  [2][]change.Content{commonA, commonB},
		Trees:    [2]*changetree.ChangeTree{treeA, treeB},
	}, nil
}

// mergeNodes folds a and b, both rooted at path, into one node representing
// everything that merges automatically, plus the list of pairings that
// don't and, per side, the changes that contributed to the automatic part.
// With a nil pick, subtrees rooted at a reported conflict are dropped from
// the merged result entirely (left at the ancestor's value) rather than
// guessed at; with a non-nil pick, the chosen side's subtree stands in.
func mergeNodes(path value.Path, a, b *changetree.Node, pick func(Conflict) Side) (*changetree.Node, []Conflict, []change.Content, []change.Content) {
	switch {
	case a == nil && b == nil:
		return nil, nil, nil, nil
	case a == nil:
		return b, nil, nil, changetree.CollectChanges(b)
	case b == nil:
		return a, nil, changetree.CollectChanges(a), nil
	}

	aInterior := a.Kind() == changetree.MapNode || a.Kind() == changetree.ArrayNode
	bInterior := b.Kind() == changetree.MapNode || b.Kind() == changetree.ArrayNode

	switch {
	case aInterior && bInterior && a.Kind() == b.Kind():
		return mergeInterior(path, a, b, pick)
	case aInterior || bInterior:
		// An interior (structural) edit on one side meeting a whole-subtree
		// Replace/Remove on the other always conflicts: there's no way to
		// tell whether the structural edits still make sense against the
		// other side's replacement value.
		return settle(path, a, b, pick)
	case a.Kind() == changetree.Add && b.Kind() == changetree.Add:
		if a.New().Equal(b.New()) {
			return a, nil, a.Changes(), b.Changes()
		}
		return settle(path, a, b, pick)
	case a.Kind() == changetree.Remove && b.Kind() == changetree.Remove:
		return a, nil, a.Changes(), b.Changes()
	case a.Kind() == changetree.Replace && b.Kind() == changetree.Replace:
		if a.New().Equal(b.New()) {
			return a, nil, a.Changes(), b.Changes()
		}
		return settle(path, a, b, pick)
	default:
		return settle(path, a, b, pick)
	}
}

// settle reports the pairing at path as a Conflict, or, when a pick
// function is supplied, hands the position to the chosen side outright.
func settle(path value.Path, a, b *changetree.Node, pick func(Conflict) Side) (*changetree.Node, []Conflict, []change.Content, []change.Content) {
	c := conflictAt(path, a, b)
	if pick == nil {
		return nil, []Conflict{c}, nil, nil
	}
	if pick(c) == SideB {
		return b, nil, nil, c.B.Changes
	}
	return a, nil, c.A.Changes, nil
}

func conflictAt(path value.Path, a, b *changetree.Node) Conflict {
	return Conflict{
		Path: path.Clone(),
		A:    ConflictSide{Kind: a.Kind(), Old: a.Old(), New: a.New(), Changes: changetree.CollectChanges(a)},
		B:    ConflictSide{Kind: b.Kind(), Old: b.Old(), New: b.New(), Changes: changetree.CollectChanges(b)},
	}
}

func mergeInterior(path value.Path, a, b *changetree.Node, pick func(Conflict) Side) (*changetree.Node, []Conflict, []change.Content, []change.Content) {
	if a.Kind() == changetree.MapNode {
		return mergeMapInterior(path, a, b, pick)
	}
	return mergeArrayInterior(path, a, b, pick)
}

func mergeMapInterior(path value.Path, a, b *changetree.Node, pick func(Conflict) Side) (*changetree.Node, []Conflict, []change.Content, []change.Content) {
	merged := changetree.NewMapNodeForMerge()
	var conflicts []Conflict
	var commonA, commonB []change.Content
	seen := make(map[string]bool)
	for key, childA := range a.MapChildren() {
		seen[key] = true
		childPath := append(path.Clone(), value.Field(key))
		mergedChild, sub, subA, subB := mergeNodes(childPath, childA, b.MapChildren()[key], pick)
		conflicts = append(conflicts, sub...)
		commonA = append(commonA, subA...)
		commonB = append(commonB, subB...)
		if mergedChild != nil {
			merged.SetMapChild(key, mergedChild)
		}
	}
	for key, childB := range b.MapChildren() {
		if seen[key] {
			continue
		}
		childPath := append(path.Clone(), value.Field(key))
		mergedChild, sub, subA, subB := mergeNodes(childPath, nil, childB, pick)
		conflicts = append(conflicts, sub...)
		commonA = append(commonA, subA...)
		commonB = append(commonB, subB...)
		if mergedChild != nil {
			merged.SetMapChild(key, mergedChild)
		}
	}
	return merged, conflicts, commonA, commonB
}

// arrayAnchor groups, at one logical ancestor index, each side's
// insertions (in arrival order) and its at-most-one edit of the element
// itself.
type arrayAnchor struct {
	addsA, addsB []*changetree.Node
	editA, editB *changetree.Node
}

// mergeArrayInterior pairs the two sides' children by logical ancestor
// index, not by raw internal key: each side's ArrayData keys count that
// side's own insertions, so they only become comparable once translated
// back through LogicalEntries. Insertions at one anchor pair positionally,
// the left side leading on ties; the merged node's keys then re-compose
// both sides' shifts additively so Apply replays every insertion before
// the edits it displaces.
func mergeArrayInterior(path value.Path, a, b *changetree.Node, pick func(Conflict) Side) (*changetree.Node, []Conflict, []change.Content, []change.Content) {
	anchors := make(map[int]*arrayAnchor)
	anchorAt := func(i int) *arrayAnchor {
		an, ok := anchors[i]
		if !ok {
			an = &arrayAnchor{}
			anchors[i] = an
		}
		return an
	}
	for _, e := range a.LogicalEntries() {
		an := anchorAt(e.Anchor)
		if e.Node.Kind() == changetree.Add {
			an.addsA = append(an.addsA, e.Node)
		} else {
			an.editA = e.Node
		}
	}
	for _, e := range b.LogicalEntries() {
		an := anchorAt(e.Anchor)
		if e.Node.Kind() == changetree.Add {
			an.addsB = append(an.addsB, e.Node)
		} else {
			an.editB = e.Node
		}
	}
	order := make([]int, 0, len(anchors))
	for i := range anchors {
		order = append(order, i)
	}
	sort.Ints(order)

	merged := changetree.NewArrayNodeForMerge()
	var conflicts []Conflict
	var commonA, commonB []change.Content
	shift := 0
	for _, idx := range order {
		an := anchors[idx]
		childPath := append(path.Clone(), value.Index(uint32(idx)))

		pairs := len(an.addsA)
		if len(an.addsB) > pairs {
			pairs = len(an.addsB)
		}
		for j := 0; j < pairs; j++ {
			var ca, cb *changetree.Node
			if j < len(an.addsA) {
				ca = an.addsA[j]
			}
			if j < len(an.addsB) {
				cb = an.addsB[j]
			}
			mergedChild, sub, subA, subB := mergeNodes(childPath, ca, cb, pick)
			conflicts = append(conflicts, sub...)
			commonA = append(commonA, subA...)
			commonB = append(commonB, subB...)
			if mergedChild != nil {
				merged.SetArrayChild(idx+shift, mergedChild)
				shift++
			}
		}

		if an.editA != nil || an.editB != nil {
			mergedChild, sub, subA, subB := mergeNodes(childPath, an.editA, an.editB, pick)
			conflicts = append(conflicts, sub...)
			commonA = append(commonA, subA...)
			commonB = append(commonB, subB...)
			if mergedChild != nil {
				merged.SetArrayChild(idx+shift, mergedChild)
			}
		}
	}
	return merged, conflicts, commonA, commonB
}
