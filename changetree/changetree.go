// Package changetree aggregates a flat set of path-addressed change.Content
// edits into a path-hierarchical tree, the substrate both atomic batch
// application and three-way merge are built on.
package changetree

import (
	"fmt"

	"github.com/antgroup/valuestore/change"
	"github.com/antgroup/valuestore/value"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// Kind tags the variant a Node currently holds.
type Kind int

const (
	// Replace and Remove and Add are leaves: they fully describe the edit
	// at their path and carry no children.
	Replace Kind = iota
	Remove
	Add
	// MapNode and ArrayNode are interior nodes: they carry per-key/per-index
	// children and describe no edit of their own.
	MapNode
	ArrayNode
)

// Node is one position in a ChangeTree.
type Node struct {
	kind Kind

	old value.Value // Replace, Remove
	new value.Value // Replace, Add

	// changes is the original linearized change list that produced a leaf
	// (Replace/Remove/Add) node, retained so the tree can be replayed or
	// emitted after conflict resolution. Interior nodes carry none of
	// their own; each leaf speaks only for itself.
	changes []change.Content

	mapChildren map[string]*Node
	arrayData   *redblacktree.Tree // int index -> *Node, ascending
}

// Changes returns the original linearized change list that produced a leaf
// node. It is nil for interior (MapNode/ArrayNode) nodes.
func (n *Node) Changes() []change.Content { return n.changes }

// InvalidTreeChangeError is returned when a Content cannot be folded into
// the tree consistently with changes already present: it targets an
// already-removed subtree, collides with an incompatible sibling kind, or
// otherwise violates the pairing rules a ChangeTree enforces while being
// built.
type InvalidTreeChangeError struct {
	Change change.Content
	Reason string
}

func (e *InvalidTreeChangeError) Error() string {
	return fmt.Sprintf("changetree: invalid change at %s: %s", e.Change.Path(), e.Reason)
}

// IsInvalidTreeChange reports whether err is an *InvalidTreeChangeError.
func IsInvalidTreeChange(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*InvalidTreeChangeError)
	return ok
}

func invalidTree(c change.Content, reason string) error {
	return &InvalidTreeChangeError{Change: c, Reason: reason}
}

func newArrayNode() *Node {
	return &Node{kind: ArrayNode, arrayData: redblacktree.NewWith(utils.IntComparator)}
}

func newMapNode() *Node {
	return &Node{kind: MapNode, mapChildren: make(map[string]*Node)}
}

// ChangeTree is a hierarchical fold of a flat change.Content set.
type ChangeTree struct {
	root *Node
}

// New returns an empty ChangeTree.
func New() *ChangeTree { return &ChangeTree{} }

// FromNode wraps an already-built Node as a ChangeTree, used by the
// conflict package to turn a merged node back into an applicable tree.
func FromNode(n *Node) *ChangeTree { return &ChangeTree{root: n} }

// Root exposes the tree's root node for the conflict package's merge walk.
func (t *ChangeTree) Root() *Node { return t.root }

// Kind reports which variant n holds.
func (n *Node) Kind() Kind { return n.kind }

// Old returns the value a Replace or Remove node expects to find.
func (n *Node) Old() value.Value { return n.old }

// New returns the value an Add or Replace node installs.
func (n *Node) New() value.Value { return n.new }

// MapChildren exposes a MapNode's per-field children. Callers must treat
// the returned map as read-only.
func (n *Node) MapChildren() map[string]*Node { return n.mapChildren }

// ArrayData exposes an ArrayNode's per-index children, keyed by current
// logical index. Callers must treat the returned tree as read-only.
func (n *Node) ArrayData() *redblacktree.Tree { return n.arrayData }

// ArrayEntry pairs one ArrayNode child with the logical index it addresses
// in the ancestor array. Internal keys count positions after this change
// set's own insertions, so translating back out subtracts the Add children
// keyed before each entry.
type ArrayEntry struct {
	// Anchor is the ancestor-relative logical index: for an Add, the
	// position the insertion lands before; for anything else, the ancestor
	// element the subtree edits.
	Anchor int
	Node   *Node
}

// LogicalEntries returns an ArrayNode's children annotated with their
// logical ancestor index, in ascending internal-key order. Successive Adds
// inserted at one position share an anchor. It is nil for non-array nodes.
//
// Two trees built over the same ancestor key their children by their own
// post-insertion indices, so their ArrayData keys are not comparable with
// each other; anchors are, which is what the conflict package pairs by.
func (n *Node) LogicalEntries() []ArrayEntry {
	if n.kind != ArrayNode {
		return nil
	}
	out := make([]ArrayEntry, 0, n.arrayData.Size())
	adds := 0
	for _, keyRaw := range n.arrayData.Keys() {
		k := keyRaw.(int)
		raw, _ := n.arrayData.Get(k)
		child := raw.(*Node)
		out = append(out, ArrayEntry{Anchor: k - adds, Node: child})
		if child.kind == Add {
			adds++
		}
	}
	return out
}

// NewMapNodeForMerge returns an empty MapNode, for the conflict package to
// assemble a merged tree out of the children it resolves automatically.
func NewMapNodeForMerge() *Node { return newMapNode() }

// NewArrayNodeForMerge returns an empty ArrayNode, for the conflict package
// to assemble a merged tree out of the children it resolves automatically.
func NewArrayNodeForMerge() *Node { return newArrayNode() }

// SetMapChild sets a MapNode's child at name, for merge assembly.
func (n *Node) SetMapChild(name string, child *Node) { n.mapChildren[name] = child }

// SetArrayChild sets an ArrayNode's child at idx, for merge assembly.
func (n *Node) SetArrayChild(idx int, child *Node) { n.arrayData.Put(idx, child) }

// Construct folds contents into a fresh ChangeTree, in order.
func Construct(contents []change.Content) (*ChangeTree, error) {
	t := New()
	for _, c := range contents {
		if err := t.AddChange(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// AddChange folds one more Content into the tree.
func (t *ChangeTree) AddChange(c change.Content) error {
	root, err := addChangeAt(t.root, c.Path(), c)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// addChangeAt folds content (whose remaining path is path) into node,
// returning the node that should take node's place.
func addChangeAt(node *Node, path value.Path, content change.Content) (*Node, error) {
	if len(path) == 0 {
		return combineLeaf(node, content)
	}
	step, rest := path[0], path[1:]
	if name, isField := step.FieldName(); isField {
		return addAtField(node, name, rest, content)
	}
	idx, _ := step.IndexValue()
	return addAtIndex(node, int(idx), rest, content)
}

func addAtField(node *Node, name string, rest value.Path, content change.Content) (*Node, error) {
	switch {
	case node == nil:
		node = newMapNode()
	case node.kind == Add || node.kind == Replace:
		// Editing inside a value this same change set already inserted or
		// replaced wholesale: mutate the captured value directly and reuse
		// change.Apply's own preconditions instead of duplicating them.
		if err := change.Apply(&node.new, change.WithPath(content, rest)); err != nil {
			return nil, invalidTree(content, err.Error())
		}
		node.changes = append(node.changes, content)
		return node, nil
	case node.kind == Remove:
		return nil, invalidTree(content, "addresses a subtree already removed")
	case node.kind != MapNode:
		return nil, invalidTree(content, "path kind mismatch: expected map field")
	}
	child := node.mapChildren[name]
	next, err := addChangeAt(child, rest, content)
	if err != nil {
		return nil, err
	}
	if next == nil {
		delete(node.mapChildren, name)
	} else {
		node.mapChildren[name] = next
	}
	return node, nil
}

func addAtIndex(node *Node, idx int, rest value.Path, content change.Content) (*Node, error) {
	switch {
	case node == nil:
		node = newArrayNode()
	case node.kind == Add || node.kind == Replace:
		if err := change.Apply(&node.new, change.WithPath(content, rest)); err != nil {
			return nil, invalidTree(content, err.Error())
		}
		node.changes = append(node.changes, content)
		return node, nil
	case node.kind == Remove:
		return nil, invalidTree(content, "addresses a subtree already removed")
	case node.kind != ArrayNode:
		return nil, invalidTree(content, "path kind mismatch: expected array index")
	}

	existingRaw, found := node.arrayData.Get(idx)
	var existing *Node
	if found {
		existing = existingRaw.(*Node)
	}

	// An insertion terminating at a fresh index expands the array: every
	// later sibling shifts right by one so their keys keep naming the same
	// elements. An insertion landing on an occupied index instead descends,
	// so a Remove leaf there can promote to a Replace.
	if len(rest) == 0 && content.Kind() == change.Insert && !found {
		shiftArrayFrom(node.arrayData, idx, 1)
		val, _ := content.InsertValue()
		node.arrayData.Put(idx, &Node{kind: Add, new: val, changes: []change.Content{content}})
		return node, nil
	}

	next, err := addChangeAt(existing, rest, content)
	if err != nil {
		return nil, err
	}
	if next == nil {
		// An Add cancelled by its own Delete: undo the shift its insertion
		// applied so later siblings line up with the array again.
		node.arrayData.Remove(idx)
		shiftArrayDown(node.arrayData, idx+1)
	} else {
		node.arrayData.Put(idx, next)
	}
	return node, nil
}

// shiftArrayFrom re-keys every child at or after from by delta, highest
// key first so no entry is overwritten mid-walk.
func shiftArrayFrom(data *redblacktree.Tree, from, delta int) {
	keys := data.Keys()
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i].(int)
		if k < from {
			continue
		}
		v, _ := data.Get(k)
		data.Remove(k)
		data.Put(k+delta, v)
	}
}

// shiftArrayDown re-keys every child at or after from down by one, lowest
// key first so no entry is overwritten mid-walk.
func shiftArrayDown(data *redblacktree.Tree, from int) {
	for _, keyRaw := range data.Keys() {
		k := keyRaw.(int)
		if k < from {
			continue
		}
		v, _ := data.Get(k)
		data.Remove(k)
		data.Put(k-1, v)
	}
}

// combineLeaf folds a leaf-level content (path already fully consumed)
// into node, the value-generation rules for each existing/incoming pairing
// following the pairing table: a previously-absent position accepts any
// primitive outright, except an Insert or Delete of the document root; a
// collision chains through the intermediate value's equality (mirroring
// how change.ApplyReplace/ApplyDelete check old), and an
// Add+Delete or Remove+Insert pairing either clears the node or promotes it.
func combineLeaf(node *Node, content change.Content) (*Node, error) {
	if node == nil {
		switch content.Kind() {
		case change.Insert:
			if len(content.Path()) == 0 {
				return nil, invalidTree(content, "cannot insert the document root")
			}
			val, _ := content.InsertValue()
			return &Node{kind: Add, new: val, changes: []change.Content{content}}, nil
		case change.Replace:
			old, _ := content.ReplaceOld()
			newVal, _ := content.ReplaceNew()
			return &Node{kind: Replace, old: old, new: newVal, changes: []change.Content{content}}, nil
		case change.Delete:
			if len(content.Path()) == 0 {
				return nil, invalidTree(content, "cannot delete the document root")
			}
			old, _ := content.DeleteOld()
			return &Node{kind: Remove, old: old, changes: []change.Content{content}}, nil
		}
		return nil, invalidTree(content, "unknown content kind")
	}

	switch node.kind {
	case Add:
		switch content.Kind() {
		case change.Replace:
			old, _ := content.ReplaceOld()
			if !node.new.Equal(old) {
				return nil, invalidTree(content, "replace does not match the value this change set just inserted")
			}
			newVal, _ := content.ReplaceNew()
			return &Node{kind: Add, new: newVal, changes: append(node.changes, content)}, nil
		case change.Delete:
			old, _ := content.DeleteOld()
			if !node.new.Equal(old) {
				return nil, invalidTree(content, "delete does not match the value this change set just inserted")
			}
			return nil, nil // Add + Delete cancels out: the tree is cleared here.
		default:
			return nil, invalidTree(content, "cannot insert over a value this change set already inserted")
		}
	case Replace:
		switch content.Kind() {
		case change.Replace:
			old, _ := content.ReplaceOld()
			if !node.new.Equal(old) {
				return nil, invalidTree(content, "replace does not match this change set's prior replacement")
			}
			newVal, _ := content.ReplaceNew()
			return &Node{kind: Replace, old: node.old, new: newVal, changes: append(node.changes, content)}, nil
		case change.Delete:
			old, _ := content.DeleteOld()
			if !node.new.Equal(old) {
				return nil, invalidTree(content, "delete does not match this change set's prior replacement")
			}
			return &Node{kind: Remove, old: node.old, changes: append(node.changes, content)}, nil
		default:
			return nil, invalidTree(content, "cannot insert over a value this change set already replaced")
		}
	case Remove:
		switch content.Kind() {
		case change.Insert:
			val, _ := content.InsertValue()
			return &Node{kind: Replace, old: node.old, new: val, changes: append(node.changes, content)}, nil
		default:
			return nil, invalidTree(content, "addresses a subtree already removed")
		}
	default:
		return nil, invalidTree(content, "path ends inside a value this change set only partially edited")
	}
}

// CollectChanges walks n and returns the concatenation of every leaf's
// retained change list, in tree order. It is nil for a nil root.
func CollectChanges(n *Node) []change.Content {
	if n == nil {
		return nil
	}
	switch n.kind {
	case MapNode:
		var out []change.Content
		for _, child := range n.mapChildren {
			out = append(out, CollectChanges(child)...)
		}
		return out
	case ArrayNode:
		var out []change.Content
		for _, key := range n.arrayData.Keys() {
			childRaw, _ := n.arrayData.Get(key)
			out = append(out, CollectChanges(childRaw.(*Node))...)
		}
		return out
	default:
		return n.changes
	}
}

// Apply folds the tree's edits into a clone of ancestor, enforcing every
// precondition the constituent changes carried.
func (t *ChangeTree) Apply(ancestor value.Value) (value.Value, error) {
	result := ancestor.Clone()
	if t.root == nil {
		return result, nil
	}
	if err := applyNode(&result, t.root); err != nil {
		return value.Value{}, err
	}
	return result, nil
}

func applyNode(target *value.Value, node *Node) error {
	switch node.kind {
	case Replace:
		if !target.Equal(node.old) {
			return fmt.Errorf("changetree: replace precondition failed")
		}
		*target = node.new
		return nil
	case Remove, Add:
		return fmt.Errorf("changetree: %v node reached with no parent container to act on", node.kind)
	case MapNode:
		for field, child := range node.mapChildren {
			if err := applyMapChild(target, field, child); err != nil {
				return err
			}
		}
		return nil
	case ArrayNode:
		return applyArrayChildren(target, node)
	default:
		return fmt.Errorf("changetree: unknown node kind %v", node.kind)
	}
}

func applyMapChild(target *value.Value, field string, child *Node) error {
	switch child.kind {
	case Add:
		if !target.InsertField(field, child.new) {
			return fmt.Errorf("changetree: insert precondition failed at field %q", field)
		}
		return nil
	case Remove:
		if !target.DeleteField(field, child.old) {
			return fmt.Errorf("changetree: delete precondition failed at field %q", field)
		}
		return nil
	case Replace:
		ref, ok := target.GetMut(value.Path{value.Field(field)})
		if !ok || !ref.Equal(child.old) {
			return fmt.Errorf("changetree: replace precondition failed at field %q", field)
		}
		*ref = child.new
		return nil
	default:
		ref, ok := target.GetMut(value.Path{value.Field(field)})
		if !ok {
			return fmt.Errorf("changetree: field %q missing in ancestor", field)
		}
		return applyNode(ref, child)
	}
}

func applyArrayChildren(target *value.Value, node *Node) error {
	if target.Kind() != value.Array {
		return fmt.Errorf("changetree: array node applied to a non-array value")
	}
	for _, key := range node.arrayData.Keys() {
		idx := key.(int)
		childRaw, _ := node.arrayData.Get(idx)
		child := childRaw.(*Node)
		switch child.kind {
		case Add:
			if !target.InsertAt(idx, child.new) {
				return fmt.Errorf("changetree: insert precondition failed at index %d", idx)
			}
		case Remove:
			if !target.DeleteAt(idx, child.old) {
				return fmt.Errorf("changetree: delete precondition failed at index %d", idx)
			}
		case Replace:
			ref, ok := target.GetMut(value.Path{value.Index(uint32(idx))})
			if !ok || !ref.Equal(child.old) {
				return fmt.Errorf("changetree: replace precondition failed at index %d", idx)
			}
			*ref = child.new
		default:
			ref, ok := target.GetMut(value.Path{value.Index(uint32(idx))})
			if !ok {
				return fmt.Errorf("changetree: index %d missing in ancestor", idx)
			}
			if err := applyNode(ref, child); err != nil {
				return err
			}
		}
	}
	return nil
}
