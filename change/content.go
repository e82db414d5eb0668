// Package change implements primitive path-addressed document edits and
// their application against a value.Value.
package change

import (
	"fmt"

	"github.com/antgroup/valuestore/value"
)

// Kind tags the variant a Content currently holds.
type Kind int

const (
	Insert Kind = iota
	Replace
	Delete
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Replace:
		return "replace"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Content is a single primitive edit addressed by Path. Insert requires the
// addressed location to be currently absent; Replace requires it to hold
// exactly Old; Delete requires it to hold exactly Old and removes it.
//
// Path always names the location as seen in the document the Content is
// applied against; it is never stripped during ChangeTree descent, so a
// Content value read back out of any tree still carries its original,
// full path for error reporting.
type Content struct {
	kind  Kind
	path  value.Path
	value value.Value
	old   value.Value
}

// NewInsert builds an Insert content: inserting val at path.
func NewInsert(path value.Path, val value.Value) Content {
	return Content{kind: Insert, path: path.Clone(), value: val}
}

// NewReplace builds a Replace content: replacing old with new at path.
func NewReplace(path value.Path, old, new value.Value) Content {
	return Content{kind: Replace, path: path.Clone(), old: old, value: new}
}

// NewDelete builds a Delete content: removing old from path.
func NewDelete(path value.Path, old value.Value) Content {
	return Content{kind: Delete, path: path.Clone(), old: old}
}

// WithPath returns a copy of c addressed at path instead of its own path,
// keeping its kind and values. changetree uses this to re-address a
// content's remaining path when delegating a deeper edit to change.Apply
// against a value it already holds in isolation.
func WithPath(c Content, path value.Path) Content {
	c.path = path.Clone()
	return c
}

// Kind reports which variant c holds.
func (c Content) Kind() Kind { return c.kind }

// Path returns the addressed location.
func (c Content) Path() value.Path { return c.path.Clone() }

// InsertValue returns the value an Insert content adds.
func (c Content) InsertValue() (value.Value, bool) {
	if c.kind != Insert {
		return value.Value{}, false
	}
	return c.value, true
}

// ReplaceOld returns the value a Replace content expects to find.
func (c Content) ReplaceOld() (value.Value, bool) {
	if c.kind != Replace {
		return value.Value{}, false
	}
	return c.old, true
}

// ReplaceNew returns the value a Replace content installs.
func (c Content) ReplaceNew() (value.Value, bool) {
	if c.kind != Replace {
		return value.Value{}, false
	}
	return c.value, true
}

// DeleteOld returns the value a Delete content expects to find and remove.
func (c Content) DeleteOld() (value.Value, bool) {
	if c.kind != Delete {
		return value.Value{}, false
	}
	return c.old, true
}

func (c Content) String() string {
	switch c.kind {
	case Insert:
		return fmt.Sprintf("insert %s = %v", c.path, c.value)
	case Replace:
		return fmt.Sprintf("replace %s: %v -> %v", c.path, c.old, c.value)
	case Delete:
		return fmt.Sprintf("delete %s (%v)", c.path, c.old)
	default:
		return "invalid content"
	}
}
