package change

import (
	"fmt"

	"github.com/antgroup/valuestore/value"
)

// InvalidChangeError is returned when a Content's precondition does not
// hold against the target document: the addressed location is missing, the
// wrong kind, or does not hold the expected old value. It carries the
// original Content (full path included) for error reporting.
type InvalidChangeError struct {
	Change Content
}

func (e *InvalidChangeError) Error() string {
	return fmt.Sprintf("invalid change: %s", e.Change)
}

// IsInvalidChange reports whether err is an *InvalidChangeError.
func IsInvalidChange(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*InvalidChangeError)
	return ok
}

func invalid(c Content) error { return &InvalidChangeError{Change: c} }

// ApplyInsert inserts c's value at its path. The path must be non-empty
// (there is no document to insert in place of the root) and must address a
// currently-absent map field or a within-bounds-plus-one array index.
func ApplyInsert(target *value.Value, c Content) error {
	val, _ := c.InsertValue()
	path := c.path
	if len(path) == 0 {
		return invalid(c)
	}
	parent, ok := target.GetMut(path[:len(path)-1])
	if !ok {
		return invalid(c)
	}
	last := path[len(path)-1]
	if name, isField := last.FieldName(); isField {
		if !parent.InsertField(name, val) {
			return invalid(c)
		}
		return nil
	}
	idx, _ := last.IndexValue()
	if !parent.InsertAt(int(idx), val) {
		return invalid(c)
	}
	return nil
}

// ApplyReplace replaces the value at c's path, which must currently equal
// c's old value, with c's new value. An empty path replaces the document
// root.
func ApplyReplace(target *value.Value, c Content) error {
	old, _ := c.ReplaceOld()
	newVal, _ := c.ReplaceNew()
	ref, ok := target.GetMut(c.path)
	if !ok {
		return invalid(c)
	}
	if !ref.Equal(old) {
		return invalid(c)
	}
	*ref = newVal
	return nil
}

// ApplyDelete removes the value at c's path, which must currently equal c's
// old value. The path must be non-empty (the document root cannot be
// deleted).
func ApplyDelete(target *value.Value, c Content) error {
	old, _ := c.DeleteOld()
	path := c.path
	if len(path) == 0 {
		return invalid(c)
	}
	parent, ok := target.GetMut(path[:len(path)-1])
	if !ok {
		return invalid(c)
	}
	last := path[len(path)-1]
	if name, isField := last.FieldName(); isField {
		if !parent.DeleteField(name, old) {
			return invalid(c)
		}
		return nil
	}
	idx, _ := last.IndexValue()
	if !parent.DeleteAt(int(idx), old) {
		return invalid(c)
	}
	return nil
}

// Apply dispatches c to the matching primitive.
func Apply(target *value.Value, c Content) error {
	switch c.Kind() {
	case Insert:
		return ApplyInsert(target, c)
	case Replace:
		return ApplyReplace(target, c)
	case Delete:
		return ApplyDelete(target, c)
	default:
		return invalid(c)
	}
}

// ApplyIter applies contents to target in order, stopping at the first
// failure without rolling back any change already applied. On failure it
// returns a pointer to the offending Content alongside the error.
func ApplyIter(target *value.Value, contents []Content) (*Content, error) {
	for i := range contents {
		if err := Apply(target, contents[i]); err != nil {
			return &contents[i], err
		}
	}
	return nil, nil
}
