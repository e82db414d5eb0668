package value

import "fmt"

// PathElement is a single descent step: either a map field name or a
// zero-based array index.
type PathElement struct {
	isIndex bool
	field   string
	index   uint32
}

// Field builds a map-field PathElement.
func Field(name string) PathElement {
	return PathElement{field: name}
}

// Index builds an array-index PathElement.
func Index(i uint32) PathElement {
	return PathElement{isIndex: true, index: i}
}

// IsField reports whether this step is a map field name.
func (p PathElement) IsField() bool { return !p.isIndex }

// IsIndex reports whether this step is an array index.
func (p PathElement) IsIndex() bool { return p.isIndex }

// FieldName returns the field name, if this is a Field step.
func (p PathElement) FieldName() (string, bool) {
	if p.isIndex {
		return "", false
	}
	return p.field, true
}

// IndexValue returns the index, if this is an Index step.
func (p PathElement) IndexValue() (uint32, bool) {
	if !p.isIndex {
		return 0, false
	}
	return p.index, true
}

// Equal reports whether p and other address the same step.
func (p PathElement) Equal(other PathElement) bool {
	if p.isIndex != other.isIndex {
		return false
	}
	if p.isIndex {
		return p.index == other.index
	}
	return p.field == other.field
}

func (p PathElement) String() string {
	if p.isIndex {
		return fmt.Sprintf("[%d]", p.index)
	}
	return p.field
}

// Path is an ordered sequence of PathElements describing descent from the
// document root.
type Path []PathElement

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	cp := make(Path, len(p))
	copy(cp, p)
	return cp
}

func (p Path) String() string {
	s := "$"
	for _, e := range p {
		if e.IsIndex() {
			s += e.String()
		} else {
			s += "." + e.String()
		}
	}
	return s
}

// Get performs read-only path navigation. It fails if any intermediate
// segment is absent or mismatches the element kind (a Field step requires
// a Map, an Index step requires an Array with index < len).
func (v Value) Get(path Path) (Value, bool) {
	if len(path) == 0 {
		return v, true
	}
	step, rest := path[0], path[1:]
	if name, ok := step.FieldName(); ok {
		if v.kind != Map {
			return Value{}, false
		}
		child, ok := v.mp.fields[name]
		if !ok {
			return Value{}, false
		}
		return child.Get(rest)
	}
	idx, _ := step.IndexValue()
	if v.kind != Array {
		return Value{}, false
	}
	if int(idx) >= len(v.arr.items) {
		return Value{}, false
	}
	return v.arr.items[idx].Get(rest)
}

// unshareMap clones the map container so it may be mutated without
// affecting any Value that still shares the old one. Every entry gets a
// freshly allocated *Value wrapper (a cheap, shallow copy); only the one
// on the traversed path is mutated further.
func (v *Value) unshareMap() {
	old := v.mp
	fresh := make(map[string]*Value, len(old.fields))
	for k, p := range old.fields {
		c := *p
		fresh[k] = &c
	}
	v.mp = &mapData{fields: fresh}
}

// unshareArray clones the array container so it may be mutated without
// affecting any Value that still shares the old one.
func (v *Value) unshareArray() {
	old := v.arr
	fresh := make([]Value, len(old.items))
	copy(fresh, old.items)
	v.arr = &arrayData{items: fresh}
}

// GetMut performs copy-on-write path navigation, unsharing every container
// traversed so the returned reference can be mutated exclusively. It fails
// under the same conditions as Get.
func (v *Value) GetMut(path Path) (*Value, bool) {
	if len(path) == 0 {
		return v, true
	}
	step, rest := path[0], path[1:]
	if name, ok := step.FieldName(); ok {
		if v.kind != Map {
			return nil, false
		}
		if _, ok := v.mp.fields[name]; !ok {
			return nil, false
		}
		v.unshareMap()
		return v.mp.fields[name].GetMut(rest)
	}
	idx, _ := step.IndexValue()
	if v.kind != Array {
		return nil, false
	}
	if int(idx) >= len(v.arr.items) {
		return nil, false
	}
	v.unshareArray()
	return (&v.arr.items[idx]).GetMut(rest)
}

// InsertField exposes the raw Map container to mutation primitives that
// need access beyond Get/GetMut's whole-subtree contract: it adds name→val
// if v is a Map and name is absent, unsharing first. It reports whether
// the insertion happened.
func (v *Value) InsertField(name string, val Value) bool {
	if v.kind != Map {
		return false
	}
	if _, exists := v.mp.fields[name]; exists {
		return false
	}
	v.unshareMap()
	v.mp.fields[name] = &val
	return true
}

// DeleteField removes name from v if v is a Map, name is present, and its
// current value equals old, unsharing first. It reports whether the
// deletion happened.
func (v *Value) DeleteField(name string, old Value) bool {
	if v.kind != Map {
		return false
	}
	cur, ok := v.mp.fields[name]
	if !ok || !cur.Equal(old) {
		return false
	}
	v.unshareMap()
	delete(v.mp.fields, name)
	return true
}

// InsertAt inserts val at index, shifting later elements right, if v is an
// Array and index <= len, unsharing first.
func (v *Value) InsertAt(index int, val Value) bool {
	if v.kind != Array {
		return false
	}
	if index < 0 || index > len(v.arr.items) {
		return false
	}
	v.unshareArray()
	items := v.arr.items
	items = append(items, Value{})
	copy(items[index+1:], items[index:])
	items[index] = val
	v.arr.items = items
	return true
}

// DeleteAt removes the element at index and shifts later elements left, if
// v is an Array, index < len, and the current element equals old,
// unsharing first.
func (v *Value) DeleteAt(index int, old Value) bool {
	if v.kind != Array {
		return false
	}
	if index < 0 || index >= len(v.arr.items) {
		return false
	}
	if !v.arr.items[index].Equal(old) {
		return false
	}
	v.unshareArray()
	items := v.arr.items
	copy(items[index:], items[index+1:])
	v.arr.items = items[:len(items)-1]
	return true
}
