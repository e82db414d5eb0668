package changetree_test

import (
	"testing"

	"github.com/antgroup/valuestore/change"
	"github.com/antgroup/valuestore/changetree"
	"github.com/antgroup/valuestore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayInsertShiftsLaterSiblings(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{
		"xs": value.NewArray([]value.Value{
			value.NewString("a"), value.NewString("b"), value.NewString("c"),
		}),
	})

	contents := []change.Content{
		change.NewInsert(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("x")),
		change.NewReplace(value.Path{value.Field("xs"), value.Index(3)}, value.NewString("c"), value.NewString("C")),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)

	result, err := tree.Apply(ancestor)
	require.NoError(t, err)

	xs, ok := result.Get(value.Path{value.Field("xs")})
	require.True(t, ok)
	items, _ := xs.ArrayItems()
	require.Len(t, items, 4)
	got := make([]string, len(items))
	for i, it := range items {
		s, _ := it.AsString()
		got[i] = s
	}
	assert.Equal(t, []string{"a", "x", "b", "C"}, got)
}

func TestRemoveThenInsertPromotesToReplace(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	contents := []change.Content{
		change.NewDelete(value.Path{value.Field("a")}, value.NewInteger(1)),
		change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(2)),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)

	result, err := tree.Apply(ancestor)
	require.NoError(t, err)
	got, ok := result.Get(value.Path{value.Field("a")})
	require.True(t, ok)
	n, _ := got.AsInteger()
	assert.Equal(t, int64(2), n)
}

func TestRemoveThenInsertRetainsBothChangesOnTheLeaf(t *testing.T) {
	del := change.NewDelete(value.Path{value.Field("k")}, value.NewInteger(1))
	ins := change.NewInsert(value.Path{value.Field("k")}, value.NewInteger(2))
	tree, err := changetree.Construct([]change.Content{del, ins})
	require.NoError(t, err)

	leaf := tree.Root().MapChildren()["k"]
	require.NotNil(t, leaf)
	assert.Equal(t, changetree.Replace, leaf.Kind())
	changes := leaf.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, change.Delete, changes[0].Kind())
	assert.Equal(t, change.Insert, changes[1].Kind())
}

func TestDisjointPathsAutoMergeRegardlessOfOrder(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{
		"a": value.NewInteger(1),
		"b": value.NewInteger(2),
	})
	order1 := []change.Content{
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(1), value.NewInteger(10)),
		change.NewReplace(value.Path{value.Field("b")}, value.NewInteger(2), value.NewInteger(20)),
	}
	order2 := []change.Content{order1[1], order1[0]}

	t1, err := changetree.Construct(order1)
	require.NoError(t, err)
	t2, err := changetree.Construct(order2)
	require.NoError(t, err)

	r1, err := t1.Apply(ancestor)
	require.NoError(t, err)
	r2, err := t2.Apply(ancestor)
	require.NoError(t, err)
	assert.True(t, r1.Equal(r2))
}

func TestAddThenDeleteClearsTheNode(t *testing.T) {
	ancestor := value.Default()
	contents := []change.Content{
		change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1)),
		change.NewDelete(value.Path{value.Field("a")}, value.NewInteger(1)),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)

	result, err := tree.Apply(ancestor)
	require.NoError(t, err)
	assert.True(t, result.Equal(ancestor))
}

func TestArrayRemoveThenInsertPromotesToReplace(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{
		"xs": value.NewArray([]value.Value{value.NewString("a"), value.NewString("b")}),
	})
	contents := []change.Content{
		change.NewDelete(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("b")),
		change.NewInsert(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("B")),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)

	xsNode := tree.Root().MapChildren()["xs"]
	require.NotNil(t, xsNode)
	leafRaw, found := xsNode.ArrayData().Get(1)
	require.True(t, found)
	leaf := leafRaw.(*changetree.Node)
	assert.Equal(t, changetree.Replace, leaf.Kind())

	result, err := tree.Apply(ancestor)
	require.NoError(t, err)
	got, ok := result.Get(value.Path{value.Field("xs"), value.Index(1)})
	require.True(t, ok)
	s, _ := got.AsString()
	assert.Equal(t, "B", s)
}

func TestArrayInsertThenDeleteUnshiftsLaterSiblings(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{
		"xs": value.NewArray([]value.Value{value.NewString("a"), value.NewString("b")}),
	})
	// Insert x at 1, delete it again, then edit b at its restored index.
	contents := []change.Content{
		change.NewInsert(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("x")),
		change.NewDelete(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("x")),
		change.NewReplace(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("b"), value.NewString("B")),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)

	result, err := tree.Apply(ancestor)
	require.NoError(t, err)
	xs, ok := result.Get(value.Path{value.Field("xs")})
	require.True(t, ok)
	items, _ := xs.ArrayItems()
	require.Len(t, items, 2)
	s0, _ := items[0].AsString()
	s1, _ := items[1].AsString()
	assert.Equal(t, "a", s0)
	assert.Equal(t, "B", s1)
}

func TestMapAddThenDeleteRemovesTheChildEntry(t *testing.T) {
	contents := []change.Content{
		change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1)),
		change.NewDelete(value.Path{value.Field("a")}, value.NewInteger(1)),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)
	if root := tree.Root(); root != nil {
		_, present := root.MapChildren()["a"]
		assert.False(t, present)
	}
}

func TestDeleteIntoRemovedSubtreeIsInvalid(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{
		"a": value.NewMap(map[string]value.Value{"b": value.NewInteger(1)}),
	})
	whole, _ := ancestor.Get(value.Path{value.Field("a")})
	contents := []change.Content{
		change.NewDelete(value.Path{value.Field("a")}, whole),
		change.NewDelete(value.Path{value.Field("a"), value.Field("b")}, value.NewInteger(1)),
	}
	_, err := changetree.Construct(contents)
	require.Error(t, err)
	assert.True(t, changetree.IsInvalidTreeChange(err))
}

func TestReplaceChainsThroughIntermediateValue(t *testing.T) {
	ancestor := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	contents := []change.Content{
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(1), value.NewInteger(2)),
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(2), value.NewInteger(3)),
	}
	tree, err := changetree.Construct(contents)
	require.NoError(t, err)
	result, err := tree.Apply(ancestor)
	require.NoError(t, err)
	got, _ := result.Get(value.Path{value.Field("a")})
	n, _ := got.AsInteger()
	assert.Equal(t, int64(3), n)
}
