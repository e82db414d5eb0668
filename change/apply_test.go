package change_test

import (
	"testing"

	"github.com/antgroup/valuestore/change"
	"github.com/antgroup/valuestore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyInsertField(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{})
	c := change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1))
	require.NoError(t, change.Apply(&doc, c))

	got, ok := doc.Get(value.Path{value.Field("a")})
	require.True(t, ok)
	n, _ := got.AsInteger()
	assert.Equal(t, int64(1), n)
}

func TestApplyInsertRejectsEmptyPath(t *testing.T) {
	doc := value.Default()
	c := change.NewInsert(value.Path{}, value.NewInteger(1))
	err := change.Apply(&doc, c)
	require.Error(t, err)
	assert.True(t, change.IsInvalidChange(err))
}

func TestApplyInsertRejectsExistingField(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	c := change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(2))
	err := change.Apply(&doc, c)
	require.Error(t, err)
	assert.True(t, change.IsInvalidChange(err))
}

func TestApplyReplaceAtRoot(t *testing.T) {
	doc := value.NewInteger(1)
	c := change.NewReplace(value.Path{}, value.NewInteger(1), value.NewInteger(2))
	require.NoError(t, change.Apply(&doc, c))
	n, _ := doc.AsInteger()
	assert.Equal(t, int64(2), n)
}

func TestApplyReplaceFailsOnMismatchedOld(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	c := change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(99), value.NewInteger(2))
	err := change.Apply(&doc, c)
	require.Error(t, err)
	assert.True(t, change.IsInvalidChange(err))
}

func TestApplyDeleteFromArray(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{
		"xs": value.NewArray([]value.Value{value.NewInteger(1), value.NewInteger(2)}),
	})
	c := change.NewDelete(value.Path{value.Field("xs"), value.Index(0)}, value.NewInteger(1))
	require.NoError(t, change.Apply(&doc, c))

	xs, _ := doc.Get(value.Path{value.Field("xs")})
	items, _ := xs.ArrayItems()
	require.Len(t, items, 1)
	n, _ := items[0].AsInteger()
	assert.Equal(t, int64(2), n)
}

func TestApplyDeleteRejectsEmptyPath(t *testing.T) {
	doc := value.NewInteger(1)
	c := change.NewDelete(value.Path{}, value.NewInteger(1))
	err := change.Apply(&doc, c)
	require.Error(t, err)
	assert.True(t, change.IsInvalidChange(err))
}

func TestApplyInsertIntoArrayShiftsSiblings(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{
		"xs": value.NewArray([]value.Value{value.NewString("a"), value.NewString("c")}),
	})
	c := change.NewInsert(value.Path{value.Field("xs"), value.Index(1)}, value.NewString("b"))
	require.NoError(t, change.Apply(&doc, c))

	xs, _ := doc.Get(value.Path{value.Field("xs")})
	items, _ := xs.ArrayItems()
	require.Len(t, items, 3)
	got := make([]string, len(items))
	for i, it := range items {
		got[i], _ = it.AsString()
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestApplyInverseRestoresOriginal(t *testing.T) {
	original := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	doc := original.Clone()

	forward := []change.Content{
		change.NewInsert(value.Path{value.Field("b")}, value.NewString("x")),
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(1), value.NewInteger(2)),
	}
	inverse := []change.Content{
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(2), value.NewInteger(1)),
		change.NewDelete(value.Path{value.Field("b")}, value.NewString("x")),
	}

	_, err := change.ApplyIter(&doc, forward)
	require.NoError(t, err)
	require.False(t, doc.Equal(original))

	_, err = change.ApplyIter(&doc, inverse)
	require.NoError(t, err)
	assert.True(t, doc.Equal(original))
}

func TestApplyIterStopsAtFirstFailure(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	contents := []change.Content{
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(1), value.NewInteger(2)),
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(99), value.NewInteger(3)),
		change.NewReplace(value.Path{value.Field("a")}, value.NewInteger(3), value.NewInteger(4)),
	}
	failed, err := change.ApplyIter(&doc, contents)
	require.Error(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, change.Replace, failed.Kind())

	got, _ := doc.Get(value.Path{value.Field("a")})
	n, _ := got.AsInteger()
	assert.Equal(t, int64(2), n, "the first successful change stays applied even though a later one failed")
}
