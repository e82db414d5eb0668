package value_test

import (
	"math"
	"testing"

	"github.com/antgroup/valuestore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqualityNaNAndZero(t *testing.T) {
	nan1 := value.NewFloat(math.NaN())
	nan2 := value.NewFloat(math.NaN())
	assert.True(t, nan1.Equal(nan2))

	posZero := value.NewFloat(0)
	negZero := value.NewFloat(math.Copysign(0, -1))
	assert.True(t, posZero.Equal(negZero))
}

func TestDefaultIsEmptyMap(t *testing.T) {
	v := value.Default()
	assert.Equal(t, value.Map, v.Kind())
	assert.Equal(t, 0, v.Len())
}

func TestGetNavigatesFieldsAndIndices(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{
		"xs": value.NewArray([]value.Value{value.NewString("a"), value.NewString("b")}),
	})
	got, ok := doc.Get(value.Path{value.Field("xs"), value.Index(1)})
	require.True(t, ok)
	s, ok := got.AsString()
	require.True(t, ok)
	assert.Equal(t, "b", s)
}

func TestGetFailsOnKindMismatch(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{"a": value.NewInteger(1)})
	_, ok := doc.Get(value.Path{value.Index(0)})
	assert.False(t, ok)

	_, ok = doc.Get(value.Path{value.Field("missing")})
	assert.False(t, ok)
}

func TestGetMutUnsharesWithoutMutatingOriginal(t *testing.T) {
	doc := value.NewMap(map[string]value.Value{
		"a": value.NewInteger(1),
	})
	clone := doc.Clone()

	ref, ok := doc.GetMut(value.Path{value.Field("a")})
	require.True(t, ok)
	*ref = value.NewInteger(99)

	got, _ := doc.Get(value.Path{value.Field("a")})
	n, _ := got.AsInteger()
	assert.Equal(t, int64(99), n)

	untouched, _ := clone.Get(value.Path{value.Field("a")})
	m, _ := untouched.AsInteger()
	assert.Equal(t, int64(1), m)
}

func TestBlobMimeTooLongRejected(t *testing.T) {
	longMime := make([]byte, 256)
	for i := range longMime {
		longMime[i] = 'a'
	}
	_, err := value.NewBlob(string(longMime), []byte("data"))
	require.Error(t, err)
}

func TestArrayEqualityIgnoresSharing(t *testing.T) {
	a := value.NewArray([]value.Value{value.NewInteger(1), value.NewInteger(2)})
	b := a.Clone()
	assert.True(t, a.Equal(b))
}
