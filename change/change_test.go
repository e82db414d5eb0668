package change_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/antgroup/valuestore/change"
	"github.com/antgroup/valuestore/plumbing"
	"github.com/antgroup/valuestore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChangeHashIsDeterministic(t *testing.T) {
	parents := plumbing.OneParent(plumbing.SumBytes([]byte("root")))
	content := []change.Content{
		change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1)),
	}
	c1, err := change.New(parents, content)
	require.NoError(t, err)
	c2, err := change.New(parents, content)
	require.NoError(t, err)
	assert.Equal(t, c1.Hash, c2.Hash)
}

func TestChangeRoundTrip(t *testing.T) {
	h1 := plumbing.SumBytes([]byte("p1"))
	h2 := plumbing.SumBytes([]byte("p2"))
	parents, err := plumbing.TwoParents(h1, h2)
	require.NoError(t, err)

	content := []change.Content{
		change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1)),
		change.NewReplace(value.Path{value.Field("b")}, value.NewString("old"), value.NewString("new")),
		change.NewDelete(value.Path{value.Index(0)}, value.NewBool(true)),
	}
	c, err := change.New(parents, content)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	decoded, err := change.Decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, c.Hash, decoded.Hash)
	assert.Equal(t, c.Parents, decoded.Parents)
	require.Len(t, decoded.Content, 3)
	assert.Equal(t, change.Insert, decoded.Content[0].Kind())
	assert.Equal(t, change.Replace, decoded.Content[1].Kind())
	assert.Equal(t, change.Delete, decoded.Content[2].Kind())
}

func TestEncodeContentRoundTrip(t *testing.T) {
	content := []change.Content{
		change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1)),
		change.NewDelete(value.Path{value.Index(0)}, value.NewBool(true)),
	}
	var buf bytes.Buffer
	require.NoError(t, change.EncodeContent(&buf, content))

	decoded, err := change.DecodeContentList(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, change.Insert, decoded[0].Kind())
	assert.Equal(t, change.Delete, decoded[1].Kind())
}

func TestChangeDecodeRejectsTamperedHash(t *testing.T) {
	parents := plumbing.OneParent(plumbing.SumBytes([]byte("root")))
	content := []change.Content{change.NewInsert(value.Path{value.Field("a")}, value.NewInteger(1))}
	c, err := change.New(parents, content)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))
	raw := buf.Bytes()
	raw[0] ^= 0xff

	_, err = change.Decode(bufio.NewReader(bytes.NewReader(raw)))
	require.Error(t, err)
}
