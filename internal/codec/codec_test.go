package codec_test

import (
	"testing"

	"github.com/AndrewDonelson/ormpack/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int    `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

func TestJSONCodec(t *testing.T) {
	c := codec.JSON{}
	orig := item{ID: 1, Name: "test"}
	b, err := c.Marshal(orig)
	require.NoError(t, err)

	var got item
	require.NoError(t, c.Unmarshal(b, &got))
	assert.Equal(t, orig, got)
	assert.Equal(t, "json", c.Name())
}

func TestMsgPackCodec(t *testing.T) {
	c := codec.MsgPack{}
	orig := item{ID: 42, Name: "pack"}
	b, err := c.Marshal(orig)
	require.NoError(t, err)

	var got item
	require.NoError(t, c.Unmarshal(b, &got))
	assert.Equal(t, orig, got)
	assert.Equal(t, "msgpack", c.Name())
}

func TestPackUnpack_Tree(t *testing.T) {
	tree := []any{"MODEL", int64(7), []any{[]byte{1, 2}, "x", nil, true, 1.5}}
	b, err := codec.Pack(tree)
	require.NoError(t, err)

	got, err := codec.Unpack(b)
	require.NoError(t, err)
	list, ok := got.([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
	assert.Equal(t, "MODEL", list[0])
	inner := list[2].([]any)
	assert.Equal(t, []byte{1, 2}, inner[0])
	assert.Equal(t, "x", inner[1])
	assert.Nil(t, inner[2])
	assert.Equal(t, true, inner[3])
	assert.Equal(t, 1.5, inner[4])
}

func TestUnpack_NonStringKeys(t *testing.T) {
	b, err := codec.Pack(map[any]any{int64(1): "one", "two": int64(2)})
	require.NoError(t, err)

	got, err := codec.Unpack(b)
	require.NoError(t, err)
	m, ok := got.(map[any]any)
	require.True(t, ok)
	assert.Len(t, m, 2)
	var values []any
	for _, v := range m {
		values = append(values, v)
	}
	assert.Contains(t, values, "one")
}

func TestUnpack_Garbage(t *testing.T) {
	_, err := codec.Unpack([]byte{0xc1})
	assert.Error(t, err)
}
