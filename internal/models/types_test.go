package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListNilStoresEmptyArray(t *testing.T) {
	var l StringList
	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestStringListKeepsHTMLCharacters(t *testing.T) {
	v, err := StringList{"c&c", "<b>"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["c&c","<b>"]`, v)

	var l StringList
	require.NoError(t, l.Scan(v))
	assert.Equal(t, StringList{"c&c", "<b>"}, l)
}

func TestStringListScan(t *testing.T) {
	var l StringList
	require.NoError(t, l.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringList{"a", "b"}, l)

	require.NoError(t, l.Scan(nil))
	assert.Empty(t, l)

	assert.Error(t, l.Scan(42))
	assert.Error(t, l.Scan("{not json"))
}

func TestStringListWithout(t *testing.T) {
	l := StringList{"a", "b", "c"}
	assert.Equal(t, StringList{"a", "c"}, l.Without("b"))
	assert.Equal(t, StringList{"a", "b", "c"}, l, "original list is untouched")
	assert.True(t, l.Contains("c"))
	assert.False(t, l.Without("c").Contains("c"))
}
