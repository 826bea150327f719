package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDelta(t *testing.T) {
	d := ComputeDelta("hello world", "hello brave world")
	require.NotNil(t, d)
	assert.Equal(t, 6, d.Start)
	assert.Equal(t, 6, d.End)
	assert.Equal(t, "brave ", d.Text)

	d = ComputeDelta("hello brave world", "hello world")
	require.NotNil(t, d)
	assert.Equal(t, 6, d.Start)
	assert.Equal(t, 12, d.End)
	assert.Equal(t, "", d.Text)

	assert.Nil(t, ComputeDelta("same", "same"))
	assert.Nil(t, ComputeDelta("", ""))

	d = ComputeDelta("", "abc")
	require.NotNil(t, d)
	assert.Equal(t, Delta{Start: 0, End: 0, Text: "abc"}, *d)

	d = ComputeDelta("abc", "")
	require.NotNil(t, d)
	assert.Equal(t, Delta{Start: 0, End: 3, Text: ""}, *d)
}

func TestComputeDeltaRoundTrip(t *testing.T) {
	cases := [][2]string{
		{"hello world", "hello brave world"},
		{"aaaa", "aa"},
		{"aa", "aaaa"},
		{"abcdef", "abXYef"},
		{"", "fresh content"},
		{"stale content", ""},
		{"xyx", "xx"},
		{"line1\nline2\n", "line1\nline1.5\nline2\n"},
	}
	for _, c := range cases {
		prev, next := c[0], c[1]
		d := ComputeDelta(prev, next)
		require.NotNil(t, d, "prev=%q next=%q", prev, next)
		got, err := ApplyDelta(prev, *d)
		require.NoError(t, err)
		assert.Equal(t, next, got, "prev=%q next=%q delta=%+v", prev, next, *d)
	}
}

func TestApplyDeltaValidation(t *testing.T) {
	_, err := ApplyDelta("short", Delta{Start: 2, End: 99, Text: "x"})
	require.Error(t, err)
	assert.IsType(t, &ValidationError{}, err)

	_, err = ApplyDelta("short", Delta{Start: -1, End: 2, Text: "x"})
	require.Error(t, err)

	_, err = ApplyDelta("short", Delta{Start: 3, End: 1, Text: "x"})
	require.Error(t, err)

	// structural check only: the out-of-range end is fine here
	assert.NoError(t, Delta{Start: 2, End: 99, Text: "x"}.Validate(-1))
	assert.Error(t, Delta{Start: 5, End: 2}.Validate(-1))

	got, err := ApplyDelta("short", Delta{Start: 5, End: 5, Text: "er"})
	require.NoError(t, err)
	assert.Equal(t, "shorter", got)
}
