package rewind

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput_RewindInMemory(t *testing.T) {
	in := NewInput(strings.NewReader("hello world"), DefaultPolicy())
	defer in.Close()

	first, err := in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello world", first)

	require.NoError(t, in.Rewind())
	second, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(second))
	assert.False(t, in.Spilled())
}

func TestInput_PartialReadThenRewind(t *testing.T) {
	in := NewInput(strings.NewReader("abcdef"), DefaultPolicy())
	defer in.Close()

	p := make([]byte, 3)
	n, err := in.Read(p)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(p[:n]))

	require.NoError(t, in.Rewind())
	all, err := in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "abcdef", all)
}

func TestInput_SpillsBeyondMaximum(t *testing.T) {
	body := strings.Repeat("x", 100)
	in := NewInput(strings.NewReader(body), Policy{InitialSize: 8, MaximumSize: 16})

	got, err := in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, body, got)
	assert.True(t, in.Spilled())

	require.NoError(t, in.Rewind())
	raw, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, body, string(raw))

	require.NoError(t, in.Close())
	_, err = in.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInput_NilSource(t *testing.T) {
	in := NewInput(nil, DefaultPolicy())
	got, err := in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{InitialSize: 8192, MaximumSize: 4096}.normalized()
	assert.Equal(t, 4096, p.InitialSize)
	assert.Equal(t, 4096, p.MaximumSize)

	p = Policy{}.normalized()
	assert.Equal(t, DefaultPolicy(), p)
}
