package scheduler

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docrender/internal/analyzer"
	"github.com/dgallion1/docrender/internal/chunker"
)

func TestStage_PutTakeClose(t *testing.T) {
	st, err := NewStage(t.TempDir())
	require.NoError(t, err)

	chunks := []chunker.Chunk{
		{Index: 0, Total: 2, IsFirst: true, Body: "<p>a</p>", Markup: "<html><body><p>a</p></body></html>", Strategy: chunker.StrategyTree, Priority: analyzer.Critical},
		{Index: 1, Total: 2, IsLast: true, Body: "<p>ü</p>", Markup: "<html><body><p>ü</p></body></html>", Strategy: chunker.StrategyTree, Priority: analyzer.Low},
	}
	require.NoError(t, st.PutFrom(len(chunks), func(i int) chunker.Chunk { return chunks[i] }))
	assert.Equal(t, 2, st.Len())

	entries, err := os.ReadDir(st.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	got, err := st.Take(1)
	require.NoError(t, err)
	assert.Equal(t, chunks[1], got)

	_, err = st.Take(1)
	assert.Error(t, err, "a chunk is read back at most once")

	entries, err = os.ReadDir(st.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, st.Close())
	_, err = os.Stat(st.Dir())
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, st.Put(chunks[0]), ErrStageClosed)
	_, err = st.Take(0)
	assert.ErrorIs(t, err, ErrStageClosed)
	assert.NoError(t, st.Close())
}

func TestStage_UniqueDirectories(t *testing.T) {
	base := t.TempDir()
	a, err := NewStage(base)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStage(base)
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.Dir(), b.Dir())
}

func TestNewStage_BadBase(t *testing.T) {
	_, err := NewStage("/nonexistent/docrender/base")
	assert.Error(t, err)
}

func TestStage_PutFromWritesBeforeBuildingNext(t *testing.T) {
	st, err := NewStage(t.TempDir())
	require.NoError(t, err)
	defer st.Close()

	var built []int
	err = st.PutFrom(4, func(i int) chunker.Chunk {
		// Every earlier chunk is already on disk when chunk i is built.
		entries, err := os.ReadDir(st.Dir())
		require.NoError(t, err)
		assert.Len(t, entries, i)
		assert.Equal(t, i, st.Len())
		built = append(built, i)
		return chunker.Chunk{Index: i, Total: 4, Markup: strings.Repeat("m", 100)}
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, built)
	assert.Equal(t, 4, st.Len())
}

func TestStage_PutFromStopsAtFirstFailure(t *testing.T) {
	st, err := NewStage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(st.Dir()))
	defer st.Close()

	calls := 0
	err = st.PutFrom(3, func(i int) chunker.Chunk {
		calls++
		return chunker.Chunk{Index: i, Total: 3}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
