package index_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recall/internal/index"
)

func openEphemeral(t *testing.T) *index.Index {
	t.Helper()
	ix, err := index.Open("test", index.ModeEphemeral, "")
	require.NoError(t, err)
	return ix
}

func TestSearch_OrderedByDescendingSimilarity(t *testing.T) {
	ctx := context.Background()
	ix := openEphemeral(t)

	entries := []index.Entry{
		{Vector: []float32{0, 1}, Payload: "orthogonal"},
		{Vector: []float32{1, 0}, Payload: "exact"},
		{Vector: []float32{1, 1}, Payload: "diagonal"},
	}
	require.NoError(t, ix.Add(ctx, entries))

	results, err := ix.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].Payload)
	assert.Equal(t, "diagonal", results[1].Payload)
	assert.Equal(t, "orthogonal", results[2].Payload)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestSearch_KLargerThanCollection(t *testing.T) {
	ctx := context.Background()
	ix := openEphemeral(t)
	require.NoError(t, ix.Add(ctx, []index.Entry{
		{Vector: []float32{1, 0}, Payload: "a"},
		{Vector: []float32{0, 1}, Payload: "b"},
	}))

	results, err := ix.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_TieBrokenByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	ix := openEphemeral(t)
	require.NoError(t, ix.Add(ctx, []index.Entry{
		{Vector: []float32{1, 0}, Payload: "first"},
		{Vector: []float32{2, 0}, Payload: "second"}, // same direction, same cosine
	}))

	results, err := ix.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Payload)
	assert.Equal(t, "second", results[1].Payload)
}

func TestSearch_NotReady(t *testing.T) {
	ix := openEphemeral(t)
	assert.False(t, ix.Ready())

	_, err := ix.Search(context.Background(), []float32{1, 0}, 5)
	assert.ErrorIs(t, err, index.ErrNotReady)
}

func TestAdd_DimensionMismatchRejectsBatch(t *testing.T) {
	ctx := context.Background()
	ix := openEphemeral(t)
	require.NoError(t, ix.Add(ctx, []index.Entry{{Vector: []float32{1, 0}, Payload: "a"}}))

	err := ix.Add(ctx, []index.Entry{{Vector: []float32{1, 0, 0}, Payload: "b"}})
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
	assert.Equal(t, 1, ix.Len())

	err = ix.Add(ctx, []index.Entry{
		{Vector: []float32{0, 1}, Payload: "ok"},
		{Vector: []float32{0, 1, 2}, Payload: "bad"},
	})
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
	assert.Equal(t, 1, ix.Len())
}

func TestSearch_QueryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	ix := openEphemeral(t)
	require.NoError(t, ix.Add(ctx, []index.Entry{{Vector: []float32{1, 0}, Payload: "a"}}))

	_, err := ix.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, index.ErrDimensionMismatch)
}

func TestDurable_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ix, err := index.Open("corpus", index.ModeDurable, root)
	require.NoError(t, err)
	require.NoError(t, ix.Add(ctx, []index.Entry{
		{Vector: []float32{1, 0}, Payload: "alpha", Meta: map[string]string{"source": "a.pdf", "page": "1"}},
		{Vector: []float32{0, 1}, Payload: "beta", Meta: map[string]string{"source": "b.pdf", "page": "2"}},
	}))
	require.NoError(t, ix.Close())

	reopened, err := index.Open("corpus", index.ModeDurable, root)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, reopened.Ready())

	results, err := reopened.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alpha", results[0].Payload)
	assert.Equal(t, "a.pdf", results[0].Meta["source"])
}

func TestDurable_LoadIdempotent(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ix, err := index.Open("corpus", index.ModeDurable, root)
	require.NoError(t, err)
	defer ix.Close()
	require.NoError(t, ix.Add(ctx, []index.Entry{
		{Vector: []float32{1, 2}, Payload: "a"},
		{Vector: []float32{3, 4}, Payload: "b"},
	}))

	n1, err := ix.Load(ctx)
	require.NoError(t, err)
	first, err := ix.Search(ctx, []float32{1, 2}, 2)
	require.NoError(t, err)

	n2, err := ix.Load(ctx)
	require.NoError(t, err)
	second, err := ix.Search(ctx, []float32{1, 2}, 2)
	require.NoError(t, err)

	assert.Equal(t, n1, n2)
	assert.Equal(t, first, second)
}

func TestDrop_ClearsEverything(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	ix, err := index.Open("corpus", index.ModeDurable, root)
	require.NoError(t, err)
	defer ix.Close()
	require.NoError(t, ix.Add(ctx, []index.Entry{{Vector: []float32{1, 0}, Payload: "a"}}))

	require.NoError(t, ix.Drop(ctx))
	assert.False(t, ix.Ready())
	assert.Equal(t, 0, ix.Len())

	n, err := ix.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// A dropped collection accepts a different dimension.
	require.NoError(t, ix.Add(ctx, []index.Entry{{Vector: []float32{1, 0, 0}, Payload: "b"}}))
}

func TestResolveMode(t *testing.T) {
	assert.Equal(t, index.ModeEphemeral, index.ResolveMode("", false))
	assert.Equal(t, index.ModeEphemeral, index.ResolveMode(t.TempDir(), true))
	assert.Equal(t, index.ModeDurable, index.ResolveMode(t.TempDir(), false))
}
