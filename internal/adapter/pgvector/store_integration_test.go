package pgvector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaignlab/internal/adapter/pgvector"
	"campaignlab/internal/retrieval"
	"campaignlab/internal/testutils"
)

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	s := testutils.NewIntegrationSuite(t)
	s.SetupPostgres()
	defer s.Teardown()

	const dim = 384
	store := pgvector.NewStore(s.DB, dim, 15*time.Second)
	ctx := context.Background()

	vec := func(hot int) []float32 {
		v := make([]float32, dim)
		v[hot] = 1
		return v
	}

	entries := []retrieval.Entry{
		{DocumentID: "11111111-1111-1111-1111-111111111111", BrandID: "acme", Ordinal: 0, Text: "witty tone", Start: 0, End: 10, Vector: vec(0)},
		{DocumentID: "11111111-1111-1111-1111-111111111111", BrandID: "acme", Ordinal: 1, Text: "short copy", Start: 5, End: 15, Vector: vec(1)},
		{DocumentID: "22222222-2222-2222-2222-222222222222", BrandID: "globex", Ordinal: 0, Text: "enterprise buyers", Start: 0, End: 17, Vector: vec(0)},
	}
	require.NoError(t, store.Upsert(ctx, entries))

	t.Run("Query Orders By Similarity", func(t *testing.T) {
		results, err := store.Query(ctx, vec(0), 10, "")
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.InDelta(t, 1.0, results[0].Score, 1e-4)
		assert.Equal(t, 0, results[0].Ordinal)
	})

	t.Run("Brand Scope", func(t *testing.T) {
		results, err := store.Query(ctx, vec(0), 10, "acme")
		require.NoError(t, err)
		for _, r := range results {
			assert.NotEqual(t, "22222222-2222-2222-2222-222222222222", r.DocumentID)
		}
	})

	t.Run("Upsert Replaces Chunks", func(t *testing.T) {
		require.NoError(t, store.Upsert(ctx, []retrieval.Entry{
			{DocumentID: "11111111-1111-1111-1111-111111111111", BrandID: "acme", Ordinal: 0, Text: "rewritten", Start: 0, End: 9, Vector: vec(2)},
		}))

		n, err := store.CountChunks(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("Delete Removes Document", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "22222222-2222-2222-2222-222222222222"))
		n, err := store.CountChunks(ctx, "globex")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
