package bolt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/custodia-labs/stackqa/internal/core/domain"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testSnapshot(n int) *domain.IndexSnapshot {
	s := &domain.IndexSnapshot{
		Dimensions: 2,
		Model:      "hashing-2",
		BuiltAt:    time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC),
	}
	for i := 0; i < n; i++ {
		s.Records = append(s.Records, domain.QARecord{
			ID:       string(rune('a' + i)),
			Question: "question",
			Answer:   "answer",
		})
		s.Vectors = append(s.Vectors, []float32{float32(i), 0.25})
	}
	return s
}

func TestIndexStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	idx := setupStore(t).IndexStore("csharp")

	require.NoError(t, idx.Save(ctx, testSnapshot(3)))

	loaded, err := idx.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSnapshot(3), loaded)
}

func TestIndexStore_PreservesOrderBeyondOneByteKeys(t *testing.T) {
	ctx := context.Background()
	idx := setupStore(t).IndexStore("csharp")

	snap := testSnapshot(0)
	for i := 0; i < 300; i++ {
		snap.Records = append(snap.Records, domain.QARecord{ID: string(rune(0x100 + i)), Question: "q", Answer: "a"})
		snap.Vectors = append(snap.Vectors, []float32{float32(i), 0})
	}
	require.NoError(t, idx.Save(ctx, snap))

	loaded, err := idx.Load(ctx)
	require.NoError(t, err)
	for i := range snap.Vectors {
		require.Equal(t, float32(i), loaded.Vectors[i][0])
	}
}

func TestIndexStore_LoadMissing(t *testing.T) {
	idx := setupStore(t).IndexStore("python")

	_, err := idx.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)

	exists, err := idx.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIndexStore_SaveReplacesAndIsolatesPartitions(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.IndexStore("csharp").Save(ctx, testSnapshot(3)))
	require.NoError(t, store.IndexStore("python").Save(ctx, testSnapshot(2)))
	require.NoError(t, store.IndexStore("csharp").Save(ctx, testSnapshot(1)))

	cs, err := store.IndexStore("csharp").Load(ctx)
	require.NoError(t, err)
	py, err := store.IndexStore("python").Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, cs.Len())
	assert.Equal(t, 2, py.Len())
}

func TestIndexStore_RejectsInconsistentSnapshot(t *testing.T) {
	ctx := context.Background()
	idx := setupStore(t).IndexStore("csharp")
	require.NoError(t, idx.Save(ctx, testSnapshot(2)))

	bad := testSnapshot(2)
	bad.Vectors = bad.Vectors[:1]
	assert.ErrorIs(t, idx.Save(ctx, bad), domain.ErrIndexCorrupt)

	loaded, err := idx.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())
}

func TestIndexStore_DetectsCountMismatch(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	idx := store.IndexStore("csharp")
	require.NoError(t, idx.Save(ctx, testSnapshot(2)))

	err := store.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(meta{Dimensions: 2, Entries: 5})
		if err != nil {
			return err
		}
		return tx.Bucket([]byte("partition:csharp")).Put(keyMeta, data)
	})
	require.NoError(t, err)

	_, err = idx.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrIndexCorrupt)
}

func TestIndexStore_Location(t *testing.T) {
	store := setupStore(t)
	assert.Equal(t, store.Path()+"#csharp", store.IndexStore("csharp").Location())
}
