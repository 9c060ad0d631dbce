package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"workbench-backend/internal/store"
	appErrors "workbench-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var searchIndex = store.Index{Name: "ClientSearchIndex", PartitionKey: "ClientKey", SortKey: "SearchKey"}

func item(pk, sk string, extra map[string]string) store.Item {
	it := store.Key{PK: pk, SK: sk}.Attributes()
	for k, v := range extra {
		it[k] = store.S(v)
	}
	return it
}

func TestStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.GetItem(ctx, store.Key{PK: "CLIENT#1", SK: "METADATA"})
	assert.True(t, appErrors.IsNotFound(err))

	require.NoError(t, s.PutItem(ctx, item("CLIENT#1", "METADATA", map[string]string{"Name": "Acme"})))

	got, err := s.GetItem(ctx, store.Key{PK: "CLIENT#1", SK: "METADATA"}, "Name")
	require.NoError(t, err)
	assert.Equal(t, "Acme", store.StringAttr(got, "Name"))
	assert.Len(t, got, 1, "projection should only return requested attributes")

	require.NoError(t, s.DeleteItem(ctx, store.Key{PK: "CLIENT#1", SK: "METADATA"}))
	assert.Equal(t, 0, s.Len())
}

func TestStore_ConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{PK: "WI#1", SK: "METADATA"}

	t.Run("CreateOnly", func(t *testing.T) {
		require.NoError(t, s.PutItem(ctx, item(key.PK, key.SK, nil), store.ItemNotExists()))
		err := s.PutItem(ctx, item(key.PK, key.SK, nil), store.ItemNotExists())
		assert.True(t, store.IsConditionFailed(err))
		assert.True(t, appErrors.IsConflict(err))
	})

	t.Run("UpdateOnly", func(t *testing.T) {
		err := s.UpdateItem(ctx, store.Key{PK: "WI#2", SK: "METADATA"}, store.Update{
			Set:        map[string]any{"Name": "ghost"},
			Conditions: []store.Condition{store.ItemExists()},
		})
		assert.True(t, store.IsConditionFailed(err))
		_, err = s.GetItem(ctx, store.Key{PK: "WI#2", SK: "METADATA"})
		assert.True(t, appErrors.IsNotFound(err), "failed update must not create the item")
	})

	t.Run("SetAndRemove", func(t *testing.T) {
		require.NoError(t, s.UpdateItem(ctx, key, store.Update{Set: map[string]any{"Marker": "X", "Version": int64(1)}}))
		require.NoError(t, s.UpdateItem(ctx, key, store.Update{
			Remove:     []string{"Marker"},
			Conditions: []store.Condition{store.AttrEquals("Version", int64(1))},
		}))
		got, err := s.GetItem(ctx, key)
		require.NoError(t, err)
		assert.False(t, store.HasAttr(got, "Marker"))
		assert.Equal(t, int64(1), store.NumberAttr(got, "Version"))

		err = s.UpdateItem(ctx, key, store.Update{
			Set:        map[string]any{"Version": int64(3)},
			Conditions: []store.Condition{store.AttrEquals("Version", int64(2))},
		})
		assert.True(t, store.IsConditionFailed(err))
	})
}

func TestStore_QueryIndex(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.PutItem(ctx, item("WI#1", "METADATA", map[string]string{"ClientKey": "CLIENT#1", "SearchKey": "0#active#WI#1"})))
	require.NoError(t, s.PutItem(ctx, item("WI#2", "METADATA", map[string]string{"ClientKey": "CLIENT#1", "SearchKey": "0#inactive#WI#2"})))
	require.NoError(t, s.PutItem(ctx, item("WI#3", "METADATA", map[string]string{"ClientKey": "CLIENT#1", "SearchKey": "1#active#WI#3"})))
	require.NoError(t, s.PutItem(ctx, item("WI#4", "METADATA", map[string]string{"ClientKey": "CLIENT#2", "SearchKey": "0#active#WI#4"})))
	// Not projected: no SearchKey.
	require.NoError(t, s.PutItem(ctx, item("WI#1", "DOC#1", map[string]string{"ClientKey": "CLIENT#1"})))

	got, err := s.Query(ctx, store.QueryInput{
		Index:          searchIndex,
		PartitionValue: "CLIENT#1",
		Sort:           store.BeginsWith("0#active#WI#"),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WI#1", store.StringAttr(got[0], store.AttrPK))
}

func TestStore_QueryOrderingAndRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, sk := range []string{"SUM#2024-01-02", "SUM#2024-01-01", "SUM#2024-01-03", "DOC#1"} {
		require.NoError(t, s.PutItem(ctx, item("CLIENT#1", sk, nil)))
	}

	got, err := s.Query(ctx, store.QueryInput{PartitionValue: "CLIENT#1", Sort: store.BeginsWith("SUM#"), Descending: true})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "SUM#2024-01-03", store.StringAttr(got[0], store.AttrSK))
	assert.Equal(t, "SUM#2024-01-01", store.StringAttr(got[2], store.AttrSK))

	got, err = s.Query(ctx, store.QueryInput{PartitionValue: "CLIENT#1", Sort: store.Between("SUM#2024-01-02", "SUM#2024-01-03")})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStore_TransactWriteAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.PutItem(ctx, item("WI#1", "METADATA", map[string]string{"Name": "before"})))
	require.NoError(t, s.PutItem(ctx, item("WI#1", "PE#5", nil)))
	before := s.Snapshot()

	err := s.TransactWrite(ctx, []store.Operation{
		store.UpdateOp(store.Key{PK: "WI#1", SK: "METADATA"}, store.Update{Set: map[string]any{"Name": "after"}}),
		store.Delete(store.Key{PK: "WI#1", SK: "PE#5"}),
		store.Put(item("WI#1", "PE#9", nil)),
		// Can never hold: the work item does not exist.
		store.Check(store.Key{PK: "WI#404", SK: "METADATA"}, store.ItemExists()),
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsTransactionFailed(err))
	assert.True(t, store.IsConditionFailed(err))
	assert.Equal(t, before, s.Snapshot(), "a cancelled transaction must leave every item unchanged")

	require.NoError(t, s.TransactWrite(ctx, []store.Operation{
		store.UpdateOp(store.Key{PK: "WI#1", SK: "METADATA"}, store.Update{Set: map[string]any{"Name": "after"}}),
		store.Delete(store.Key{PK: "WI#1", SK: "PE#5"}),
		store.Put(item("WI#1", "PE#9", nil)),
	}))
	snap := s.Snapshot()
	assert.Equal(t, "after", store.StringAttr(snap[store.Key{PK: "WI#1", SK: "METADATA"}], "Name"))
	assert.NotContains(t, snap, store.Key{PK: "WI#1", SK: "PE#5"})
	assert.Contains(t, snap, store.Key{PK: "WI#1", SK: "PE#9"})
}

func TestStore_TransactWriteRejectsDuplicateTargets(t *testing.T) {
	s := New()
	err := s.TransactWrite(context.Background(), []store.Operation{
		store.Put(item("WI#1", "PE#1", nil)),
		store.Delete(store.Key{PK: "WI#1", SK: "PE#1"}),
	})
	assert.True(t, appErrors.IsValidation(err))
}

func TestStore_IncrementConcurrent(t *testing.T) {
	ctx := context.Background()
	s := New()
	key := store.Key{PK: "COUNTER", SK: "WI"}

	const callers = 50
	results := make(chan int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Increment(ctx, key, "Seq", 1)
			assert.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]bool)
	for n := range results {
		assert.False(t, seen[n], "duplicate value %d", n)
		seen[n] = true
	}
	assert.Len(t, seen, callers)
}

func TestStore_SetError(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.SetError("Query", boom)

	_, err := s.Query(context.Background(), store.QueryInput{PartitionValue: "X"})
	assert.ErrorIs(t, err, boom)

	s.ClearErrors()
	_, err = s.Query(context.Background(), store.QueryInput{PartitionValue: "X"})
	assert.NoError(t, err)
}
