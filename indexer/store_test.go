package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"memchain/core/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	store, err := Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func memoryEvent(typ, vault, memory string) *types.Event {
	return &types.Event{Type: typ, Attributes: map[string]string{"vault": vault, "memory": memory, "key": "k"}}
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Record(ctx, Entry{
		Hash:      "0x01",
		Slot:      2,
		FeePayer:  "payer",
		Fee:       5000,
		Timestamp: 100,
		Events: []*types.Event{
			memoryEvent("agentmemory.memory_created", "vaultA", "m1"),
			memoryEvent("agentmemory.memory_created", "vaultA", "m2"),
		},
	}))
	require.NoError(t, store.Record(ctx, Entry{
		Hash:      "0x02",
		Slot:      3,
		Timestamp: 101,
		Events:    []*types.Event{memoryEvent("agentmemory.memory_deleted", "vaultB", "m3")},
	}))
	require.NoError(t, store.Record(ctx, Entry{
		Hash:      "0x03",
		Slot:      4,
		Err:       errors.New("instruction 0 (agentmemory): boom"),
		ErrorCode: 6003,
	}))

	all, err := store.Events(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "k", all[0].Attributes["key"])
	require.Equal(t, 1, all[1].Position)

	byVault, err := store.Events(ctx, Filter{Vault: "vaultA"})
	require.NoError(t, err)
	require.Len(t, byVault, 2)

	byType, err := store.Events(ctx, Filter{Type: "agentmemory.memory_deleted"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, "m3", byType[0].Memory)

	bySlot, err := store.Events(ctx, Filter{FromSlot: 3, ToSlot: 3})
	require.NoError(t, err)
	require.Len(t, bySlot, 1)

	page, err := store.Events(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	next, err := store.Events(ctx, Filter{After: page[0].ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, next, 1)
	require.Greater(t, next[0].ID, page[0].ID)

	failed, err := store.Transaction(ctx, "0x03")
	require.NoError(t, err)
	require.False(t, failed.Succeeded)
	require.EqualValues(t, 6003, failed.ErrorCode)
	require.Contains(t, failed.Error, "boom")

	ok, err := store.Transaction(ctx, "0x01")
	require.NoError(t, err)
	require.True(t, ok.Succeeded)
	require.Equal(t, 2, ok.EventCount)

	_, err = store.Transaction(ctx, "0xff")
	require.ErrorIs(t, err, ErrNotFound)

	latest, err := store.LatestSlot(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 4, latest)
}

func TestRecordIsAtomic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Record(ctx, Entry{Hash: "0x01", Slot: 1}))

	err := store.Record(ctx, Entry{
		Hash:   "0x01",
		Slot:   2,
		Events: []*types.Event{memoryEvent("agentmemory.memory_created", "v", "m")},
	})
	require.Error(t, err)

	events, err := store.Events(ctx, Filter{})
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mongo", "")
	require.ErrorContains(t, err, "unsupported driver")
}

func TestLatestSlotEmpty(t *testing.T) {
	slot, err := newTestStore(t).LatestSlot(context.Background())
	require.NoError(t, err)
	require.Zero(t, slot)
}
