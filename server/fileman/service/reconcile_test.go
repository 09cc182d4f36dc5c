package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filevault/server/common/infra/object"
)

func TestReconcilerKeepsKeysItCannotDelete(t *testing.T) {
	ctx := context.Background()
	objects := &spyObjects{MemoryStore: object.NewMemoryStore("vault", "")}
	_, err := objects.Put(ctx, "files/u1/a.bin", strings.NewReader("a"), 1, "")
	require.NoError(t, err)

	ledger := NewMemoryOrphanLedger()
	require.NoError(t, ledger.Add(ctx, "files/u1/a.bin"))
	require.NoError(t, ledger.Add(ctx, "files/u1/already-gone.bin"))

	objects.failDeletes(errors.New("still down"))
	r := NewReconciler(objects, ledger, 0)
	result, _ := r.RunOnce(ctx)
	assert.Equal(t, ReconcileResult{Checked: 2, Deleted: 1, Failed: 1}, result)
	assert.Equal(t, []string{"files/u1/a.bin"}, objects.deletedKeys(), "missing objects are not deleted again")

	objects.failDeletes(nil)
	result, _ = r.RunOnce(ctx)
	assert.Equal(t, ReconcileResult{Checked: 1, Deleted: 1}, result)

	left, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestReconcilerKeepsKeysItCannotStat(t *testing.T) {
	ctx := context.Background()
	objects := &spyObjects{MemoryStore: object.NewMemoryStore("vault", ""), existsErr: errors.New("timeout")}
	ledger := NewMemoryOrphanLedger()
	require.NoError(t, ledger.Add(ctx, "files/u1/a.bin"))

	result, _ := NewReconciler(objects, ledger, 0).RunOnce(ctx)
	assert.Equal(t, ReconcileResult{Checked: 1, Failed: 1}, result)
	assert.Empty(t, objects.deletedKeys())

	left, err := ledger.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"files/u1/a.bin"}, left)
}

// countingLedger counts sweeps through List.
type countingLedger struct {
	*MemoryOrphanLedger
	lists atomic.Int64
}

func (l *countingLedger) List(ctx context.Context, max int64) ([]string, error) {
	l.lists.Add(1)
	return l.MemoryOrphanLedger.List(ctx, max)
}

func TestReconcilerStartTwiceRunsOneLoop(t *testing.T) {
	ledger := &countingLedger{MemoryOrphanLedger: NewMemoryOrphanLedger()}
	r := NewReconciler(object.NewMemoryStore("vault", ""), ledger, 5*time.Millisecond)

	r.Start(context.Background())
	r.Start(context.Background())
	require.Eventually(t, func() bool { return ledger.lists.Load() > 0 }, time.Second, 5*time.Millisecond)
	r.Stop()

	time.Sleep(30 * time.Millisecond)
	settled := ledger.lists.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ledger.lists.Load(), "no sweep may run after Stop")
}

func TestMemoryOrphanLedgerListRespectsMax(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryOrphanLedger()
	for _, k := range []string{"c", "a", "b", "a"} {
		require.NoError(t, ledger.Add(ctx, k))
	}
	keys, err := ledger.List(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, ledger.Remove(ctx, "a"))
	keys, err = ledger.List(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, keys)
}
