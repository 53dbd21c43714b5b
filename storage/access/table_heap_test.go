package access

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/buffer"
	"github.com/ryogrid/KiriDB/storage/disk"
	"github.com/ryogrid/KiriDB/storage/table/column"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

func newHeapEnv() (*TableHeap, *TransactionManager, *schema.Schema) {
	dm := disk.NewVirtualDiskManagerImpl()
	bpm := buffer.NewBufferPoolManager(common.BufferPoolDefaultFrameNum, dm)
	txnMgr := NewTransactionManager()
	schema_ := schema.NewSchema([]*column.Column{column.NewColumn("v", types.Integer)})
	return NewTableHeap(bpm, txnMgr), txnMgr, schema_
}

func intTuple(schema_ *schema.Schema, v int32) *tuple.Tuple {
	return tuple.NewFromSchema([]types.Value{types.NewInteger(v)}, schema_)
}

func TestOwnWritesAreVisibleBeforeCommit(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	writer := txnMgr.Begin()
	rid, err := heap.InsertTuple(intTuple(schema_, 1), writer)
	require.NoError(t, err)

	require.NotNil(t, heap.GetVisibleTuple(rid, writer))
}

func TestUncommittedWritesAreInvisibleToOthers(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	writer := txnMgr.Begin()
	rid, err := heap.InsertTuple(intTuple(schema_, 1), writer)
	require.NoError(t, err)

	reader := txnMgr.Begin()
	require.Nil(t, heap.GetVisibleTuple(rid, reader))
}

func TestConcurrentSnapshotNeverSeesLateCommit(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	writer := txnMgr.Begin()
	// the reader's snapshot lists the writer as in flight
	reader := txnMgr.Begin()

	rid, err := heap.InsertTuple(intTuple(schema_, 1), writer)
	require.NoError(t, err)
	txnMgr.Commit(writer)

	// committed, but after the reader's snapshot was taken
	require.Nil(t, heap.GetVisibleTuple(rid, reader))

	lateReader := txnMgr.Begin()
	require.NotNil(t, heap.GetVisibleTuple(rid, lateReader))
}

func TestDeleteHidesOnlyFromLaterSnapshots(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	setup := txnMgr.Begin()
	rid, err := heap.InsertTuple(intTuple(schema_, 1), setup)
	require.NoError(t, err)
	txnMgr.Commit(setup)

	oldReader := txnMgr.Begin()

	deleter := txnMgr.Begin()
	require.True(t, heap.MarkDeleted(rid, deleter))
	txnMgr.Commit(deleter)

	// the deleter is outside oldReader's horizon, so the version survives
	require.NotNil(t, heap.GetVisibleTuple(rid, oldReader))

	newReader := txnMgr.Begin()
	require.Nil(t, heap.GetVisibleTuple(rid, newReader))
}

func TestUpdateChainResolvesToTheVisibleVersion(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	setup := txnMgr.Begin()
	rid, err := heap.InsertTuple(intTuple(schema_, 1), setup)
	require.NoError(t, err)
	txnMgr.Commit(setup)

	updater := txnMgr.Begin()
	_, err = heap.UpdateTuple(rid, intTuple(schema_, 2), updater)
	require.NoError(t, err)
	txnMgr.Commit(updater)

	// an index still pointing at the original RID reaches the new version
	reader := txnMgr.Begin()
	tuple_ := heap.GetVisibleTuple(rid, reader)
	require.NotNil(t, tuple_)
	require.EqualValues(t, 2, tuple_.GetValue(schema_, 0).ToInteger())
}

func TestAbortedWritesStayInvisible(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	writer := txnMgr.Begin()
	rid, err := heap.InsertTuple(intTuple(schema_, 1), writer)
	require.NoError(t, err)
	txnMgr.Abort(writer)

	reader := txnMgr.Begin()
	require.Nil(t, heap.GetVisibleTuple(rid, reader))
}

func TestIteratorSkipsInvisibleVersions(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	setup := txnMgr.Begin()
	for v := int32(0); v < 10; v++ {
		_, err := heap.InsertTuple(intTuple(schema_, v), setup)
		require.NoError(t, err)
	}
	txnMgr.Commit(setup)

	other := txnMgr.Begin()
	_, err := heap.InsertTuple(intTuple(schema_, 99), other)
	require.NoError(t, err)

	reader := txnMgr.Begin()
	var count int
	it := heap.Iterator(reader)
	for tuple_ := it.Next(); tuple_ != nil; tuple_ = it.Next() {
		count++
	}
	require.Equal(t, 10, count)
}

func TestRefreshVisibilitySetsAndClearsAllVisibleBits(t *testing.T) {
	heap, txnMgr, schema_ := newHeapEnv()

	setup := txnMgr.Begin()
	rid, err := heap.InsertTuple(intTuple(schema_, 1), setup)
	require.NoError(t, err)
	txnMgr.Commit(setup)

	heap.RefreshVisibility()
	require.True(t, heap.GetVisibilityMap().IsAllVisible(rid.GetPageId()))
	require.EqualValues(t, 1, heap.GetVisibilityMap().CountAllVisible())

	// any write clears the bit until the next maintenance pass
	writer := txnMgr.Begin()
	_, err = heap.InsertTuple(intTuple(schema_, 2), writer)
	require.NoError(t, err)
	require.False(t, heap.GetVisibilityMap().IsAllVisible(rid.GetPageId()))
}
