package buffer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minidb/kfile"
	"minidb/log"
)

// mockDisk is an in-memory DiskManager that counts writes per page.
type mockDisk struct {
	mu     sync.Mutex
	pages  map[kfile.PageID][]byte
	writes map[kfile.PageID]int
}

func newMockDisk() *mockDisk {
	return &mockDisk{
		pages:  make(map[kfile.PageID][]byte),
		writes: make(map[kfile.PageID]int),
	}
}

func (d *mockDisk) ReadPage(pid kfile.PageID, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored, ok := d.pages[pid]
	if !ok {
		for i := range buf {
			buf[i] = 0
		}
		return nil
	}
	copy(buf, stored)
	return nil
}

func (d *mockDisk) WritePage(pid kfile.PageID, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	stored := make([]byte, len(buf))
	copy(stored, buf)
	d.pages[pid] = stored
	d.writes[pid]++
	return nil
}

func (d *mockDisk) writeCount(pid kfile.PageID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes[pid]
}

func newTestBufferMgr(poolSize int) (*BufferMgr, *mockDisk) {
	disk := newMockDisk()
	bm := NewBufferMgr(poolSize, disk, nil, NewLRUKReplacer(poolSize, 2))
	return bm, disk
}

// checkInvariants verifies the pool-wide bookkeeping after an operation:
// every frame is either free or resident, resident pages resolve through the
// index to their own frame, and no pinned frame is evictable.
func checkInvariants(t *testing.T, bm *BufferMgr) {
	t.Helper()
	bm.mu.Lock()
	defer bm.mu.Unlock()

	resident := 0
	evictable := 0
	for i := range bm.frames {
		f := &bm.frames[i]
		if f.pageID == kfile.InvalidPageID {
			continue
		}
		resident++
		fid, ok := bm.pageTable.Find(f.pageID)
		require.True(t, ok, "resident page %d missing from index", f.pageID)
		require.Equal(t, FrameID(i), fid)
		if f.pins == 0 {
			evictable++
		}
	}
	require.Equal(t, bm.PoolSize(), len(bm.freeList)+resident)
	require.Equal(t, evictable, bm.replacer.Size())
}

func TestNewPageUsesFreeListThenEvicts(t *testing.T) {
	bm, _ := newTestBufferMgr(3)

	pids := make(map[kfile.PageID]bool)
	for i := 0; i < 3; i++ {
		frame, err := bm.NewPage()
		require.NoError(t, err)
		pids[frame.PageID()] = true
		checkInvariants(t, bm)
	}
	assert.Len(t, pids, 3)

	// All three pinned: nothing to evict.
	_, err := bm.NewPage()
	assert.ErrorIs(t, err, ErrNoUnpinnedBuffers)

	require.True(t, bm.UnpinPage(1, false))
	checkInvariants(t, bm)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	assert.Equal(t, kfile.PageID(3), frame.PageID())
	checkInvariants(t, bm)

	// Page 1 lost its frame.
	_, ok := bm.pageTable.Find(1)
	assert.False(t, ok)
}

func TestFetchHitIncrementsPin(t *testing.T) {
	bm, _ := newTestBufferMgr(3)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()
	assert.Equal(t, 1, frame.PinCount())

	fetched, err := bm.FetchPage(pid)
	require.NoError(t, err)
	assert.Same(t, frame, fetched)
	assert.Equal(t, 2, frame.PinCount())
	assert.Equal(t, 1, bm.HitCount())

	// Both pins must drop before the frame becomes evictable.
	require.True(t, bm.UnpinPage(pid, false))
	assert.Equal(t, 0, bm.replacer.Size())
	require.True(t, bm.UnpinPage(pid, false))
	assert.Equal(t, 1, bm.replacer.Size())
	checkInvariants(t, bm)
}

func TestDirtyVictimWrittenBackOnce(t *testing.T) {
	bm, disk := newTestBufferMgr(1)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()
	require.NoError(t, frame.Contents().SetInt(0, 7))
	require.True(t, bm.UnpinPage(pid, true))

	frame, err = bm.NewPage()
	require.NoError(t, err)
	assert.Equal(t, kfile.PageID(1), frame.PageID())
	assert.Equal(t, 1, disk.writeCount(pid))

	// The evicted page reads back with its data.
	require.True(t, bm.UnpinPage(frame.PageID(), false))
	frame, err = bm.FetchPage(pid)
	require.NoError(t, err)
	v, err := frame.Contents().GetInt(0)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCleanVictimNotWrittenBack(t *testing.T) {
	bm, disk := newTestBufferMgr(1)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()
	require.True(t, bm.UnpinPage(pid, false))

	_, err = bm.NewPage()
	require.NoError(t, err)
	assert.Equal(t, 0, disk.writeCount(pid))
}

func TestUnpinPage(t *testing.T) {
	bm, _ := newTestBufferMgr(2)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()

	// Unknown page.
	assert.False(t, bm.UnpinPage(99, false))

	require.True(t, bm.UnpinPage(pid, false))
	// Double unpin.
	assert.False(t, bm.UnpinPage(pid, false))
	checkInvariants(t, bm)
}

func TestUnpinDirtyIsSticky(t *testing.T) {
	bm, _ := newTestBufferMgr(2)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()

	_, err = bm.FetchPage(pid)
	require.NoError(t, err)

	require.True(t, bm.UnpinPage(pid, true))
	// A later clean unpin must not clear the dirty flag.
	require.True(t, bm.UnpinPage(pid, false))
	assert.True(t, frame.IsDirty())
}

func TestFlushPageClearsDirty(t *testing.T) {
	bm, disk := newTestBufferMgr(1)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()
	require.NoError(t, frame.Contents().SetInt(0, 1))
	require.True(t, bm.UnpinPage(pid, true))

	require.NoError(t, bm.FlushPage(pid))
	assert.False(t, frame.IsDirty())
	assert.Equal(t, 1, disk.writeCount(pid))

	// Eviction after the flush must not write the page a second time.
	_, err = bm.NewPage()
	require.NoError(t, err)
	assert.Equal(t, 1, disk.writeCount(pid))
}

func TestFlushPageErrors(t *testing.T) {
	bm, _ := newTestBufferMgr(1)

	assert.ErrorIs(t, bm.FlushPage(kfile.InvalidPageID), ErrPageNotFound)
	assert.ErrorIs(t, bm.FlushPage(42), ErrPageNotFound)
}

func TestFlushAll(t *testing.T) {
	bm, disk := newTestBufferMgr(4)

	var pids []kfile.PageID
	for i := 0; i < 3; i++ {
		frame, err := bm.NewPage()
		require.NoError(t, err)
		pids = append(pids, frame.PageID())
		require.True(t, bm.UnpinPage(frame.PageID(), true))
	}

	require.NoError(t, bm.FlushAll())
	for _, pid := range pids {
		assert.Equal(t, 1, disk.writeCount(pid))
	}
	checkInvariants(t, bm)
}

func TestDeletePage(t *testing.T) {
	bm, _ := newTestBufferMgr(2)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()

	// Pinned pages refuse deletion.
	assert.ErrorIs(t, bm.DeletePage(pid), ErrPagePinned)
	_, ok := bm.pageTable.Find(pid)
	assert.True(t, ok)

	require.True(t, bm.UnpinPage(pid, false))
	require.NoError(t, bm.DeletePage(pid))
	_, ok = bm.pageTable.Find(pid)
	assert.False(t, ok)
	checkInvariants(t, bm)

	// Absent pages are vacuously deleted.
	assert.NoError(t, bm.DeletePage(pid))
	assert.NoError(t, bm.DeletePage(12345))
}

func TestDeleteReturnsFrameToFreeList(t *testing.T) {
	bm, _ := newTestBufferMgr(1)

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()
	require.True(t, bm.UnpinPage(pid, false))
	require.NoError(t, bm.DeletePage(pid))

	// The freed frame serves the next allocation without eviction.
	frame, err = bm.NewPage()
	require.NoError(t, err)
	assert.Equal(t, 1, frame.PinCount())
	checkInvariants(t, bm)
}

func TestWriteAheadLogFlushedBeforeEviction(t *testing.T) {
	dm, err := kfile.NewDiskMgr(t.TempDir())
	require.NoError(t, err)
	defer dm.Close()

	lm, err := log.NewLogMgr(dm)
	require.NoError(t, err)

	bm := NewBufferMgr(1, newMockDisk(), lm, NewLRUKReplacer(1, 2))

	frame, err := bm.NewPage()
	require.NoError(t, err)
	pid := frame.PageID()

	lsn, err := lm.Append([]byte("update"))
	require.NoError(t, err)
	frame.MarkModified(lsn)
	require.True(t, bm.UnpinPage(pid, true))
	assert.Less(t, lm.LatestSavedLSN(), lsn)

	// Evicting the dirty page must force the covering log record to disk
	// first.
	_, err = bm.NewPage()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lm.LatestSavedLSN(), lsn)
}

func TestBufferMgrWithClockReplacer(t *testing.T) {
	disk := newMockDisk()
	bm := NewBufferMgr(2, disk, nil, NewClockReplacer(2))

	a, err := bm.NewPage()
	require.NoError(t, err)
	b, err := bm.NewPage()
	require.NoError(t, err)
	require.True(t, bm.UnpinPage(a.PageID(), true))
	require.True(t, bm.UnpinPage(b.PageID(), false))

	_, err = bm.NewPage()
	require.NoError(t, err)
	checkInvariants(t, bm)
}

func TestConcurrentAccess(t *testing.T) {
	bm, _ := newTestBufferMgr(8)

	// Seed pages the workers will contend over.
	var pids []kfile.PageID
	for i := 0; i < 4; i++ {
		frame, err := bm.NewPage()
		require.NoError(t, err)
		pids = append(pids, frame.PageID())
		require.True(t, bm.UnpinPage(frame.PageID(), false))
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				pid := pids[(w+i)%len(pids)]
				frame, err := bm.FetchPage(pid)
				if err != nil {
					// Pool momentarily exhausted by peers.
					continue
				}
				if err := frame.Contents().SetInt(0, w); err != nil {
					t.Errorf("set int: %v", err)
				}
				bm.UnpinPage(pid, true)
			}
		}(w)
	}
	wg.Wait()
	checkInvariants(t, bm)
}

func TestPageIDsMonotonic(t *testing.T) {
	bm, _ := newTestBufferMgr(2)

	var last kfile.PageID = -1
	for i := 0; i < 6; i++ {
		frame, err := bm.NewPage()
		require.NoError(t, err)
		assert.Equal(t, last+1, frame.PageID(), fmt.Sprintf("allocation %d", i))
		last = frame.PageID()
		require.True(t, bm.UnpinPage(frame.PageID(), false))
	}
}
