package buffer

import (
	"fmt"
	"sync"

	"minidb/hash"
	"minidb/kfile"
	"minidb/log"
)

// DiskManager is the disk back-end the buffer manager reads and writes
// pages through.
type DiskManager interface {
	ReadPage(pid kfile.PageID, buf []byte) error
	WritePage(pid kfile.PageID, buf []byte) error
}

// pageTableBucketSize bounds entries per bucket of the page table.
const pageTableBucketSize = 8

// BufferMgr mediates between the fixed-size on-disk page store and a bounded
// pool of in-memory frames. Page lookups go through an extendible hash
// index; victims come from the free list first and the replacer second.
//
// One coarse mutex guards every public operation; the replacer and the page
// table carry their own latches and are only ever called with the manager
// lock held, so the lock order is fixed and cycle-free. Disk I/O currently
// happens under the manager lock, which is simple but serializes readers; a
// finer scheme would mark the victim frame in transit and unlock around the
// transfer.
type BufferMgr struct {
	mu         sync.Mutex
	frames     []Frame
	pageTable  *hash.ExtendibleHashTable[kfile.PageID, FrameID]
	replacer   Replacer
	freeList   []FrameID
	nextPageID kfile.PageID
	dm         DiskManager
	lm         *log.LogMgr
	hitCount   int
	missCount  int
}

// NewBufferMgr creates a buffer manager with poolSize frames over the given
// disk manager. lm may be nil when no write-ahead logging is wanted; when
// set, the log is flushed up to a dirty victim's LSN before the page is
// written back. The replacer decides eviction order.
func NewBufferMgr(poolSize int, dm DiskManager, lm *log.LogMgr, replacer Replacer) *BufferMgr {
	if poolSize <= 0 {
		panic(fmt.Sprintf("invalid pool size %d", poolSize))
	}

	bm := &BufferMgr{
		frames:    make([]Frame, poolSize),
		pageTable: hash.NewExtendibleHashTable[kfile.PageID, FrameID](pageTableBucketSize, hash.Integer[kfile.PageID]()),
		replacer:  replacer,
		freeList:  make([]FrameID, 0, poolSize),
		dm:        dm,
		lm:        lm,
	}
	for i := range bm.frames {
		bm.frames[i] = newFrame()
		bm.freeList = append(bm.freeList, FrameID(i))
	}
	return bm
}

// NewPage allocates a fresh page id, places it in a frame pinned once and
// returns the frame. Fails with ErrNoUnpinnedBuffers when every frame is
// pinned.
func (bm *BufferMgr) NewPage() (*Frame, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	fid, err := bm.acquireFrame()
	if err != nil {
		return nil, err
	}

	pid := bm.allocatePage()
	bm.pageTable.Insert(pid, fid)

	f := &bm.frames[fid]
	f.pageID = pid
	f.pins = 1
	f.dirty = false
	f.lsn = 0

	bm.replacer.RecordAccess(fid)
	bm.replacer.SetEvictable(fid, false)

	return f, nil
}

// FetchPage returns the frame holding pid, pinning it. On a miss the page is
// read from disk into a frame obtained like NewPage does. Fails with
// ErrNoUnpinnedBuffers when every frame is pinned.
func (bm *BufferMgr) FetchPage(pid kfile.PageID) (*Frame, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if fid, ok := bm.pageTable.Find(pid); ok {
		bm.hitCount++
		f := &bm.frames[fid]
		f.pin()
		bm.replacer.RecordAccess(fid)
		bm.replacer.SetEvictable(fid, false)
		return f, nil
	}
	bm.missCount++

	fid, err := bm.acquireFrame()
	if err != nil {
		return nil, err
	}

	f := &bm.frames[fid]
	if err := bm.dm.ReadPage(pid, f.contents.Contents()); err != nil {
		// The frame stayed empty; hand it back to the free list.
		bm.freeList = append(bm.freeList, fid)
		return nil, fmt.Errorf("failed to read page %d: %w", pid, err)
	}

	bm.pageTable.Insert(pid, fid)
	f.pageID = pid
	f.pins = 1
	f.dirty = false
	f.lsn = 0

	bm.replacer.RecordAccess(fid)
	bm.replacer.SetEvictable(fid, false)

	return f, nil
}

// UnpinPage drops one pin from pid, folding the caller's dirty verdict into
// the frame. The dirty flag is sticky: unpinning clean never clears it.
// Returns false when the page is not resident or not pinned.
func (bm *BufferMgr) UnpinPage(pid kfile.PageID, isDirty bool) bool {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	fid, ok := bm.pageTable.Find(pid)
	if !ok {
		return false
	}
	f := &bm.frames[fid]
	if f.pins <= 0 {
		return false
	}

	if isDirty {
		f.dirty = true
	}
	f.unpin()
	if f.pins == 0 {
		bm.replacer.SetEvictable(fid, true)
	}
	return true
}

// FlushPage writes pid to disk regardless of its dirty flag and clears the
// flag. Fails with ErrPageNotFound when pid is invalid or not resident.
func (bm *BufferMgr) FlushPage(pid kfile.PageID) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.flushPageLocked(pid)
}

func (bm *BufferMgr) flushPageLocked(pid kfile.PageID) error {
	if pid == kfile.InvalidPageID {
		return ErrPageNotFound
	}
	fid, ok := bm.pageTable.Find(pid)
	if !ok {
		return ErrPageNotFound
	}

	f := &bm.frames[fid]
	if err := bm.flushLog(f.lsn); err != nil {
		return err
	}
	if err := bm.dm.WritePage(pid, f.contents.Contents()); err != nil {
		return fmt.Errorf("failed to write page %d: %w", pid, err)
	}
	f.dirty = false
	return nil
}

// FlushAll writes every resident page to disk.
func (bm *BufferMgr) FlushAll() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for i := range bm.frames {
		if pid := bm.frames[i].pageID; pid != kfile.InvalidPageID {
			if err := bm.flushPageLocked(pid); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeletePage removes pid from the pool and returns its frame to the free
// list. A page that is not resident is vacuously deleted. Fails with
// ErrPagePinned while the page is in use.
func (bm *BufferMgr) DeletePage(pid kfile.PageID) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	fid, ok := bm.pageTable.Find(pid)
	if !ok {
		return nil
	}
	f := &bm.frames[fid]
	if f.pins > 0 {
		return ErrPagePinned
	}

	bm.replacer.Remove(fid)
	bm.pageTable.Remove(pid)
	f.reset()
	bm.freeList = append(bm.freeList, fid)
	bm.deallocatePage(pid)
	return nil
}

// acquireFrame secures an empty frame: free list first, replacer second.
// A dirty victim is written back (behind the log, when one is wired) before
// the frame is reused.
func (bm *BufferMgr) acquireFrame() (FrameID, error) {
	if len(bm.freeList) > 0 {
		fid := bm.freeList[0]
		bm.freeList = bm.freeList[1:]
		return fid, nil
	}

	fid, ok := bm.replacer.Evict()
	if !ok {
		return 0, ErrNoUnpinnedBuffers
	}

	victim := &bm.frames[fid]
	if victim.dirty {
		if err := bm.flushLog(victim.lsn); err != nil {
			return 0, err
		}
		if err := bm.dm.WritePage(victim.pageID, victim.contents.Contents()); err != nil {
			return 0, fmt.Errorf("failed to write victim page %d: %w", victim.pageID, err)
		}
	}
	bm.pageTable.Remove(victim.pageID)
	victim.reset()
	return fid, nil
}

// flushLog honors the write-ahead rule: log records covering a page reach
// disk before the page does.
func (bm *BufferMgr) flushLog(lsn int) error {
	if bm.lm == nil || lsn == 0 {
		return nil
	}
	if err := bm.lm.FlushLSN(lsn); err != nil {
		return fmt.Errorf("failed to flush log to lsn %d: %w", lsn, err)
	}
	return nil
}

// allocatePage hands out monotonically increasing page ids.
func (bm *BufferMgr) allocatePage() kfile.PageID {
	pid := bm.nextPageID
	bm.nextPageID++
	return pid
}

// deallocatePage is the hook for returning a page id to the allocator.
func (bm *BufferMgr) deallocatePage(pid kfile.PageID) {
}

// PoolSize returns the number of frames.
func (bm *BufferMgr) PoolSize() int {
	return len(bm.frames)
}

// HitCount returns the number of fetches served without disk I/O.
func (bm *BufferMgr) HitCount() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.hitCount
}

// MissCount returns the number of fetches that did not find the page
// resident, including those that then failed to obtain a frame.
func (bm *BufferMgr) MissCount() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.missCount
}
