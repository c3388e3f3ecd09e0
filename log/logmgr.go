package log

import (
	"encoding/binary"
	"fmt"
	"sync"

	"minidb/kfile"
	"minidb/utils"
)

type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("log operation %s failed: %v", e.Op, e.Err)
}

// LogMgr appends write-ahead log records to the disk manager's log file.
// Records are buffered in memory up to a page and flushed on demand; dirty
// pages must not reach disk before the log records that cover them, which
// callers enforce through FlushLSN.
type LogMgr struct {
	dm             *kfile.DiskMgr
	mu             sync.Mutex
	buf            []byte
	latestLSN      int
	latestSavedLSN int
}

func NewLogMgr(dm *kfile.DiskMgr) (*LogMgr, error) {
	if dm == nil {
		return nil, &Error{Op: "new", Err: fmt.Errorf("disk manager cannot be nil")}
	}
	return &LogMgr{
		dm:  dm,
		buf: make([]byte, 0, kfile.PageSize),
	}, nil
}

// Append buffers a log record and returns its LSN. The record is not
// guaranteed to be on disk until Flush or FlushLSN covers it.
func (lm *LogMgr) Append(rec []byte) (int, error) {
	if len(rec) == 0 {
		return 0, &Error{Op: "append", Err: fmt.Errorf("empty log record")}
	}

	lm.mu.Lock()
	defer lm.mu.Unlock()

	if len(lm.buf)+4+len(rec) > kfile.PageSize {
		if err := lm.flushLocked(); err != nil {
			return 0, &Error{Op: "append", Err: err}
		}
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(rec)))
	lm.buf = append(lm.buf, hdr[:]...)
	lm.buf = append(lm.buf, rec...)

	lm.latestLSN++
	return lm.latestLSN, nil
}

// Flush forces every buffered record to disk.
func (lm *LogMgr) Flush() error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if err := lm.flushLocked(); err != nil {
		return &Error{Op: "flush", Err: err}
	}
	return nil
}

// FlushLSN guarantees the record with the given LSN is on disk, flushing
// only when it is still buffered.
func (lm *LogMgr) FlushLSN(lsn int) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lsn <= lm.latestSavedLSN {
		return nil
	}
	if err := lm.flushLocked(); err != nil {
		return &Error{Op: "flushLSN", Err: err}
	}
	return nil
}

func (lm *LogMgr) flushLocked() error {
	if len(lm.buf) == 0 {
		lm.latestSavedLSN = lm.latestLSN
		return nil
	}
	if err := lm.dm.WriteLog(lm.buf); err != nil {
		return err
	}
	lm.buf = lm.buf[:0]
	lm.latestSavedLSN = lm.latestLSN
	return nil
}

// LatestLSN returns the LSN of the most recently appended record.
func (lm *LogMgr) LatestLSN() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.latestLSN
}

// LatestSavedLSN returns the LSN of the most recent record known to be on disk.
func (lm *LogMgr) LatestSavedLSN() int {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.latestSavedLSN
}

// Iterator flushes pending records and returns an iterator over the log,
// oldest record first.
func (lm *LogMgr) Iterator() (utils.Iterator[[]byte], error) {
	if err := lm.Flush(); err != nil {
		return nil, &Error{Op: "iterator", Err: err}
	}
	return NewLogIterator(lm.dm)
}
