package buffer

import (
	"minidb/kfile"
)

// FrameID addresses a slot in the buffer manager's frame array.
type FrameID int

// Frame is an in-memory slot holding one page at a time, plus the metadata
// the buffer manager needs: the resident page id, a pin count and the dirty
// flag. Frames are owned by the BufferMgr; callers hold them only between a
// fetch and the matching unpin.
type Frame struct {
	contents *kfile.Page
	pageID   kfile.PageID
	pins     int
	dirty    bool
	lsn      int
}

func newFrame() Frame {
	return Frame{
		contents: kfile.NewPage(),
		pageID:   kfile.InvalidPageID,
	}
}

// Contents returns the page buffer resident in this frame.
func (f *Frame) Contents() *kfile.Page {
	return f.contents
}

// PageID returns the id of the resident page, or InvalidPageID.
func (f *Frame) PageID() kfile.PageID {
	return f.pageID
}

func (f *Frame) PinCount() int {
	return f.pins
}

func (f *Frame) Pinned() bool {
	return f.pins > 0
}

func (f *Frame) IsDirty() bool {
	return f.dirty
}

// LSN returns the log sequence number of the latest modification.
func (f *Frame) LSN() int {
	return f.lsn
}

// MarkModified flags the frame dirty and records the covering log record.
// Callers that modify page contents through a pin should call this with the
// LSN returned by the log manager; lsn 0 leaves the recorded LSN unchanged.
func (f *Frame) MarkModified(lsn int) {
	if lsn > f.lsn {
		f.lsn = lsn
	}
	f.dirty = true
}

func (f *Frame) pin() {
	f.pins++
}

func (f *Frame) unpin() {
	if f.pins <= 0 {
		panic("frame is not pinned")
	}
	f.pins--
}

func (f *Frame) reset() {
	f.contents.Reset()
	f.pageID = kfile.InvalidPageID
	f.pins = 0
	f.dirty = false
	f.lsn = 0
}
