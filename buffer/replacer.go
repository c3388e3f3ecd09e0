package buffer

// Replacer defines the methods required for buffer eviction policies.
type Replacer interface {
	// Evict selects a victim among the evictable frames and forgets its
	// access history. The second result is false when no frame can be
	// evicted.
	Evict() (FrameID, bool)

	// RecordAccess notes an access to a frame at the current timestamp.
	RecordAccess(id FrameID)

	// SetEvictable marks whether a frame may be chosen by Evict. Unknown
	// frames are ignored.
	SetEvictable(id FrameID, evictable bool)

	// Remove forgets a frame regardless of its access history. Removing a
	// frame that is not evictable is a programming error.
	Remove(id FrameID)

	// Size reports the number of frames currently evictable.
	Size() int
}
