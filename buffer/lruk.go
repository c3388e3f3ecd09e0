package buffer

import (
	"container/list"
	"fmt"
	"sync"
)

// LRUKReplacer approximates LRU-K, which evicts the evictable frame with the
// largest backward k-distance: the elapsed time since a frame's k-th most
// recent access. Frames with fewer than k recorded accesses have infinite
// backward distance and live on the history list, evicted in classical LRU
// order. Frames with at least k accesses live on the cache list, ordered by
// most recent access rather than by k-th most recent access, so among them
// the frame whose latest access is oldest goes first. Both lists keep the
// most recently accessed frame at the front.
type LRUKReplacer struct {
	mu           sync.Mutex
	k            int
	replacerSize int
	currSize     int
	accessCount  map[FrameID]int
	evictable    map[FrameID]bool
	history      *list.List
	historyMap   map[FrameID]*list.Element
	cache        *list.List
	cacheMap     map[FrameID]*list.Element
}

// NewLRUKReplacer creates a replacer tracking frames in [0, numFrames).
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:            k,
		replacerSize: numFrames,
		accessCount:  make(map[FrameID]int),
		evictable:    make(map[FrameID]bool),
		history:      list.New(),
		historyMap:   make(map[FrameID]*list.Element),
		cache:        list.New(),
		cacheMap:     make(map[FrameID]*list.Element),
	}
}

func (r *LRUKReplacer) validate(id FrameID) {
	if id < 0 || int(id) >= r.replacerSize {
		panic(fmt.Sprintf("lruk: frame id %d out of range [0, %d)", id, r.replacerSize))
	}
}

// RecordAccess notes an access to the frame, moving it from the history list
// to the cache list on its k-th access.
func (r *LRUKReplacer) RecordAccess(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validate(id)

	r.accessCount[id]++
	switch count := r.accessCount[id]; {
	case count == r.k:
		if elem, ok := r.historyMap[id]; ok {
			r.history.Remove(elem)
			delete(r.historyMap, id)
		}
		r.cacheMap[id] = r.cache.PushFront(id)
	case count > r.k:
		if elem, ok := r.cacheMap[id]; ok {
			r.cache.Remove(elem)
		}
		r.cacheMap[id] = r.cache.PushFront(id)
	case count == 1:
		r.historyMap[id] = r.history.PushFront(id)
	}
}

// SetEvictable toggles whether the frame may be evicted. Frames without
// recorded accesses are ignored.
func (r *LRUKReplacer) SetEvictable(id FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validate(id)

	if r.accessCount[id] == 0 {
		return
	}
	if r.evictable[id] && !evictable {
		r.currSize--
	}
	if !r.evictable[id] && evictable {
		r.currSize++
	}
	r.evictable[id] = evictable
}

// Evict picks a victim and clears its state. History entries (infinite
// distance) win over cache entries; inside either list the least recently
// accessed evictable frame goes first.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currSize == 0 {
		return 0, false
	}
	for elem := r.history.Back(); elem != nil; elem = elem.Prev() {
		id := elem.Value.(FrameID)
		if r.evictable[id] {
			r.history.Remove(elem)
			delete(r.historyMap, id)
			r.forget(id)
			return id, true
		}
	}
	for elem := r.cache.Back(); elem != nil; elem = elem.Prev() {
		id := elem.Value.(FrameID)
		if r.evictable[id] {
			r.cache.Remove(elem)
			delete(r.cacheMap, id)
			r.forget(id)
			return id, true
		}
	}
	return 0, false
}

// Remove forgets a frame regardless of its backward distance. Unknown frames
// are ignored; removing a non-evictable frame is a programming error.
func (r *LRUKReplacer) Remove(id FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validate(id)

	if r.accessCount[id] == 0 {
		return
	}
	if !r.evictable[id] {
		panic(fmt.Sprintf("lruk: removing non-evictable frame %d", id))
	}
	if elem, ok := r.cacheMap[id]; ok {
		r.cache.Remove(elem)
		delete(r.cacheMap, id)
	}
	if elem, ok := r.historyMap[id]; ok {
		r.history.Remove(elem)
		delete(r.historyMap, id)
	}
	r.forget(id)
}

// forget clears per-frame state after the frame left its list.
func (r *LRUKReplacer) forget(id FrameID) {
	delete(r.accessCount, id)
	delete(r.evictable, id)
	r.currSize--
}

// Size returns the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
