package buffer

import "errors"

var (
	// ErrNoUnpinnedBuffers reports that every frame is pinned and nothing
	// can be evicted.
	ErrNoUnpinnedBuffers = errors.New("all buffer frames are pinned")

	// ErrPageNotFound reports that the requested page is not resident.
	ErrPageNotFound = errors.New("page not resident in buffer pool")

	// ErrPagePinned reports a delete attempt on a pinned page.
	ErrPagePinned = errors.New("page is pinned")
)
