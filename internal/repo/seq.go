package repo

import (
	"sync/atomic"
	"time"
)

var lastSeq atomic.Int64

// NextSeq returns a strictly increasing ordering key for a new row. It never
// falls below the wall clock in nanoseconds, so values stay ordered across
// process restarts as long as the clock does not go backwards.
func NextSeq() int64 {
	for {
		prev := lastSeq.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}
