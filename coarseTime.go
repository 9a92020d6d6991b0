package conduit

import (
	"sync/atomic"
	"time"
)

// CoarseTimeNow returns the current time with ~1 second resolution.
//
// It is much faster than time.Now() and is good enough for stamping
// timestamps (Executor idle-worker aging, idle-connection bookkeeping)
// where sub-second precision isn't needed.
func CoarseTimeNow() time.Time {
	tp := coarseTime.Load().(*time.Time)
	return *tp
}

func init() {
	t := time.Now()
	coarseTime.Store(&t)
	go func() {
		for {
			time.Sleep(time.Second)
			t := time.Now()
			coarseTime.Store(&t)
		}
	}()
}

var coarseTime atomic.Value
