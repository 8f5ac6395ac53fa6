package runtime

import (
	goruntime "runtime"
	"sync"
)

// execGuard makes execution and reconfiguration mutually exclusive. One
// mutex protects the running counter and every read or mutation of the
// shuffler shadow state; running counts kernels currently inside a
// send/compute/receive round.
//
// Reconfiguration waits for quiescence by busy-retrying rather than
// blocking on a condition variable.
type execGuard struct {
	mu      sync.Mutex
	running int
}

func (this *execGuard) lock() {
	this.mu.Lock()
}

func (this *execGuard) unlock() {
	this.mu.Unlock()
}

// acquireQuiescent spins until no kernel is mid-round and returns with the
// lock held.
func (this *execGuard) acquireQuiescent() {
	for {
		this.mu.Lock()
		if this.running == 0 {
			return
		}
		this.mu.Unlock()
		goruntime.Gosched()
	}
}
