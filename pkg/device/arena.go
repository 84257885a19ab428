package device

import "sync"

// Arena tracks every live allocation made through a Backend so that one
// run of the pipeline can guarantee release of all device memory on every
// exit path: normal completion, fatal error, or interruption. Process-exit
// cleanup is never relied on.
type Arena struct {
	mu   sync.Mutex
	live map[*Array]int64
}

// NewArena returns an empty allocation tracker.
func NewArena() *Arena {
	return &Arena{live: make(map[*Array]int64)}
}

func (ar *Arena) track(a *Array) {
	ar.mu.Lock()
	ar.live[a] = int64(len(a.data)) * 4
	ar.mu.Unlock()
}

func (ar *Arena) untrack(a *Array) {
	ar.mu.Lock()
	delete(ar.live, a)
	ar.mu.Unlock()
}

// Live returns the number of outstanding allocations.
func (ar *Arena) Live() int {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	return len(ar.live)
}

// Bytes returns the total size of outstanding allocations in bytes.
func (ar *Arena) Bytes() int64 {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	var n int64
	for _, b := range ar.live {
		n += b
	}
	return n
}

// Release frees every outstanding allocation. Arrays released this way
// must not be used afterwards.
func (ar *Arena) Release() {
	ar.mu.Lock()
	defer ar.mu.Unlock()
	for a := range ar.live {
		a.data = nil
		delete(ar.live, a)
	}
}
