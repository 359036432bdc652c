package util

import "sync"

// --------------------------------------------------------------------------
// Operation Counter
// --------------------------------------------------------------------------

// OpsCounter counts applied mutations. It is guarded by its own mutex so that
// readers of the counter never contend with the lock of the data.
//
// Thread-safety: All methods are thread-safe.
type OpsCounter struct {
	mu    sync.Mutex
	count uint64
}

// Add increases the counter by n.
func (c *OpsCounter) Add(n uint64) {
	if n == 0 {
		return
	}
	c.mu.Lock()
	c.count += n
	c.mu.Unlock()
}

// Inc increases the counter by one.
func (c *OpsCounter) Inc() {
	c.Add(1)
}

// Load returns the current value.
func (c *OpsCounter) Load() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
