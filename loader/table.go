package loader

import "sync"

// convTable maps opaque integer keys to live conversation callbacks. PAM's
// appdata_ptr carries the key instead of a Go pointer, so nothing the garbage
// collector cares about ever crosses the native boundary.
type convTable struct {
	entries map[uintptr]ConvFunc
	next    uintptr
	mu      sync.RWMutex
}

func newConvTable() *convTable {
	return &convTable{
		entries: make(map[uintptr]ConvFunc),
		next:    1, // key 0 is reserved and always invalid
	}
}

// insert stores a callback and returns its key.
func (t *convTable) insert(fn ConvFunc) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := t.next
	t.next++
	t.entries[key] = fn
	return key
}

// get retrieves a callback by key.
func (t *convTable) get(key uintptr) (ConvFunc, bool) {
	if key == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	fn, ok := t.entries[key]
	return fn, ok
}

// remove drops a callback. Keys are never reused; a late native callback with
// a stale key misses cleanly instead of hitting another conversation.
func (t *convTable) remove(key uintptr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key)
}

// size returns the number of registered callbacks.
func (t *convTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}
