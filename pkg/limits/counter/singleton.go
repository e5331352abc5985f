package counter

import "sync"

var (
	// processStore is the process-wide counter table.
	processStore *MemoryStore

	storeOnce sync.Once
	storeMu   sync.RWMutex
)

// Initialize creates the process-wide store. It should be called once at
// startup; later calls return the same store.
func Initialize() *MemoryStore {
	storeOnce.Do(func() {
		storeMu.Lock()
		processStore = NewMemoryStore()
		storeMu.Unlock()
	})
	return Default()
}

// Default returns the process-wide store, or nil if Initialize has not run.
func Default() *MemoryStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return processStore
}
