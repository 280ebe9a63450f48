package listener

import (
	"sync"

	"github.com/sonotxt/custodia/internal/models"
)

// watchList is a listener's owned set of addresses to match deposits
// against. It is rebuilt from storage on startup and mutated at runtime via
// Watch/Unwatch; lookups happen once per observed transfer, never holding
// the lock across a chain call.
type watchList struct {
	mu         sync.RWMutex
	byAddress  map[string]models.WatchEntry
	bySubIndex map[uint32]models.WatchEntry
}

func newWatchList() *watchList {
	return &watchList{
		byAddress:  make(map[string]models.WatchEntry),
		bySubIndex: make(map[uint32]models.WatchEntry),
	}
}

func (w *watchList) add(entry models.WatchEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byAddress[entry.Address] = entry
	if entry.SubIndex != nil {
		w.bySubIndex[*entry.SubIndex] = entry
	}
}

func (w *watchList) remove(entry models.WatchEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.byAddress, entry.Address)
	if entry.SubIndex != nil {
		delete(w.bySubIndex, *entry.SubIndex)
	}
}

func (w *watchList) lookupAddress(address string) (models.WatchEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entry, ok := w.byAddress[address]
	return entry, ok
}

func (w *watchList) lookupSubIndex(subIndex uint32) (models.WatchEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	entry, ok := w.bySubIndex[subIndex]
	return entry, ok
}

func (w *watchList) len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.byAddress)
}
