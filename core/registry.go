package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// AdapterRegistry maps provider keys to adapters. The configured flag
// is captured once at registration, not re-evaluated per lookup.
type AdapterRegistry struct {
	mu      sync.RWMutex
	entries map[string]AdapterEntry
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{entries: make(map[string]AdapterEntry)}
}

func (r *AdapterRegistry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("core: adapter is nil")
	}
	key := strings.TrimSpace(adapter.Key())
	if key == "" {
		return fmt.Errorf("core: adapter key is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("core: adapter already registered: %s", key)
	}
	r.entries[key] = AdapterEntry{
		Adapter:    adapter,
		Configured: adapter.Configured(),
	}
	return nil
}

func (r *AdapterRegistry) Lookup(providerKey string) (AdapterEntry, bool) {
	key := strings.TrimSpace(providerKey)
	if key == "" {
		return AdapterEntry{}, false
	}
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	return entry, ok
}

func (r *AdapterRegistry) List() []AdapterEntry {
	r.mu.RLock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	entries := make([]AdapterEntry, 0, len(keys))
	r.mu.RLock()
	for _, key := range keys {
		entries = append(entries, r.entries[key])
	}
	r.mu.RUnlock()
	return entries
}
