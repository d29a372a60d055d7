package capability

import (
	"context"
	"sort"
	"sync"

	"github.com/germanamz/promptforge/pkg/settings"
)

// Key identifies one cached probe result.
type Key struct {
	ProviderID string `json:"providerId"`
	ModelID    string `json:"modelId"`
}

// String returns "provider:model".
func (k Key) String() string {
	return k.ProviderID + ":" + k.ModelID
}

// Store persists probe results. Implementations must be safe for concurrent
// use; the last Put for a key wins.
type Store interface {
	Get(ctx context.Context, key Key) (settings.ModelCapabilities, bool, error)
	Put(ctx context.Context, key Key, caps settings.ModelCapabilities) error
	Keys(ctx context.Context) ([]Key, error)
	Clear(ctx context.Context) error
}

// MemoryStore is an in-process Store. Values are copied on the way in and
// out so callers cannot mutate cached entries.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[Key]settings.ModelCapabilities
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[Key]settings.ModelCapabilities)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (settings.ModelCapabilities, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caps, ok := s.entries[key]
	if !ok {
		return settings.ModelCapabilities{}, false, nil
	}

	return clone(caps), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, caps settings.ModelCapabilities) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = clone(caps)

	return nil
}

func (s *MemoryStore) Keys(_ context.Context) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]Key, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sortKeys(keys)

	return keys, nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.entries)

	return nil
}

func clone(caps settings.ModelCapabilities) settings.ModelCapabilities {
	if caps.TestResult != nil {
		tr := *caps.TestResult
		caps.TestResult = &tr
	}
	return caps
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
}
