package cache

import "time"

// StoredEntry is the durable form of a slow-tier entry. The on-disk format
// is opaque to callers; the only contract is that non-expired entries
// round-trip through Save/Load without loss.
type StoredEntry struct {
	Data         []byte    `msgpack:"data"`
	Compressed   bool      `msgpack:"compressed"`
	CreatedAt    time.Time `msgpack:"createdAt"`
	ExpiresAt    time.Time `msgpack:"expiresAt"`
	SizeEstimate int       `msgpack:"sizeEstimate"`
}

// Store persists the slow tier across sessions. Implementations must treat
// Save as a full snapshot: keys absent from the map are gone.
type Store interface {
	Load() (map[string]StoredEntry, error)
	Save(entries map[string]StoredEntry) error
	Close() error
}

// MemoryStore is a Store kept entirely in memory, for tests and for
// explicitly non-durable deployments.
type MemoryStore struct {
	entries map[string]StoredEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]StoredEntry)}
}

func (m *MemoryStore) Load() (map[string]StoredEntry, error) {
	out := make(map[string]StoredEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) Save(entries map[string]StoredEntry) error {
	m.entries = make(map[string]StoredEntry, len(entries))
	for k, v := range entries {
		m.entries[k] = v
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
