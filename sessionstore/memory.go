package sessionstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and single-process
// deployments. Optional TTL: expired records behave as missing.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	rec       EncounterRecord
	expiresAt time.Time // zero = no expiry
}

// MemoryStoreConfig configures the in-memory store.
type MemoryStoreConfig struct {
	TTL time.Duration // 0 = records never expire
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(config ...MemoryStoreConfig) *MemoryStore {
	var cfg MemoryStoreConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	return &MemoryStore{
		records: make(map[string]memoryEntry),
		ttl:     cfg.TTL,
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *EncounterRecord) error {
	return s.put(rec)
}

func (s *MemoryStore) Update(ctx context.Context, rec *EncounterRecord) error {
	return s.put(rec)
}

func (s *MemoryStore) put(rec *EncounterRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{rec: *rec}
	if s.ttl > 0 {
		entry.expiresAt = time.Now().Add(s.ttl)
	}
	s.records[rec.EncounterID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, encounterID string) (*EncounterRecord, error) {
	s.mu.RLock()
	entry, ok := s.records[encounterID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.records, encounterID)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	rec := entry.rec
	return &rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, encounterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, encounterID)
	return nil
}
