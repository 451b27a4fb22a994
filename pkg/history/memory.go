package history

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps records in process. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, record Record) error {
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}

	s.mu.RLock()
	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].UserID == userID {
			out = append(out, s.records[i])
		}
	}
	s.mu.RUnlock()

	// Records are walked newest-appended first; the stable sort keeps that
	// order among equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit = NormalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
