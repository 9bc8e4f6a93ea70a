package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/bikeshare-traffic/internal/traffic"
)

var (
	// ErrNotFound is returned when no dataset has been loaded or none falls in a range.
	ErrNotFound = errors.New("no traffic dataset loaded")
)

// MemoryStore is a concurrency-safe in-memory history of loaded datasets.
// Only the newest dataset keeps its trips; older entries are retained as metadata.
type MemoryStore struct {
	mu sync.RWMutex

	latest  *traffic.Dataset
	history []traffic.DatasetInfo // oldest first

	// retention configuration
	maxHistory int           // max number of datasets remembered
	maxAge     time.Duration // optional max age of remembered datasets

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveDataset replaces the served dataset and enforces retention on the history.
func (s *MemoryStore) SaveDataset(ds traffic.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = &ds
	s.history = append(s.history, ds.Info())

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.history) > s.maxHistory {
		over := len(s.history) - s.maxHistory
		s.history = s.history[over:]
	}

	// Enforce retention by age, always keeping the dataset being served.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.history)-1; i++ {
			if !s.history[i].LoadedAt.Before(cutoff) {
				break
			}
		}
		s.history = s.history[i:]
	}
}

// GetLatest returns the most recently saved dataset.
func (s *MemoryStore) GetLatest() (traffic.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return traffic.Dataset{}, ErrNotFound
	}
	return *s.latest, nil
}

// GetRange returns metadata for all datasets loaded between from and to (inclusive).
func (s *MemoryStore) GetRange(from, to time.Time) ([]traffic.DatasetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []traffic.DatasetInfo
	for _, info := range s.history {
		if !info.LoadedAt.Before(from) && !info.LoadedAt.After(to) {
			result = append(result, info)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
