package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/diwise/halgraph/pkg/errors"
)

type memoryStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]Facility
}

func NewMemoryStore() Store {
	return &memoryStore{
		tenants: map[string]map[string]Facility{},
	}
}

func (s *memoryStore) Query(ctx context.Context, tenant string, q Query) ([]Facility, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := []Facility{}
	for _, f := range s.tenants[tenant] {
		if q.Category == "" || f.Category == q.Category {
			matching = append(matching, f)
		}
	}

	slices.SortFunc(matching, func(a, b Facility) int {
		return strings.Compare(a.ID, b.ID)
	})

	total := len(matching)
	start := min(q.Offset, total)
	end := total

	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}

	return slices.Clone(matching[start:end]), total, nil
}

func (s *memoryStore) Get(ctx context.Context, tenant, id string) (Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.tenants[tenant][id]
	if !ok {
		return Facility{}, errors.NewNotFoundError(fmt.Sprintf("no facility with id %s found", id))
	}

	return f, nil
}

func (s *memoryStore) Upsert(ctx context.Context, tenant string, f Facility) error {
	if f.ID == "" {
		return fmt.Errorf("facility id must not be empty")
	}

	if f.DateModified.IsZero() {
		f.DateModified = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tenants[tenant]; !ok {
		s.tenants[tenant] = map[string]Facility{}
	}

	s.tenants[tenant][f.ID] = f

	return nil
}

func (s *memoryStore) Close() {}
