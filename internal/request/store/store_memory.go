// Package store provides blood request persistence with the same
// conditional-update contract as the inventory store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"bloodlink/internal/blood"
	"bloodlink/internal/request/models"
	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// MemoryStore keeps blood requests in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*models.BloodRequest
}

func NewMemory() *MemoryStore {
	return &MemoryStore{requests: make(map[id.RequestID]*models.BloodRequest)}
}

func (s *MemoryStore) Create(ctx context.Context, request *models.BloodRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[request.ID]; exists {
		return sentinel.ErrConflict
	}
	s.requests[request.ID] = request.Clone()
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, requestID id.RequestID) (*models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return request.Clone(), nil
}

// Execute atomically validates and mutates one request under the store lock.
func (s *MemoryStore) Execute(ctx context.Context, requestID id.RequestID, validate func(*models.BloodRequest) error, mutate func(*models.BloodRequest)) (*models.BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	request, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(request); err != nil {
		return nil, err
	}
	mutate(request)
	return request.Clone(), nil
}

// ListOverdue returns open requests whose required-by deadline has passed,
// oldest deadline first.
func (s *MemoryStore) ListOverdue(ctx context.Context, now time.Time) ([]*models.BloodRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BloodRequest
	for _, request := range s.requests {
		if !request.Status.Open() {
			continue
		}
		if !request.RequiredBy.Before(now) {
			continue
		}
		out = append(out, request.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequiredBy.Before(out[j].RequiredBy)
	})
	return out, nil
}

// ListPendingByGroups returns pending requests whose blood group is in the
// given set, most urgent deadline first.
func (s *MemoryStore) ListPendingByGroups(ctx context.Context, groups []blood.Group) ([]*models.BloodRequest, error) {
	wanted := make(map[blood.Group]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BloodRequest
	for _, request := range s.requests {
		if request.Status != models.StatusPending {
			continue
		}
		if !wanted[request.Group] {
			continue
		}
		out = append(out, request.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequiredBy.Before(out[j].RequiredBy)
	})
	return out, nil
}
