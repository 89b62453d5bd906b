package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	id "bloodlink/pkg/domain"
	"bloodlink/pkg/platform/sentinel"
)

// MemoryStore keeps appointments in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	schedules map[id.ScheduleID]*DonationSchedule
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{schedules: make(map[id.ScheduleID]*DonationSchedule)}
}

func (s *MemoryStore) Create(ctx context.Context, schedule *DonationSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schedules[schedule.ID]; exists {
		return sentinel.ErrConflict
	}
	s.schedules[schedule.ID] = schedule.Clone()
	return nil
}

func (s *MemoryStore) FindByID(ctx context.Context, scheduleID id.ScheduleID) (*DonationSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return schedule.Clone(), nil
}

// Execute atomically validates and mutates one appointment under the store lock.
func (s *MemoryStore) Execute(ctx context.Context, scheduleID id.ScheduleID, validate func(*DonationSchedule) error, mutate func(*DonationSchedule)) (*DonationSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[scheduleID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(schedule); err != nil {
		return nil, err
	}
	mutate(schedule)
	return schedule.Clone(), nil
}

// ListActiveBySlot returns scheduled or confirmed appointments on the given
// date and slot.
func (s *MemoryStore) ListActiveBySlot(ctx context.Context, date time.Time, slot Slot) ([]*DonationSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DonationSchedule
	for _, schedule := range s.schedules {
		if !schedule.Status.Active() {
			continue
		}
		if schedule.Date.Equal(date) && schedule.Slot == slot {
			out = append(out, schedule.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

// ListByDonor returns a donor's appointments, soonest date first.
func (s *MemoryStore) ListByDonor(ctx context.Context, donorID id.DonorID) ([]*DonationSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*DonationSchedule
	for _, schedule := range s.schedules {
		if schedule.Donor == donorID {
			out = append(out, schedule.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

func sortByCreatedAt(schedules []*DonationSchedule) {
	sort.Slice(schedules, func(i, j int) bool {
		return schedules[i].CreatedAt.Before(schedules[j].CreatedAt)
	})
}
